package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/db"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/juju/clock"
)

const connectionColumns = `user_id, provider, access_token, refresh_token, expires_at, scope,
	oauth1_access_token, oauth1_access_token_secret, provider_user_id, provider_username,
	created_at, updated_at, tokens_updated_at`

// connectionRepository implements ConnectionRepository
type connectionRepository struct {
	dbService *db.Service
	clock     clock.Clock
}

func (r *connectionRepository) now() time.Time {
	return r.clock.Now().UTC()
}

// Upsert inserts or overwrites the OAuth2 half of a connection
func (r *connectionRepository) Upsert(ctx context.Context, conn *social.Connection) error {
	if conn == nil || conn.UserID == "" || conn.Provider == "" {
		return fmt.Errorf("%w: user and provider are required", ErrInvalidInput)
	}
	if !conn.HasOAuth2() {
		return fmt.Errorf("%w: access token is required", ErrInvalidInput)
	}

	now := r.now()
	query := r.dbService.Rebind(`INSERT INTO social_connections (
		user_id, provider, access_token, refresh_token, expires_at, scope,
		provider_user_id, provider_username, created_at, updated_at, tokens_updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, provider) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = excluded.refresh_token,
		expires_at = excluded.expires_at,
		scope = excluded.scope,
		provider_user_id = COALESCE(excluded.provider_user_id, social_connections.provider_user_id),
		provider_username = COALESCE(excluded.provider_username, social_connections.provider_username),
		updated_at = excluded.updated_at,
		tokens_updated_at = excluded.tokens_updated_at`)

	_, err := r.dbService.DB().ExecContext(ctx, query,
		conn.UserID,
		string(conn.Provider),
		conn.OAuth2.AccessToken,
		nullString(conn.OAuth2.RefreshToken),
		nullTime(conn.OAuth2.ExpiresAt),
		nullString(conn.OAuth2.Scope),
		nullString(conn.ProviderUserID),
		nullString(conn.ProviderUsername),
		now,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

// UpdateOAuth1 stores the OAuth1 pair on an existing connection
func (r *connectionRepository) UpdateOAuth1(ctx context.Context, userID string, provider social.Provider, creds social.OAuth1Credentials, identity social.Identity) error {
	if creds.Token == "" || creds.TokenSecret == "" {
		return fmt.Errorf("%w: oauth1 token and secret are required", ErrInvalidInput)
	}
	query := r.dbService.Rebind(`UPDATE social_connections SET
		oauth1_access_token = ?,
		oauth1_access_token_secret = ?,
		provider_user_id = COALESCE(provider_user_id, ?),
		provider_username = COALESCE(provider_username, ?),
		updated_at = ?
	WHERE user_id = ? AND provider = ?`)

	res, err := r.dbService.DB().ExecContext(ctx, query,
		creds.Token,
		creds.TokenSecret,
		nullString(identity.ProviderUserID),
		nullString(identity.ProviderUsername),
		r.now(),
		userID,
		string(provider),
	)
	if err != nil {
		return fmt.Errorf("failed to update oauth1 credentials: %w", err)
	}
	return requireRow(res)
}

// UpdateTokens replaces the OAuth2 token triple in a single statement
func (r *connectionRepository) UpdateTokens(ctx context.Context, userID string, provider social.Provider, params UpdateTokensParams) error {
	if params.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", ErrInvalidInput)
	}
	now := r.now()
	query := r.dbService.Rebind(`UPDATE social_connections SET
		access_token = ?,
		refresh_token = ?,
		expires_at = ?,
		updated_at = ?,
		tokens_updated_at = ?
	WHERE user_id = ? AND provider = ?`)

	res, err := r.dbService.DB().ExecContext(ctx, query,
		params.AccessToken,
		nullString(params.RefreshToken),
		nullTime(params.ExpiresAt),
		now,
		now,
		userID,
		string(provider),
	)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return requireRow(res)
}

// Get loads the connection for (userID, provider)
func (r *connectionRepository) Get(ctx context.Context, userID string, provider social.Provider) (*social.Connection, error) {
	query := r.dbService.Rebind(`SELECT ` + connectionColumns + `
	FROM social_connections WHERE user_id = ? AND provider = ?`)

	conn, err := scanConnection(r.dbService.DB().QueryRowContext(ctx, query, userID, string(provider)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// List returns every connection of a user ordered by provider
func (r *connectionRepository) List(ctx context.Context, userID string) ([]*social.Connection, error) {
	query := r.dbService.Rebind(`SELECT ` + connectionColumns + `
	FROM social_connections WHERE user_id = ? ORDER BY provider`)

	rows, err := r.dbService.DB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*social.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

// Delete removes the connection for (userID, provider)
func (r *connectionRepository) Delete(ctx context.Context, userID string, provider social.Provider) error {
	query := r.dbService.Rebind(`DELETE FROM social_connections WHERE user_id = ? AND provider = ?`)
	res, err := r.dbService.DB().ExecContext(ctx, query, userID, string(provider))
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*social.Connection, error) {
	var (
		conn                      social.Connection
		provider, accessToken     string
		refreshToken, scope       sql.NullString
		oauth1Token, oauth1Secret sql.NullString
		providerUserID, username  sql.NullString
		expiresAt                 sql.NullTime
		tokensUpdatedAt           time.Time
	)
	err := row.Scan(
		&conn.UserID, &provider, &accessToken, &refreshToken, &expiresAt, &scope,
		&oauth1Token, &oauth1Secret, &providerUserID, &username,
		&conn.CreatedAt, &conn.UpdatedAt, &tokensUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conn.Provider = social.Provider(provider)
	conn.OAuth2 = &social.OAuth2Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.String,
		Scope:        scope.String,
		IssuedAt:     tokensUpdatedAt.UTC(),
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		conn.OAuth2.ExpiresAt = &t
	}
	if oauth1Token.Valid && oauth1Secret.Valid {
		conn.OAuth1 = &social.OAuth1Credentials{Token: oauth1Token.String, TokenSecret: oauth1Secret.String}
	}
	conn.ProviderUserID = providerUserID.String
	conn.ProviderUsername = username.String
	conn.CreatedAt = conn.CreatedAt.UTC()
	conn.UpdatedAt = conn.UpdatedAt.UTC()
	return &conn, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
