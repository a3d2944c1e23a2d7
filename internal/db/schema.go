package db

// schema is applied by Migrate. Timestamps are TIMESTAMP so go-sqlite3 scans
// them back into time.Time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS social_connections (
		user_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		expires_at TIMESTAMP,
		scope TEXT,
		oauth1_access_token TEXT,
		oauth1_access_token_secret TEXT,
		provider_user_id TEXT,
		provider_username TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		tokens_updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, provider)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_social_connections_provider_user
		ON social_connections (provider, provider_user_id)`,
}
