package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
)

// Service wraps the database connection and the detected driver
type Service struct {
	db     *sql.DB
	driver DatabaseDriver
}

// NewService opens the database described by cfg and applies the schema
func NewService(cfg *config.Config) (*Service, error) {
	db, err := OpenDatabase(NewDatabaseConfig(cfg.DatabaseURL, cfg.IsDev()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	svc := &Service{db: db, driver: DetectDriver(cfg.DatabaseURL)}
	if err := svc.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Database service initialized", "driver", string(svc.driver))
	return svc, nil
}

// Migrate creates the tables the connection store needs
func (s *Service) Migrate(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection
func (s *Service) DB() *sql.DB {
	return s.db
}

// Driver returns the database driver type
func (s *Service) Driver() DatabaseDriver {
	return s.driver
}

// Rebind adapts a '?' query to the service's driver
func (s *Service) Rebind(query string) string {
	return Rebind(s.driver, query)
}

// WithTx executes a function within a database transaction
func (s *Service) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
