// Package db provides database driver selection and connection management
// for the connection store.
package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"

	// Database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DatabaseDriver represents the type of database driver
type DatabaseDriver string

// Database driver constants
const (
	SQLite     DatabaseDriver = "sqlite3"
	PostgreSQL DatabaseDriver = "postgres"
)

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Driver           DatabaseDriver
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// DetectDriver determines the database driver from the connection string
func DetectDriver(connectionString string) DatabaseDriver {
	connectionString = strings.ToLower(connectionString)

	switch {
	case strings.HasPrefix(connectionString, "postgres://") ||
		strings.HasPrefix(connectionString, "postgresql://") ||
		strings.Contains(connectionString, "host="):
		return PostgreSQL
	default:
		return SQLite
	}
}

// NewDatabaseConfig returns pool settings tuned for the detected driver.
func NewDatabaseConfig(databaseURL string, isDev bool) DatabaseConfig {
	dbConfig := DatabaseConfig{
		Driver:           DetectDriver(databaseURL),
		ConnectionString: databaseURL,
		MaxOpenConns:     25,
		MaxIdleConns:     5,
		ConnMaxLifetime:  5 * time.Minute,
	}

	switch dbConfig.Driver {
	case SQLite:
		// A single connection keeps :memory: databases alive and avoids
		// SQLITE_BUSY on concurrent token refresh writes.
		dbConfig.MaxOpenConns = 1
		dbConfig.MaxIdleConns = 1
		dbConfig.ConnMaxLifetime = 0
		if !strings.Contains(dbConfig.ConnectionString, "?") {
			dbConfig.ConnectionString += "?_busy_timeout=10000&_foreign_keys=on"
		}
	case PostgreSQL:
		if isDev {
			dbConfig.MaxOpenConns = 10
			dbConfig.MaxIdleConns = 2
		}
	}
	return dbConfig
}

// OpenDatabase opens a database connection with the appropriate driver and settings
func OpenDatabase(dbConfig DatabaseConfig) (*sql.DB, error) {
	logger.Info("Opening database connection",
		"driver", string(dbConfig.Driver),
		"maxOpenConns", dbConfig.MaxOpenConns,
		"maxIdleConns", dbConfig.MaxIdleConns)

	db, err := sql.Open(string(dbConfig.Driver), dbConfig.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	initializeDatabase(db, dbConfig.Driver)
	return db, nil
}

// initializeDatabase applies driver-specific session settings
func initializeDatabase(db *sql.DB, driver DatabaseDriver) {
	var pragmas []string
	switch driver {
	case SQLite:
		pragmas = []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		}
	case PostgreSQL:
		pragmas = []string{"SET timezone = 'UTC'"}
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			logger.Warn("Failed to apply database setting", "statement", stmt, "error", err)
		}
	}
}

// Rebind rewrites '?' placeholders for the driver. Queries must not contain
// literal question marks.
func Rebind(driver DatabaseDriver, query string) string {
	if driver != PostgreSQL {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}
