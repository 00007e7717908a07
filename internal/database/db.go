// Package database opens the SQLite price history database.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Profile selects connection PRAGMAs.
type Profile string

const (
	// ProfileReadOnly opens an existing history database without writing to it.
	ProfileReadOnly Profile = "readonly"
	// ProfileStandard is read-write with balanced durability, used for imports and tests.
	ProfileStandard Profile = "standard"
)

// HistorySchema creates the daily price table. Dates are unix seconds at
// midnight UTC.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	isin TEXT NOT NULL,
	date INTEGER NOT NULL,
	close REAL NOT NULL,
	PRIMARY KEY (isin, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
`

// DB wraps a SQLite connection pool.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string // for logging
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile Profile
	Name    string
}

// New opens the database and verifies the connection.
func New(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	// file: URIs (in-memory databases in tests) are used as-is
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if cfg.Profile == ProfileReadOnly {
			if _, err := os.Stat(absPath); err != nil {
				return nil, fmt.Errorf("database %s not found: %w", cfg.Name, err)
			}
		} else if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn:    conn,
		path:    cfg.Path,
		profile: cfg.Profile,
		name:    cfg.Name,
	}, nil
}

// buildConnectionString creates SQLite connection string with profile-specific PRAGMAs
func buildConnectionString(path string, profile Profile) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	memory := strings.Contains(path, "mode=memory") || strings.Contains(path, ":memory:")

	var pragmas []string
	switch profile {
	case ProfileReadOnly:
		if !memory {
			pragmas = append(pragmas, "mode=ro")
		}
		pragmas = append(pragmas, "_pragma=query_only(1)")
	default:
		if !memory {
			pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
		}
		pragmas = append(pragmas, "_pragma=synchronous(NORMAL)")
	}
	pragmas = append(pragmas,
		"_pragma=busy_timeout(5000)",
		"_pragma=cache_size(-16000)", // 16MB (negative = KB)
	)
	return path + sep + strings.Join(pragmas, "&")
}

func configureConnectionPool(conn *sql.DB, profile Profile) {
	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(30 * time.Minute)
	if profile == ProfileStandard {
		// One writer avoids SQLITE_BUSY during imports.
		conn.SetMaxOpenConns(1)
	}
}

// Migrate creates the history schema. It is a no-op on read-only databases.
func (db *DB) Migrate(ctx context.Context) error {
	if db.profile == ProfileReadOnly {
		return nil
	}
	if _, err := db.conn.ExecContext(ctx, HistorySchema); err != nil {
		return fmt.Errorf("failed to apply history schema for %s: %w", db.name, err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name for logging
func (db *DB) Name() string {
	return db.name
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// QuickCheck pings the database.
func (db *DB) QuickCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}
	return nil
}
