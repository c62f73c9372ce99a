// Package db provides the DuckDB-backed attribute cache for loaded overlay
// features.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection, creating the database file
// under DataDir on first use.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0755); err != nil {
			initErr = fmt.Errorf("db: create duckdb directory: %w", err)
			return
		}

		dbPath := filepath.Join(dir, cfg.DBName+".duckdb")
		instance, initErr = sql.Open("duckdb", dbPath)
		if initErr != nil {
			return
		}
		initErr = migrate(instance)
	})
	return instance, initErr
}

// Close closes the database connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS overlay_features (
			overlay_id VARCHAR NOT NULL,
			name       VARCHAR,
			properties JSON,
			loaded_at  TIMESTAMP DEFAULT current_timestamp
		)`)
	if err != nil {
		return fmt.Errorf("db: create overlay_features: %w", err)
	}
	return nil
}
