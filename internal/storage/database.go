package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"omnisum/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured sqlite3 or mysql database.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		if dbCfg.DSN != ":memory:" && !strings.HasPrefix(dbCfg.DSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(dbCfg.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if dbCfg.DSN == ":memory:" {
			// every pooled connection would otherwise get its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS summary_runs (
				id TEXT PRIMARY KEY,
				modality TEXT NOT NULL,
				status TEXT NOT NULL,
				error_kind TEXT NOT NULL DEFAULT '',
				input_bytes INTEGER NOT NULL DEFAULT 0,
				summary_chars INTEGER NOT NULL DEFAULT 0,
				started_at DATETIME NOT NULL,
				finished_at DATETIME
			)`,
			`CREATE INDEX IF NOT EXISTS idx_summary_runs_started ON summary_runs(started_at DESC)`,
			`CREATE TABLE IF NOT EXISTS staged_files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				modality TEXT NOT NULL,
				file_name TEXT NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				released_at DATETIME
			)`,
			`CREATE INDEX IF NOT EXISTS idx_staged_files_expiry ON staged_files(expires_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS summary_runs (
				id VARCHAR(36) NOT NULL,
				modality VARCHAR(32) NOT NULL,
				status VARCHAR(32) NOT NULL,
				error_kind VARCHAR(64) NOT NULL DEFAULT '',
				input_bytes BIGINT NOT NULL DEFAULT 0,
				summary_chars INT NOT NULL DEFAULT 0,
				started_at DATETIME NOT NULL,
				finished_at DATETIME NULL,
				PRIMARY KEY (id),
				INDEX idx_summary_runs_started (started_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS staged_files (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				modality VARCHAR(32) NOT NULL,
				file_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type VARCHAR(255) NOT NULL,
				size BIGINT NOT NULL,
				status VARCHAR(32) NOT NULL DEFAULT 'active',
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				released_at DATETIME NULL,
				PRIMARY KEY (id),
				INDEX idx_staged_files_expiry (expires_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
