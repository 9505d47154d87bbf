// Package storage provides persistent storage using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseFile is the name of the SQLite file inside the data directory.
const DatabaseFile = "klingvault.db"

// Storage provides persistent storage for wallets, secrets and settings.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Storage) Path() string {
	return s.dbPath
}

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- Settings table (selected wallet, ...)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at INTEGER
	);

	-- =========================================================================
	-- Meta accounts (wallets)
	-- =========================================================================

	-- One row per wallet. Byte fields are lowercase hex without prefix,
	-- crypto types are the persisted small-int tags.
	CREATE TABLE IF NOT EXISTS meta_accounts (
		meta_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,

		-- Substrate root identity (always present)
		substrate_account_id TEXT NOT NULL,
		substrate_public_key TEXT NOT NULL,
		substrate_crypto_type INTEGER NOT NULL,

		-- Shared ethereum identity (both set or both NULL)
		ethereum_address TEXT,
		ethereum_public_key TEXT,

		-- Selected fiat currency
		currency_id INTEGER,
		currency_symbol TEXT,
		currency_name TEXT,
		currency_selected INTEGER DEFAULT 0,

		position INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,

		CHECK ((ethereum_address IS NULL) = (ethereum_public_key IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_meta_accounts_position ON meta_accounts(position);

	-- Per-chain override identities, at most one per (wallet, chain)
	CREATE TABLE IF NOT EXISTS chain_accounts (
		meta_id TEXT NOT NULL,
		chain_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		public_key TEXT NOT NULL,
		crypto_type INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,

		PRIMARY KEY (meta_id, chain_id),
		FOREIGN KEY (meta_id) REFERENCES meta_accounts(meta_id) ON DELETE CASCADE
	);

	-- Encrypted secrets, one per identity slot of a wallet
	CREATE TABLE IF NOT EXISTS secrets (
		meta_id TEXT NOT NULL,
		slot TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL,

		PRIMARY KEY (meta_id, slot),
		FOREIGN KEY (meta_id) REFERENCES meta_accounts(meta_id) ON DELETE CASCADE
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Run migrations for existing databases
	return s.runMigrations()
}

// runMigrations runs schema migrations for existing databases.
// These are ALTER TABLE statements that add columns to existing tables.
// Errors are ignored since columns may already exist.
func (s *Storage) runMigrations() error {
	migrations := []string{
		"ALTER TABLE meta_accounts ADD COLUMN currency_icon TEXT",
	}

	for _, migration := range migrations {
		// Ignore errors - column may already exist
		_, _ = s.db.Exec(migration)
	}

	return nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
