package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config selects the SQL driver and where the data lives
type Config struct {
	// Driver is "sqlite3" or "postgres"
	Driver string
	// DSN is a file path or ":memory:" for sqlite3 and a connection URL for postgres
	DSN string
	// DataDir holds the default sqlite file when DSN is empty
	DataDir string
}

// Connect opens the database and makes sure the schema exists
func Connect(cfg Config) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}

	dsn := cfg.DSN
	if driver == "sqlite3" && dsn == "" {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "data"
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "wordwindow.db")
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if db.DriverName() == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite не поддерживает несколько писателей; ":memory:" живёт в одном соединении
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_words (
			user_name TEXT NOT NULL,
			language TEXT NOT NULL,
			position INTEGER NOT NULL,
			foreign_word TEXT NOT NULL,
			english_word TEXT NOT NULL DEFAULT '',
			count_seen INTEGER NOT NULL DEFAULT 0,
			count_correct INTEGER NOT NULL DEFAULT 0,
			count_incorrect INTEGER NOT NULL DEFAULT 0,
			is_known BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (user_name, language, foreign_word)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_words table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS assignment_words (
			assignment_id TEXT NOT NULL,
			foreign_word TEXT NOT NULL,
			english_word TEXT NOT NULL DEFAULT '',
			word_order INTEGER NOT NULL,
			PRIMARY KEY (assignment_id, foreign_word)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create assignment_words table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS assignment_progress (
			assignment_id TEXT NOT NULL,
			student_email TEXT NOT NULL,
			word_foreign TEXT NOT NULL,
			word_english TEXT NOT NULL DEFAULT '',
			count_seen INTEGER NOT NULL DEFAULT 0,
			count_correct INTEGER NOT NULL DEFAULT 0,
			count_incorrect INTEGER NOT NULL DEFAULT 0,
			is_known BOOLEAN NOT NULL DEFAULT FALSE,
			last_updated TIMESTAMP NOT NULL,
			PRIMARY KEY (assignment_id, student_email, word_foreign)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create assignment_progress table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_user_words_position ON user_words(user_name, language, position)`)
	if err != nil {
		return fmt.Errorf("failed to create user_words index: %w", err)
	}
	return nil
}
