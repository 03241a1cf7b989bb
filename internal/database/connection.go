package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/lingobot/internal/config"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect establishes a connection to the configured database.
// With a DATABASE_URL present the store runs on postgres; otherwise a local
// sqlite file is created under the data directory.
func Connect(cfg *config.Config) error {
	var db *sqlx.DB
	var err error

	if cfg.DB.Driver == "postgres" {
		db, err = sqlx.Connect("postgres", cfg.DB.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
	} else {
		dir := filepath.Dir(cfg.DB.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		db, err = sqlx.Connect("sqlite3", cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}

		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	DB = db

	return initializeSchema()
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	for _, stmt := range schemaStatements(DB.DriverName()) {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

// schemaStatements returns the DDL for the given driver.
// SQLite uses AUTOINCREMENT rowids, postgres uses SERIAL columns.
func schemaStatements(driver string) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		serial = "SERIAL PRIMARY KEY"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + serial + `,
			telegram_id INTEGER UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			is_admin BOOLEAN DEFAULT false,
			notification_enabled BOOLEAN DEFAULT true,
			notification_hour INTEGER DEFAULT 9,
			items_per_day INTEGER DEFAULT 10,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id ` + serial + `,
			entity_type TEXT NOT NULL,
			content TEXT NOT NULL,
			translation TEXT NOT NULL,
			romanization TEXT DEFAULT '',
			example TEXT DEFAULT '',
			lesson_id TEXT NOT NULL,
			difficulty INTEGER DEFAULT 1,
			position INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(entity_type, content, lesson_id)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_records (
			id ` + serial + `,
			user_id INTEGER NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			mastery_level REAL DEFAULT 0,
			review_stage INTEGER DEFAULT 0,
			easiness_factor REAL DEFAULT 2.5,
			interval_days INTEGER DEFAULT 1,
			last_review_at TIMESTAMP,
			next_review_at TIMESTAMP,
			correct_count INTEGER DEFAULT 0,
			wrong_count INTEGER DEFAULT 0,
			streak_correct INTEGER DEFAULT 0,
			is_locked BOOLEAN DEFAULT false,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, entity_type, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS module_progress (
			user_id INTEGER PRIMARY KEY,
			letter_completed BOOLEAN DEFAULT false,
			letter_progress REAL DEFAULT 0,
			word_progress REAL DEFAULT 0,
			sentence_progress REAL DEFAULT 0,
			word_unlocked BOOLEAN DEFAULT false,
			sentence_unlocked BOOLEAN DEFAULT false,
			article_unlocked BOOLEAN DEFAULT false,
			current_stage TEXT DEFAULT 'letter',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS round_state (
			user_id INTEGER PRIMARY KEY,
			current_round INTEGER DEFAULT 1,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS round_results (
			id ` + serial + `,
			user_id INTEGER NOT NULL,
			lesson_id TEXT NOT NULL,
			round_number INTEGER NOT NULL,
			total_questions INTEGER NOT NULL,
			correct_count INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			passed BOOLEAN NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, lesson_id, round_number)
		)`,
		`CREATE TABLE IF NOT EXISTS review_skips (
			id ` + serial + `,
			user_id INTEGER NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			skipped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}
