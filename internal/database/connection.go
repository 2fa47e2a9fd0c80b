package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/langsched/internal/config"
)

// Connect opens the database selected by cfg and initializes the schema
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Type {
	case "postgres":
		return Open("postgres", cfg.URL)
	case "sqlite", "":
		// Create data directory if it doesn't exist
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %v", err)
			}
		}
		return Open("sqlite3", cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects with an explicit driver name and DSN.
// Tests use Open("sqlite3", ":memory:").
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if driver == "sqlite3" {
		// Enable foreign keys
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %v", err)
		}

		// SQLite doesn't support multiple writers; a single connection also
		// keeps an in-memory database alive across queries
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist.
// The DDL is shared by SQLite and PostgreSQL.
func initializeSchema(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			theta DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight_f DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			weight_r DOUBLE PRECISION NOT NULL DEFAULT 0.3,
			weight_e DOUBLE PRECISION NOT NULL DEFAULT 0.2,
			l1_language TEXT NOT NULL DEFAULT '',
			session_size INTEGER NOT NULL DEFAULT 10,
			notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			notification_hour INTEGER NOT NULL DEFAULT 9,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %v", err)
	}

	// Create language_objects table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS language_objects (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL DEFAULT 'word',
			content TEXT NOT NULL,
			translation TEXT NOT NULL DEFAULT '',
			frequency DOUBLE PRECISION NOT NULL,
			relational_density DOUBLE PRECISION NOT NULL,
			contextual_contribution DOUBLE PRECISION NOT NULL,
			irt_difficulty DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create language_objects table: %v", err)
	}

	// Create mastery_states table; the FSRS card is flattened into card_* columns
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS mastery_states (
			user_id BIGINT NOT NULL,
			object_id TEXT NOT NULL,
			stage INTEGER NOT NULL DEFAULT 0,
			card_difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
			card_stability DOUBLE PRECISION NOT NULL DEFAULT 0,
			card_last_review TIMESTAMP NULL,
			card_reps INTEGER NOT NULL DEFAULT 0,
			card_lapses INTEGER NOT NULL DEFAULT 0,
			card_state INTEGER NOT NULL DEFAULT 0,
			cue_free_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
			cue_assisted_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
			exposure_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, object_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (object_id) REFERENCES language_objects(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create mastery_states table: %v", err)
	}

	// Create review_logs table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS review_logs (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			object_id TEXT NOT NULL,
			rating INTEGER NOT NULL,
			correct BOOLEAN NOT NULL,
			cue_level INTEGER NOT NULL,
			response_time_ms BIGINT NOT NULL,
			stage_before INTEGER NOT NULL,
			stage_after INTEGER NOT NULL,
			reviewed_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (object_id) REFERENCES language_objects(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create review_logs table: %v", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_review_logs_user ON review_logs (user_id, reviewed_at)`)
	if err != nil {
		return fmt.Errorf("failed to create review_logs index: %v", err)
	}

	return nil
}
