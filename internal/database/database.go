package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tahcohcat/ascended-progress/internal/logger"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type DB struct {
	*sqlx.DB
}

// NewDB opens a database connection and makes sure the schema exists.
// driver is "sqlite3" or "postgres".
func NewDB(driver, databaseURL string) (*DB, error) {
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		if databaseURL == "" {
			databaseURL = "ascended.db" // Default SQLite file
		}
		if !strings.Contains(databaseURL, "?") {
			databaseURL += "?_foreign_keys=on&_busy_timeout=5000"
		}
	case DriverPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("database url required for %s", driver)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY on concurrent syncs
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dbWrapper := &DB{DB: db}

	// Initialize database schema
	if err := dbWrapper.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.New().Info("database connection established", "driver", driver)
	return dbWrapper, nil
}

// createTables creates the necessary database tables
func (db *DB) createTables() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == DriverPostgres {
		serial = "SERIAL PRIMARY KEY"
	}

	progressTable := `
	CREATE TABLE IF NOT EXISTS room_progress (
		user_id INTEGER NOT NULL,
		room_number INTEGER NOT NULL,
		completion_status TEXT NOT NULL DEFAULT 'not_started',
		completion_percentage INTEGER NOT NULL DEFAULT 0,
		time_spent INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		best_score INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		room_data TEXT NOT NULL DEFAULT '{}',
		total_puzzles INTEGER NOT NULL DEFAULT 0,
		total_challenges INTEGER NOT NULL DEFAULT 0,
		total_objectives INTEGER NOT NULL DEFAULT 0,
		total_secrets INTEGER NOT NULL DEFAULT 0,
		last_accessed TIMESTAMP,
		completed_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (user_id, room_number)
	);`

	achievementsTable := `
	CREATE TABLE IF NOT EXISTS user_achievements (
		user_id INTEGER NOT NULL,
		achievement_type TEXT NOT NULL,
		achievement_name TEXT NOT NULL,
		room_number INTEGER,
		metadata TEXT NOT NULL DEFAULT '{}',
		earned_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, achievement_type, achievement_name)
	);`

	badgesTable := `
	CREATE TABLE IF NOT EXISTS badges (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		room_id INTEGER NOT NULL DEFAULT 0,
		requirement_type TEXT NOT NULL,
		requirement_value INTEGER NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);`

	activitiesTable := `
	CREATE TABLE IF NOT EXISTS game_activities (
		id ` + serial + `,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`

	// Create indexes for better performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_achievements_user_id ON user_achievements(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user_id ON game_activities(user_id, created_at);`,
	}

	// Execute table creation
	for _, query := range []string{progressTable, achievementsTable, badgesTable, activitiesTable} {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
