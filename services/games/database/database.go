package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by mutations that target a missing game
var ErrNotFound = errors.New("game not found")

// DB wraps the SQLite database
type DB struct {
	conn *sql.DB
}

// New creates a new database connection, applies migrations and
// removes duplicate (name, type) rows left by older versions.
func New(dbPath string) (*DB, error) {
	if err := ensureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer: every mutation comes from the orchestrating goroutine
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema, adds columns missing from older databases,
// deduplicates and finally enforces (name, type) uniqueness.
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			app_id TEXT,
			install_path TEXT,
			launch_command TEXT,
			genre TEXT,
			is_installed BOOLEAN DEFAULT 0,
			metadata_fetched BOOLEAN DEFAULT 0,
			last_played DATETIME,
			playtime INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS platforms (
			game_id INTEGER NOT NULL,
			platform TEXT NOT NULL,
			PRIMARY KEY (game_id, platform),
			FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS developers (
			game_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (game_id, position),
			FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS publishers (
			game_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (game_id, position),
			FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	if err := db.addMissingColumns(); err != nil {
		return err
	}

	if err := db.dedupe(); err != nil {
		return err
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_games_name_type ON games(name, type)`,
		`CREATE INDEX IF NOT EXISTS idx_games_app_id ON games(app_id)`,
	}
	for _, query := range indexes {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// additiveColumns are columns introduced after the first schema. Each is
// added with ALTER TABLE when an existing database lacks it.
var additiveColumns = []struct {
	name       string
	definition string
}{
	{"epic_app_id", "TEXT"},
	{"poster_url", "TEXT"},
	{"poster_path", "TEXT"},
	{"description", "TEXT"},
	{"release_date", "TEXT"},
	{"rating", "REAL DEFAULT 0"},
	{"metacritic", "INTEGER DEFAULT 0"},
	{"esrb_rating", "TEXT"},
	{"background_url", "TEXT"},
	{"platforms", "TEXT"},
	{"developers", "TEXT"},
	{"publishers", "TEXT"},
	{"last_played", "DATETIME"},
	{"created_at", "DATETIME"},
	{"updated_at", "DATETIME"},
}

func (db *DB) addMissingColumns() error {
	existing, err := db.tableColumns("games")
	if err != nil {
		return err
	}

	for _, col := range additiveColumns {
		if existing[col.name] {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE games ADD COLUMN %s %s", col.name, col.definition)
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	return nil
}

func (db *DB) tableColumns(table string) (map[string]bool, error) {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		columns[name] = true
	}

	return columns, rows.Err()
}

// dedupe keeps the lowest id for every (name, type) pair
func (db *DB) dedupe() error {
	result, err := db.conn.Exec(`
		DELETE FROM games
		WHERE id NOT IN (SELECT MIN(id) FROM games GROUP BY name, type)
	`)
	if err != nil {
		return fmt.Errorf("failed to remove duplicate games: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		// Rows added before foreign keys were enforced may have left orphans
		for _, table := range auxTables {
			query := fmt.Sprintf("DELETE FROM %s WHERE game_id NOT IN (SELECT id FROM games)", table)
			if _, err := db.conn.Exec(query); err != nil {
				return fmt.Errorf("failed to clean %s: %w", table, err)
			}
		}
	}

	return nil
}

// ensureDir creates the directory if it doesn't exist
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
