package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

// legacySeparator joined list columns before they were stored as JSON arrays
const legacySeparator = ","

var auxTables = []string{"platforms", "developers", "publishers"}

const gameColumns = `id, name, type, app_id, epic_app_id, install_path, launch_command,
	is_installed, genre, description, release_date, rating, metacritic, esrb_rating,
	poster_url, poster_path, background_url, platforms, developers, publishers,
	playtime, metadata_fetched, last_played, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// AddGame inserts a game unless one with the same (name, type) exists,
// returning the id of the stored row either way.
func (db *DB) AddGame(game *models.Game) (int64, error) {
	var existing int64
	err := db.conn.QueryRow(
		"SELECT id FROM games WHERE name = ? AND type = ?",
		game.Name, string(game.Type),
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up game: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO games (
			name, type, app_id, epic_app_id, install_path, launch_command, is_installed,
			genre, description, release_date, rating, metacritic, esrb_rating,
			poster_url, poster_path, background_url, platforms, developers, publishers,
			playtime, metadata_fetched, last_played
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		game.Name, string(game.Type), nullString(game.AppID), nullString(game.EpicAppID),
		nullString(game.InstallPath), nullString(game.LaunchCommand), game.IsInstalled,
		nullString(game.Genre), nullString(game.Description), nullString(game.ReleaseDate),
		game.Rating, game.Metacritic, nullString(game.ESRBRating),
		nullString(game.PosterURL), nullString(game.PosterPath), nullString(game.BackgroundURL),
		joinList(game.Platforms), joinList(game.Developers), joinList(game.Publishers),
		game.Playtime, game.MetadataFetched, game.LastPlayed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert game: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}

	if err := replaceAux(tx, id, "platforms", game.Platforms); err != nil {
		return 0, err
	}
	if err := replaceAux(tx, id, "developers", game.Developers); err != nil {
		return 0, err
	}
	if err := replaceAux(tx, id, "publishers", game.Publishers); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit game insert: %w", err)
	}

	return id, nil
}

// UpdateGame applies a partial update. Only non-nil fields are written.
func (db *DB) UpdateGame(id int64, update models.GameUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	var set setClause
	set.addString("name", update.Name)
	set.addString("app_id", update.AppID)
	set.addString("epic_app_id", update.EpicAppID)
	set.addString("install_path", update.InstallPath)
	set.addString("launch_command", update.LaunchCommand)
	set.addBool("is_installed", update.IsInstalled)
	set.addString("genre", update.Genre)
	set.addString("description", update.Description)
	set.addString("release_date", update.ReleaseDate)
	if update.Rating != nil {
		set.add("rating", *update.Rating)
	}
	if update.Metacritic != nil {
		set.add("metacritic", *update.Metacritic)
	}
	set.addString("esrb_rating", update.ESRBRating)
	set.addString("poster_url", update.PosterURL)
	set.addString("poster_path", update.PosterPath)
	set.addString("background_url", update.BackgroundURL)
	set.addList("platforms", update.Platforms)
	set.addList("developers", update.Developers)
	set.addList("publishers", update.Publishers)
	set.addBool("metadata_fetched", update.MetadataFetched)
	if update.LastPlayed != nil {
		set.add("last_played", *update.LastPlayed)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("UPDATE games SET %s, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		strings.Join(set.columns, ", "))
	result, err := tx.Exec(query, append(set.args, id)...)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update game %d: %w", id, ErrNotFound)
	}

	if update.Platforms != nil {
		if err := replaceAux(tx, id, "platforms", *update.Platforms); err != nil {
			return err
		}
	}
	if update.Developers != nil {
		if err := replaceAux(tx, id, "developers", *update.Developers); err != nil {
			return err
		}
	}
	if update.Publishers != nil {
		if err := replaceAux(tx, id, "publishers", *update.Publishers); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit game update: %w", err)
	}

	return nil
}

// UpdatePlaytime is the only writer of the playtime column
func (db *DB) UpdatePlaytime(id int64, minutes int) error {
	result, err := db.conn.Exec(
		"UPDATE games SET playtime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		minutes, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update playtime: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update playtime for %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetInstalled records whether a launcher has the game on disk
func (db *DB) SetInstalled(id int64, installed bool) error {
	return db.UpdateGame(id, models.GameUpdate{IsInstalled: &installed})
}

// GetGame retrieves a game by ID
func (db *DB) GetGame(id int64) (*models.Game, error) {
	row := db.conn.QueryRow("SELECT "+gameColumns+" FROM games WHERE id = ?", id)
	game, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// GetGameByAppID retrieves the first game carrying the given store app id
func (db *DB) GetGameByAppID(appID string) (*models.Game, error) {
	row := db.conn.QueryRow("SELECT "+gameColumns+" FROM games WHERE app_id = ? ORDER BY id LIMIT 1", appID)
	game, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game by app id: %w", err)
	}
	return game, nil
}

// GetAllGames returns every game ordered by name
func (db *DB) GetAllGames() ([]models.Game, error) {
	return db.ListGames(models.GameFilter{})
}

// ListGames returns the games matching filter ordered by name
func (db *DB) ListGames(filter models.GameFilter) ([]models.Game, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.InstalledOnly {
		where = append(where, "is_installed = 1")
	}
	if filter.UnfetchedOnly {
		where = append(where, "metadata_fetched = 0")
	}
	if filter.Search != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}

	query := "SELECT " + gameColumns + " FROM games"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name COLLATE NOCASE, id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	games := []models.Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, *game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}

	return games, nil
}

// RemoveGame deletes a game; auxiliary rows go with it
func (db *DB) RemoveGame(id int64) error {
	result, err := db.conn.Exec("DELETE FROM games WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove game: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to remove game %d: %w", id, ErrNotFound)
	}
	return nil
}

// ClearAllMetadata resets every metadata column and the fetched flag so the
// next run refetches everything. Playtime and install data are kept.
func (db *DB) ClearAllMetadata() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE games SET
			genre = NULL,
			description = NULL,
			release_date = NULL,
			rating = 0,
			metacritic = 0,
			esrb_rating = NULL,
			poster_url = NULL,
			poster_path = NULL,
			background_url = NULL,
			platforms = NULL,
			developers = NULL,
			publishers = NULL,
			metadata_fetched = 0,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	for _, table := range auxTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata clear: %w", err)
	}
	return nil
}

// ResetMetadataFetched flips the fetched flag only, keeping stored metadata
// until the next fetch overwrites it.
func (db *DB) ResetMetadataFetched() (int64, error) {
	result, err := db.conn.Exec("UPDATE games SET metadata_fetched = 0 WHERE metadata_fetched = 1")
	if err != nil {
		return 0, fmt.Errorf("failed to reset metadata flags: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset games: %w", err)
	}
	return n, nil
}

// AuxEntries returns the normalized rows of an auxiliary table for a game, in order
func (db *DB) AuxEntries(id int64, table string) ([]string, error) {
	var query string
	switch table {
	case "platforms":
		query = "SELECT platform FROM platforms WHERE game_id = ? ORDER BY platform"
	case "developers", "publishers":
		query = "SELECT name FROM " + table + " WHERE game_id = ? ORDER BY position"
	default:
		return nil, fmt.Errorf("unknown auxiliary table: %s", table)
	}

	rows, err := db.conn.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	entries := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		entries = append(entries, v)
	}
	return entries, rows.Err()
}

func replaceAux(tx *sql.Tx, id int64, table string, values []string) error {
	if _, err := tx.Exec("DELETE FROM "+table+" WHERE game_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	for i, v := range values {
		var err error
		if table == "platforms" {
			_, err = tx.Exec("INSERT OR IGNORE INTO platforms (game_id, platform) VALUES (?, ?)", id, v)
		} else {
			_, err = tx.Exec("INSERT INTO "+table+" (game_id, position, name) VALUES (?, ?, ?)", id, i, v)
		}
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func scanGame(row rowScanner) (*models.Game, error) {
	var game models.Game
	var (
		gameType, appID, epicAppID, installPath, launchCommand sql.NullString
		genre, description, releaseDate, esrb                  sql.NullString
		posterURL, posterPath, backgroundURL                   sql.NullString
		platforms, developers, publishers                      sql.NullString
		rating                                                 sql.NullFloat64
		metacritic, playtime                                   sql.NullInt64
		isInstalled, fetched                                   sql.NullBool
		lastPlayed, createdAt, updatedAt                       sql.NullTime
	)

	err := row.Scan(
		&game.ID, &game.Name, &gameType, &appID, &epicAppID, &installPath, &launchCommand,
		&isInstalled, &genre, &description, &releaseDate, &rating, &metacritic, &esrb,
		&posterURL, &posterPath, &backgroundURL, &platforms, &developers, &publishers,
		&playtime, &fetched, &lastPlayed, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	game.Type = models.GameType(gameType.String)
	game.AppID = appID.String
	game.EpicAppID = epicAppID.String
	game.InstallPath = installPath.String
	game.LaunchCommand = launchCommand.String
	game.IsInstalled = isInstalled.Bool
	game.Genre = genre.String
	game.Description = description.String
	game.ReleaseDate = releaseDate.String
	game.Rating = rating.Float64
	game.Metacritic = int(metacritic.Int64)
	game.ESRBRating = esrb.String
	game.PosterURL = posterURL.String
	game.PosterPath = posterPath.String
	game.BackgroundURL = backgroundURL.String
	game.Platforms = splitList(platforms.String)
	game.Developers = splitList(developers.String)
	game.Publishers = splitList(publishers.String)
	game.Playtime = int(playtime.Int64)
	game.MetadataFetched = fetched.Bool
	if lastPlayed.Valid {
		t := lastPlayed.Time
		game.LastPlayed = &t
	}
	game.CreatedAt = timeOrZero(createdAt)
	game.UpdatedAt = timeOrZero(updatedAt)

	return &game, nil
}

type setClause struct {
	columns []string
	args    []any
}

func (s *setClause) add(column string, value any) {
	s.columns = append(s.columns, column+" = ?")
	s.args = append(s.args, value)
}

func (s *setClause) addString(column string, value *string) {
	if value != nil {
		s.add(column, *value)
	}
}

func (s *setClause) addBool(column string, value *bool) {
	if value != nil {
		s.add(column, *value)
	}
}

func (s *setClause) addList(column string, value *[]string) {
	if value != nil {
		s.add(column, joinList(*value))
	}
}

// joinList encodes a list column as a JSON array so entries may contain commas
func joinList(values []string) string {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return string(raw)
}

// splitList never returns nil. Rows written before the JSON encoding are
// still comma separated.
func splitList(raw string) []string {
	out := []string{}
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			if out == nil {
				out = []string{}
			}
			return out
		}
		out = []string{}
	}
	for _, part := range strings.Split(raw, legacySeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timeOrZero(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}
