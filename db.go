// db.go
//
// Database helpers for the songdle server.
// Responsibilities:
//   - Opening the SQLite database file with safe defaults (WAL, busy timeout,
//     foreign keys).
//   - Seeding the local (guest) song catalog from a JSON file.
//
// Schema migrations themselves live in internal/store.

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/davidgrc/songdle/internal/store"
)

// openDB opens (and creates if missing) a SQLite database file.
//
// - Ensures the parent directory exists for relative DSNs (./data/app.db).
// - Configures busy timeout and WAL journaling mode.
// - Enforces foreign keys.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// seedSong is the JSON shape of one local catalog entry.
type seedSong struct {
	ID       string `json:"id"`
	Level    int    `json:"level"`
	Title    string `json:"title"`
	Artists  string `json:"artists"`
	Album    string `json:"album"`
	Year     int    `json:"year"`
	Genre    string `json:"genre"`
	Audio    string `json:"audio"`
	ImageURL string `json:"image_url"`
}

// seedLocalCatalog loads the guest song catalog from a JSON file. Existing
// rows are kept, so re-running on every start is safe.
func seedLocalCatalog(ctx context.Context, st *store.Store, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file %s: %w", path, err)
	}
	var entries []seedSong
	if err := json.Unmarshal(b, &entries); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}

	songs := make([]store.Song, 0, len(entries))
	for _, e := range entries {
		songs = append(songs, store.Song{
			ID: e.ID, Level: e.Level, Title: e.Title, Artists: e.Artists,
			Album: e.Album, Year: e.Year, Genre: e.Genre, Audio: e.Audio,
			ImageURL: e.ImageURL,
		})
	}
	if err := st.SeedLocalSongs(ctx, songs); err != nil {
		return err
	}
	log.Info().Int("songs", len(songs)).Str("file", path).Msg("local catalog seeded")
	return nil
}
