// internal/store/schema.go
//
// Embedded schema migrations. Applied in order, recorded in _migrations so
// re-runs are no-ops; statements per migration run inside one transaction.

package store

import (
	"database/sql"
	"fmt"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "0001_users",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			username             TEXT NOT NULL UNIQUE,
			email                TEXT NOT NULL UNIQUE,
			password_hash        TEXT NOT NULL,
			created_at           TEXT NOT NULL,
			total_score          INTEGER NOT NULL DEFAULT 0,
			games_played         INTEGER NOT NULL DEFAULT 0,
			last_daily_completed TEXT,
			provider_token       TEXT
		);`,
	},
	{
		name: "0002_songs",
		sql: `
		CREATE TABLE IF NOT EXISTS local_songs (
			level     INTEGER PRIMARY KEY,
			id        TEXT NOT NULL,
			title     TEXT NOT NULL,
			artists   TEXT NOT NULL,
			album     TEXT NOT NULL,
			year      INTEGER NOT NULL,
			genre     TEXT NOT NULL,
			audio     TEXT NOT NULL,
			image_url TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS provider_songs (
			level     INTEGER PRIMARY KEY,
			id        TEXT NOT NULL,
			title     TEXT,
			artists   TEXT,
			album     TEXT,
			year      INTEGER,
			genre     TEXT,
			audio     TEXT,
			image_url TEXT
		);`,
	},
	{
		name: "0003_scores",
		sql: `
		CREATE TABLE IF NOT EXISTS scores (
			user_id    TEXT NOT NULL REFERENCES users(id),
			level      INTEGER NOT NULL,
			score      INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(user_id, level)
		);`,
	},
}

// Migrate applies pending migrations.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	for _, m := range migrations {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, m.name).Scan(&done)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.name, err)
		}
	}
	return nil
}
