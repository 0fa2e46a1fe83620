// internal/store/store.go
//
// SQLite persistence for the songdle service: users, the two song catalogs
// (local levels for guests, provider-backed levels for signed-in players)
// and the score ledger. The ledger is idempotent by construction: one row
// per (user, level), enforced by a unique index, with conflicts reported to
// the caller instead of raising.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRecorded reports a second score submission for a level the user
// already has a row for.
var ErrAlreadyRecorded = errors.New("store: score already recorded for level")

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB { return s.db }

// ------------------------------- users -------------------------------------

// User is a row of the users table.
type User struct {
	ID                 string
	Username           string
	Email              string
	PasswordHash       string
	CreatedAt          time.Time
	TotalScore         int
	GamesPlayed        int
	LastDailyCompleted string // "2006-01-02", empty if never
	ProviderToken      string // opaque linked music-account token, empty if unlinked
}

// DailyCompletedToday reports whether the user already finished today's
// challenge.
func (u *User) DailyCompletedToday(now time.Time) bool {
	return u.LastDailyCompleted == now.UTC().Format("2006-01-02")
}

// CreateUser inserts a new user with a fresh id.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?,?,?,?,?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+`WHERE lower(email)=lower(?)`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+`WHERE id=?`, id))
}

func (s *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM users WHERE lower(username)=lower(?) OR lower(email)=lower(?)`,
		username, email).Scan(&n)
	return n > 0, err
}

// SetProviderToken stores (or clears) the user's linked music-account token.
func (s *Store) SetProviderToken(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET provider_token=? WHERE id=?`, token, userID)
	return err
}

const userSelect = `
	SELECT id, username, email, password_hash, created_at, total_score,
	       games_played, COALESCE(last_daily_completed,''), COALESCE(provider_token,'')
	FROM users `

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created,
		&u.TotalScore, &u.GamesPlayed, &u.LastDailyCompleted, &u.ProviderToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

// ------------------------------- ledger -------------------------------------

// RecordScore writes one completion for (user, level) and on first write
// folds the score into the user's totals. A duplicate returns
// ErrAlreadyRecorded and changes nothing.
func (s *Store) RecordScore(ctx context.Context, userID string, level, score int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO scores (user_id, level, score, created_at)
		VALUES (?,?,?,?)`,
		userID, level, score, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRecorded
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_score = total_score + ?, games_played = games_played + 1
		WHERE id=?`, score, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkDailyCompleted stamps today's date; a repeat on the same day returns
// ErrAlreadyRecorded.
func (s *Store) MarkDailyCompleted(ctx context.Context, userID string, now time.Time) error {
	date := now.UTC().Format("2006-01-02")
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_daily_completed=?
		WHERE id=? AND COALESCE(last_daily_completed,'') <> ?`,
		date, userID, date)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRecorded
	}
	return nil
}

// RankingRow is one line of the leaderboard.
type RankingRow struct {
	Username        string `json:"username"`
	TotalScore      int    `json:"total_score"`
	GamesPlayed     int    `json:"games_played"`
	LevelsCompleted int    `json:"levels_completed"`
}

// Ranking returns the top players by total score.
func (s *Store) Ranking(ctx context.Context, limit int) ([]RankingRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.username, u.total_score, u.games_played,
		       (SELECT COUNT(1) FROM scores sc WHERE sc.user_id=u.id AND sc.score > 0)
		FROM users u
		ORDER BY u.total_score DESC, u.username ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RankingRow, 0, limit)
	for rows.Next() {
		var r RankingRow
		if err := rows.Scan(&r.Username, &r.TotalScore, &r.GamesPlayed, &r.LevelsCompleted); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ------------------------------- songs --------------------------------------

// Song is a catalog row. Local songs carry the audio payload inline;
// provider songs cache metadata fetched with a user's token.
type Song struct {
	ID       string
	Level    int
	Title    string
	Artists  string
	Album    string
	Year     int
	Genre    string
	Audio    string
	ImageURL string
}

// Complete reports whether the cached metadata is servable without a
// provider fetch.
func (sg *Song) Complete() bool {
	return sg.Title != "" && sg.Artists != "" && sg.Audio != "" && sg.ImageURL != ""
}

func (s *Store) LocalSongByLevel(ctx context.Context, level int) (*Song, error) {
	return s.scanSong(s.db.QueryRowContext(ctx, `
		SELECT id, level, title, artists, album, year, genre, audio, image_url
		FROM local_songs WHERE level=?`, level))
}

func (s *Store) ProviderSongByLevel(ctx context.Context, level int) (*Song, error) {
	return s.scanSong(s.db.QueryRowContext(ctx, `
		SELECT id, level, COALESCE(title,''), COALESCE(artists,''), COALESCE(album,''),
		       COALESCE(year,0), COALESCE(genre,''), COALESCE(audio,''), COALESCE(image_url,'')
		FROM provider_songs WHERE level=?`, level))
}

// SongByID looks a song up across both catalogs, local first.
func (s *Store) SongByID(ctx context.Context, id string) (*Song, error) {
	sg, err := s.scanSong(s.db.QueryRowContext(ctx, `
		SELECT id, level, title, artists, album, year, genre, audio, image_url
		FROM local_songs WHERE id=?`, id))
	if err == nil {
		return sg, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.scanSong(s.db.QueryRowContext(ctx, `
		SELECT id, level, COALESCE(title,''), COALESCE(artists,''), COALESCE(album,''),
		       COALESCE(year,0), COALESCE(genre,''), COALESCE(audio,''), COALESCE(image_url,'')
		FROM provider_songs WHERE id=?`, id))
}

// CacheProviderSong fills in metadata fetched from the provider so later
// loads skip the remote call.
func (s *Store) CacheProviderSong(ctx context.Context, sg *Song) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE provider_songs
		SET title=?, artists=?, album=?, year=?, genre=?, audio=?, image_url=?
		WHERE level=?`,
		sg.Title, sg.Artists, sg.Album, sg.Year, sg.Genre, sg.Audio, sg.ImageURL, sg.Level)
	return err
}

// AssignProviderSong binds a provider track id to a level, clearing any
// cached metadata. Used for seeding and the daily rotation.
func (s *Store) AssignProviderSong(ctx context.Context, level int, trackID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_songs (level, id) VALUES (?,?)
		ON CONFLICT(level) DO UPDATE SET
			id=excluded.id, title=NULL, artists=NULL, album=NULL,
			year=NULL, genre=NULL, audio=NULL, image_url=NULL`,
		level, trackID)
	return err
}

// SeedLocalSongs loads the bundled guest catalog. Existing rows are left
// alone so a restart never clobbers a hand-edited level.
func (s *Store) SeedLocalSongs(ctx context.Context, songs []Song) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, sg := range songs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO local_songs
				(id, level, title, artists, album, year, genre, audio, image_url)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			sg.ID, sg.Level, sg.Title, sg.Artists, sg.Album, sg.Year, sg.Genre, sg.Audio, sg.ImageURL)
		if err != nil {
			return fmt.Errorf("store: seed local song %q: %w", sg.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) scanSong(row *sql.Row) (*Song, error) {
	var sg Song
	err := row.Scan(&sg.ID, &sg.Level, &sg.Title, &sg.Artists, &sg.Album,
		&sg.Year, &sg.Genre, &sg.Audio, &sg.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan song: %w", err)
	}
	return &sg, nil
}
