package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidgrc/songdle/internal/provider"
	"github.com/davidgrc/songdle/internal/puzzle"
	"github.com/davidgrc/songdle/internal/store"
)

type fakeFetcher struct {
	track *provider.Track
	err   error
	calls int
}

func (f *fakeFetcher) GetTrack(ctx context.Context, trackID, bearer string) (*provider.Track, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	t := *f.track
	t.ID = trackID
	return &t, nil
}

func newFixture(t *testing.T, tf TrackFetcher) (*Service, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))
	st := store.New(db)
	return New(st, tf), st
}

func linkedUser(t *testing.T, st *store.Store) *store.User {
	t.Helper()
	ctx := context.Background()
	u, err := st.CreateUser(ctx, "ana", "ana@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, st.SetProviderToken(ctx, u.ID, "tok"))
	u.ProviderToken = "tok"
	return u
}

func TestGuestLevelServedFromLocalCatalog(t *testing.T) {
	fetch := &fakeFetcher{}
	svc, st := newFixture(t, fetch)
	ctx := context.Background()

	require.NoError(t, st.SeedLocalSongs(ctx, []store.Song{{
		ID: "l1", Level: 1, Title: "Clocks", Artists: "Coldplay",
		Album: "A Rush of Blood to the Head", Year: 2002, Genre: "Alt rock",
		Audio: "https://cdn/clocks.mp3", ImageURL: "https://cdn/clocks.jpg",
	}}))

	lvl, err := puzzle.ParseLevelID("1_local")
	require.NoError(t, err)
	sg, err := svc.SongForLevel(ctx, lvl, nil)
	require.NoError(t, err)
	require.NotNil(t, sg)
	assert.Equal(t, "Clocks", sg.Title)
	assert.Zero(t, fetch.calls, "guest levels never touch the provider")
}

func TestGuestLevelWithoutSongIsEmptyNotError(t *testing.T) {
	svc, _ := newFixture(t, &fakeFetcher{})
	lvl, _ := puzzle.ParseLevelID("7_local")
	sg, err := svc.SongForLevel(context.Background(), lvl, nil)
	require.NoError(t, err)
	assert.Nil(t, sg)
}

func TestLevelOutsideCatalogNotFound(t *testing.T) {
	svc, _ := newFixture(t, &fakeFetcher{})
	lvl, _ := puzzle.ParseLevelID("99_local")
	_, err := svc.SongForLevel(context.Background(), lvl, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemberLevelRequiresAccount(t *testing.T) {
	svc, _ := newFixture(t, &fakeFetcher{})
	lvl, _ := puzzle.ParseLevelID("3")
	_, err := svc.SongForLevel(context.Background(), lvl, nil)
	assert.ErrorIs(t, err, ErrNeedsUpgrade)
}

func TestMemberLevelFetchesAndCaches(t *testing.T) {
	fetch := &fakeFetcher{track: &provider.Track{
		Title: "Lucy in the Sky", Artists: "The Beatles", Album: "Sgt. Pepper's",
		Year: 1967, Genre: "Rock", Preview: "https://p/preview.mp3",
		ImageURL: "https://p/cover.jpg",
	}}
	svc, st := newFixture(t, fetch)
	ctx := context.Background()
	u := linkedUser(t, st)

	require.NoError(t, st.AssignProviderSong(ctx, 3, "track3"))

	lvl, _ := puzzle.ParseLevelID("3")
	sg, err := svc.SongForLevel(ctx, lvl, u)
	require.NoError(t, err)
	assert.Equal(t, "Lucy in the Sky", sg.Title)
	assert.Equal(t, 1, fetch.calls)

	// Second load is served from the cache.
	sg, err = svc.SongForLevel(ctx, lvl, u)
	require.NoError(t, err)
	assert.Equal(t, "Lucy in the Sky", sg.Title)
	assert.Equal(t, 1, fetch.calls)
}

func TestMemberLevelWithoutProviderLink(t *testing.T) {
	svc, st := newFixture(t, &fakeFetcher{})
	ctx := context.Background()
	u, err := st.CreateUser(ctx, "bo", "bo@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, st.AssignProviderSong(ctx, 3, "track3"))

	lvl, _ := puzzle.ParseLevelID("3")
	_, err = svc.SongForLevel(ctx, lvl, u)
	assert.ErrorIs(t, err, ErrNeedsLink)
}

func TestExpiredProviderTokenAsksForRelink(t *testing.T) {
	svc, st := newFixture(t, &fakeFetcher{err: provider.ErrTokenExpired})
	ctx := context.Background()
	u := linkedUser(t, st)
	require.NoError(t, st.AssignProviderSong(ctx, 3, "track3"))

	lvl, _ := puzzle.ParseLevelID("3")
	_, err := svc.SongForLevel(ctx, lvl, u)
	assert.ErrorIs(t, err, ErrNeedsLink)
}

func TestDailyRotationIsDeterministic(t *testing.T) {
	fetch := &fakeFetcher{}
	svc, st := newFixture(t, fetch)
	ctx := context.Background()
	pool := []string{"a", "b", "c", "d", "e"}
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, svc.RotateDaily(ctx, pool, "salt", day))
	first, err := st.ProviderSongByLevel(ctx, puzzle.DailyLevel)
	require.NoError(t, err)

	// Same day, different wall-clock hour: same pick.
	require.NoError(t, svc.RotateDaily(ctx, pool, "salt", day.Add(9*time.Hour)))
	again, err := st.ProviderSongByLevel(ctx, puzzle.DailyLevel)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	assert.Equal(t, TrackIndex(day, "salt", len(pool)), TrackIndex(day.Add(9*time.Hour), "salt", len(pool)))
}

func TestDailyRotationClearsCacheOnChange(t *testing.T) {
	fetch := &fakeFetcher{track: &provider.Track{
		Title: "X", Artists: "Y", Album: "Z", Year: 2000,
		Preview: "https://p/x.mp3", ImageURL: "https://p/x.jpg",
	}}
	svc, st := newFixture(t, fetch)
	ctx := context.Background()
	u := linkedUser(t, st)

	require.NoError(t, st.AssignProviderSong(ctx, puzzle.DailyLevel, "old"))
	lvl, _ := puzzle.ParseLevelID("0")
	_, err := svc.SongForLevel(ctx, lvl, u)
	require.NoError(t, err)

	// Force a different pick by assigning directly, then confirm the cache
	// was dropped and the next load refetches.
	require.NoError(t, st.AssignProviderSong(ctx, puzzle.DailyLevel, "new"))
	sg, err := svc.SongForLevel(ctx, lvl, u)
	require.NoError(t, err)
	assert.Equal(t, "new", sg.ID)
	assert.Equal(t, 2, fetch.calls)
}
