package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidgrc/songdle/internal/catalog"
	"github.com/davidgrc/songdle/internal/client"
	"github.com/davidgrc/songdle/internal/completion"
	"github.com/davidgrc/songdle/internal/provider"
	"github.com/davidgrc/songdle/internal/puzzle"
	"github.com/davidgrc/songdle/internal/store"
)

type fakeFetcher struct {
	track *provider.Track
	err   error
}

func (f *fakeFetcher) GetTrack(ctx context.Context, trackID, bearer string) (*provider.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	t := *f.track
	t.ID = trackID
	return &t, nil
}

type fixture struct {
	ts    *httptest.Server
	store *store.Store
	api   *client.Client
}

func newFixture(t *testing.T, fetch catalog.TrackFetcher) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))
	st := store.New(db)

	if fetch == nil {
		fetch = &fakeFetcher{track: &provider.Track{
			Title: "Karma Police", Artists: "Radiohead", Album: "OK Computer",
			Year: 1997, Genre: "Rock", Preview: "https://p/karma.mp3",
			ImageURL: "https://p/karma.jpg",
		}}
	}
	srv := New(st, catalog.New(st, fetch), Config{JWTSecret: "test_secret"})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	require.NoError(t, st.SeedLocalSongs(context.Background(), []store.Song{{
		ID: "l1", Level: 1, Title: "Clocks", Artists: "Coldplay",
		Album: "A Rush of Blood to the Head", Year: 2002, Genre: "Alt rock",
		Audio: "https://cdn/clocks.mp3", ImageURL: "https://cdn/clocks.jpg",
	}}))

	return &fixture{
		ts:    ts,
		store: st,
		api:   client.New(client.Config{BaseURL: ts.URL + "/api/v1"}),
	}
}

// postJSON is for endpoints the engine client does not wrap (auth, daily).
func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func register(t *testing.T, f *fixture, username, email string) string {
	t.Helper()
	res := postJSON(t, f.ts.URL+"/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "hunter2hunter2",
	})
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestGuestLoadValidateAndReveal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	lvl, _ := puzzle.ParseLevelID("1_local")
	p, err := f.api.Load(ctx, lvl, "")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "https://cdn/clocks.mp3", p.AudioSource)
	assert.Equal(t, "Cloc...", p.Hints.TitleHint)
	assert.Empty(t, p.Answer.Title, "answer stays concealed on load")

	v, err := f.api.Check(ctx, lvl, "Clocks (Live)")
	require.NoError(t, err)
	assert.True(t, v.Correct)
	require.NotNil(t, v.Answer)
	assert.Equal(t, "Clocks", v.Answer.Title)

	v, err = f.api.Check(ctx, lvl, "yellow")
	require.NoError(t, err)
	assert.False(t, v.Correct)
	assert.Nil(t, v.Answer, "wrong guesses reveal nothing")

	ans, err := f.api.Reveal(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Coldplay", ans.Artist)
}

func TestGuestEmptyLevelAndBadID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	lvl, _ := puzzle.ParseLevelID("5_local")
	p, err := f.api.Load(ctx, lvl, "")
	require.NoError(t, err)
	assert.Nil(t, p, "valid level with no song is an empty load")

	res, err := http.Get(f.ts.URL + "/api/v1/songs/abc_local")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestMemberLevelClassification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.AssignProviderSong(ctx, 3, "track3"))
	lvl, _ := puzzle.ParseLevelID("3")

	// No account at all.
	_, err := f.api.Load(ctx, lvl, "")
	var lf *puzzle.LoadFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, puzzle.FailNeedsUpgrade, lf.Kind)

	// Garbage token.
	_, err = f.api.Load(ctx, lvl, "not-a-jwt")
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, puzzle.FailUnauthenticated, lf.Kind)

	// Account without a provider link.
	tok := register(t, f, "ana", "ana@example.com")
	_, err = f.api.Load(ctx, lvl, tok)
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, puzzle.FailNeedsLink, lf.Kind)

	// Linked account loads and the metadata gets cached.
	res := postJSON(t, f.ts.URL+"/api/v1/auth/provider-token", tok, map[string]string{"token": "spotify-tok"})
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	p, err := f.api.Load(ctx, lvl, tok)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1997, p.Hints.Year)

	sg, err := f.store.ProviderSongByLevel(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Karma Police", sg.Title)
}

func TestSubmitScoreGatingAndConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.AssignProviderSong(ctx, 3, "track3"))

	guest := client.New(client.Config{BaseURL: f.ts.URL + "/api/v1"})
	err := guest.SubmitScore(ctx, 3, 700)
	require.Error(t, err, "score submission needs a token")

	tok := register(t, f, "bo", "bo@example.com")
	member := client.New(client.Config{
		BaseURL:     f.ts.URL + "/api/v1",
		Credentials: client.StaticToken(tok),
	})
	require.NoError(t, member.SubmitScore(ctx, 3, 700))

	err = member.SubmitScore(ctx, 3, 1000)
	assert.ErrorIs(t, err, completion.ErrAlreadyPlayed, "replaying a level conflicts")

	// Guest-space ids are never recorded server-side.
	res := postJSON(t, f.ts.URL+"/api/v1/game/submit-score", tok,
		map[string]any{"level_id": "3_local", "score": 700})
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDailyCompleteOncePerDay(t *testing.T) {
	f := newFixture(t, nil)
	tok := register(t, f, "cal", "cal@example.com")

	res := postJSON(t, f.ts.URL+"/api/v1/game/daily/complete", tok, struct{}{})
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = postJSON(t, f.ts.URL+"/api/v1/game/daily/complete", tok, struct{}{})
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestAuthFlowAndRanking(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tok := register(t, f, "dee", "dee@example.com")

	// Duplicate registration conflicts.
	res := postJSON(t, f.ts.URL+"/api/v1/auth/register", "", map[string]string{
		"username": "dee", "email": "dee@example.com", "password": "hunter2hunter2",
	})
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	// Wrong password.
	res = postJSON(t, f.ts.URL+"/api/v1/auth/login", "", map[string]string{
		"email": "dee@example.com", "password": "wrong-password",
	})
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// /auth/me reflects recorded totals.
	u, err := f.store.UserByEmail(ctx, "dee@example.com")
	require.NoError(t, err)
	require.NoError(t, f.store.RecordScore(ctx, u.ID, 3, 850))

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	mres, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer mres.Body.Close()
	require.Equal(t, http.StatusOK, mres.StatusCode)
	var me struct {
		Username   string `json:"username"`
		TotalScore int    `json:"total_score"`
	}
	require.NoError(t, json.NewDecoder(mres.Body).Decode(&me))
	assert.Equal(t, "dee", me.Username)
	assert.Equal(t, 850, me.TotalScore)

	rres, err := http.Get(f.ts.URL + "/api/v1/ranking?limit=5")
	require.NoError(t, err)
	defer rres.Body.Close()
	var rank struct {
		Ranking []store.RankingRow `json:"ranking"`
	}
	require.NoError(t, json.NewDecoder(rres.Body).Decode(&rank))
	require.Len(t, rank.Ranking, 1)
	assert.Equal(t, 850, rank.Ranking[0].TotalScore)
}
