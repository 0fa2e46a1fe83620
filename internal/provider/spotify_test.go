package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(Config{APIURL: ts.URL, HTTPClient: ts.Client()})
}

func TestGetTrackAssemblesMetadata(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/tracks/t1":
			_, _ = w.Write([]byte(`{
				"name": "Paranoid Android",
				"artists": [{"id":"a1","name":"Radiohead"},{"id":"a2","name":"Someone"}],
				"album": {
					"name": "OK Computer",
					"release_date": "1997-05-21",
					"images": [{"url":"https://img/big.jpg"},{"url":"https://img/small.jpg"}]
				},
				"preview_url": "https://p/preview.mp3"
			}`))
		case "/artists/a1":
			_, _ = w.Write([]byte(`{"genres":["art rock","alternative"]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	tr, err := c.GetTrack(context.Background(), "t1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "Paranoid Android", tr.Title)
	assert.Equal(t, "Radiohead, Someone", tr.Artists)
	assert.Equal(t, 1997, tr.Year)
	assert.Equal(t, "art rock", tr.Genre)
	assert.Equal(t, "https://img/big.jpg", tr.ImageURL)
	assert.Equal(t, "https://p/preview.mp3", tr.Preview)
}

func TestGetTrackGenreDegradesToUnknown(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tracks/t1" {
			_, _ = w.Write([]byte(`{"name":"X","artists":[{"id":"a1","name":"Y"}],"album":{"name":"Z","release_date":"2001"}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	tr, err := c.GetTrack(context.Background(), "t1", "tok")
	require.NoError(t, err, "a genre lookup failure must not fail the track")
	assert.Equal(t, "Unknown", tr.Genre)
	assert.Equal(t, 2001, tr.Year)
}

func TestGetTrackClassification(t *testing.T) {
	for _, tc := range []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrTokenExpired},
		{http.StatusForbidden, ErrTokenExpired},
		{http.StatusNotFound, ErrTrackUnavailable},
	} {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := c.GetTrack(context.Background(), "t1", "tok")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}
