// Package provider fetches track metadata from the external music provider
// using a player's already-linked bearer token. Token issuance and refresh
// (the OAuth handshake) happen elsewhere; this client treats the token as an
// inert string.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenExpired reports a rejected provider token; the player must
	// re-authenticate with the provider.
	ErrTokenExpired = errors.New("provider: token expired or invalid")

	// ErrTrackUnavailable reports a track the provider will not serve.
	ErrTrackUnavailable = errors.New("provider: track unavailable")
)

// Track is the provider metadata the catalog needs.
type Track struct {
	ID       string
	Title    string
	Artists  string
	Album    string
	Year     int
	Genre    string
	Preview  string // short audio preview URL
	ImageURL string
}

// Config holds provider client settings.
type Config struct {
	// APIURL is the provider API root, e.g. "https://api.spotify.com/v1".
	APIURL string

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// Client talks to the provider's track API.
type Client struct {
	api  string
	http *http.Client
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{api: strings.TrimRight(cfg.APIURL, "/"), http: hc}
}

// trackPayload mirrors the provider's track response.
type trackPayload struct {
	Name    string `json:"name"`
	Artists []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"release_date"`
		Images      []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	PreviewURL string `json:"preview_url"`
}

type artistPayload struct {
	Genres []string `json:"genres"`
}

// GetTrack fetches one track's metadata. The genre needs a second call for
// the lead artist; a failure there degrades to "Unknown" rather than
// failing the track.
func (c *Client) GetTrack(ctx context.Context, trackID, bearer string) (*Track, error) {
	var tp trackPayload
	if err := c.get(ctx, "/tracks/"+trackID, bearer, &tp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tp.Artists))
	for _, a := range tp.Artists {
		names = append(names, a.Name)
	}

	year := 0
	if len(tp.Album.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(tp.Album.ReleaseDate[:4])
	}

	genre := "Unknown"
	if len(tp.Artists) > 0 {
		var ap artistPayload
		if err := c.get(ctx, "/artists/"+tp.Artists[0].ID, bearer, &ap); err == nil && len(ap.Genres) > 0 {
			genre = ap.Genres[0]
		}
	}

	image := ""
	if len(tp.Album.Images) > 0 {
		image = tp.Album.Images[0].URL
	}

	return &Track{
		ID:       trackID,
		Title:    tp.Name,
		Artists:  strings.Join(names, ", "),
		Album:    tp.Album.Name,
		Year:     year,
		Genre:    genre,
		Preview:  tp.PreviewURL,
		ImageURL: image,
	}, nil
}

func (c *Client) get(ctx context.Context, path, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		// 403s here mean the linked token lacks access, not that the track
		// is gone; both remediate by relinking.
		return ErrTokenExpired
	case res.StatusCode == http.StatusNotFound:
		return ErrTrackUnavailable
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("provider: http %d on %s", res.StatusCode, path)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
