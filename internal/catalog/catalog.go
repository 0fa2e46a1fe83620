// internal/catalog/catalog.go
//
// Server-side song lookup. Guests play levels from the local table;
// signed-in players play provider-backed levels, with metadata fetched via
// their linked provider token on first access and cached after. Failure
// classification is part of the contract: the handler maps each error here
// onto a distinct HTTP answer so the client can pick the right remediation.

package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/davidgrc/songdle/internal/provider"
	"github.com/davidgrc/songdle/internal/puzzle"
	"github.com/davidgrc/songdle/internal/store"
)

// MaxLevel bounds the regular level range. Level 0 is the daily challenge.
const MaxLevel = 30

var (
	// ErrNotFound: the level id is outside the catalog entirely.
	ErrNotFound = errors.New("catalog: level not found")

	// ErrNeedsLink: the player has no working linked music account.
	ErrNeedsLink = errors.New("catalog: music account link required")

	// ErrNeedsUpgrade: a guest asked for a members-only level.
	ErrNeedsUpgrade = errors.New("catalog: account registration required")
)

// TrackFetcher is the provider surface the catalog needs.
type TrackFetcher interface {
	GetTrack(ctx context.Context, trackID, bearer string) (*provider.Track, error)
}

// Service resolves levels to songs.
type Service struct {
	store    *store.Store
	provider TrackFetcher
}

func New(st *store.Store, tf TrackFetcher) *Service {
	return &Service{store: st, provider: tf}
}

// SongForLevel resolves a level for the given player (nil user = guest).
// A nil song with a nil error means the level is valid but has no song
// assigned yet.
func (s *Service) SongForLevel(ctx context.Context, level puzzle.LevelID, user *store.User) (*store.Song, error) {
	if level.Guest {
		sg, err := s.store.LocalSongByLevel(ctx, level.Number)
		if errors.Is(err, store.ErrNotFound) {
			if level.Number >= 1 && level.Number <= MaxLevel {
				return nil, nil
			}
			return nil, ErrNotFound
		}
		return sg, err
	}

	if user == nil {
		return nil, ErrNeedsUpgrade
	}

	sg, err := s.store.ProviderSongByLevel(ctx, level.Number)
	if errors.Is(err, store.ErrNotFound) {
		if level.Number >= 0 && level.Number <= MaxLevel {
			return nil, nil
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sg.Complete() {
		return sg, nil
	}

	// Metadata not cached yet; fetch with the player's provider link.
	if user.ProviderToken == "" {
		return nil, ErrNeedsLink
	}
	track, err := s.provider.GetTrack(ctx, sg.ID, user.ProviderToken)
	switch {
	case errors.Is(err, provider.ErrTokenExpired):
		return nil, ErrNeedsLink
	case errors.Is(err, provider.ErrTrackUnavailable):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}

	sg.Title = track.Title
	sg.Artists = track.Artists
	sg.Album = track.Album
	sg.Year = track.Year
	sg.Genre = track.Genre
	sg.Audio = track.Preview
	sg.ImageURL = track.ImageURL
	if err := s.store.CacheProviderSong(ctx, sg); err != nil {
		// Serve the fetched song anyway; only the cache write failed.
		log.Warn().Err(err).Int("level", level.Number).Msg("provider song cache write failed")
	}
	return sg, nil
}
