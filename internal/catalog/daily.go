package catalog

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/davidgrc/songdle/internal/puzzle"
)

// DateKey returns YYYY-MM-DD in UTC, the granularity of the daily song.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// TrackIndex returns a deterministic index for a date using
// HMAC(salt, YYYY-MM-DD) % poolLen, so every server instance agrees on the
// day's pick without coordinating.
func TrackIndex(date time.Time, salt string, poolLen int) int {
	if poolLen <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	n := binary.BigEndian.Uint64(sum[:8])
	return int(n % uint64(poolLen))
}

// RotateDaily assigns today's song to the daily level from the given track
// pool. Reassigning the same track is harmless; a changed track clears the
// cached metadata so the next load backfills it.
func (s *Service) RotateDaily(ctx context.Context, pool []string, salt string, now time.Time) error {
	if len(pool) == 0 {
		return nil
	}
	trackID := pool[TrackIndex(now, salt, len(pool))]
	cur, err := s.store.ProviderSongByLevel(ctx, puzzle.DailyLevel)
	if err == nil && cur.ID == trackID {
		return nil
	}
	return s.store.AssignProviderSong(ctx, puzzle.DailyLevel, trackID)
}
