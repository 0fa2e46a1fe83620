// internal/completion/completion.go
//
// Completion recording for terminal rounds. One contract, two backing
// policies: guests write to a session-local played/completed set, signed-in
// players submit to the remote ledger. The round stays agnostic to which one
// applies.
//
// Persistence here is best effort with exactly one attempt: a transport
// failure on the authenticated path is logged and swallowed so the terminal
// UI (and the just-computed score) is never blocked on it.

package completion

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/davidgrc/songdle/internal/session"
)

// ErrAlreadyPlayed reports that the level already has a recorded completion.
// Non-fatal: the duplicate write is suppressed, the score is still shown.
var ErrAlreadyPlayed = errors.New("completion: level already played")

// Recorder persists one terminal round's outcome for a level.
type Recorder interface {
	Record(ctx context.Context, level int, score int) error
}

// Ledger is the remote durable score store for authenticated players. It
// must return ErrAlreadyPlayed on a (user, level) conflict.
type Ledger interface {
	SubmitScore(ctx context.Context, level int, score int) error
}

// Guest session set names.
const (
	SetPlayed    = "played_levels"
	SetCompleted = "completed_levels"
)

// guestRecorder tracks play client-side for players with no identity.
type guestRecorder struct {
	store session.Store
}

// NewGuestRecorder builds a Recorder over a session-local store.
func NewGuestRecorder(store session.Store) Recorder {
	return &guestRecorder{store: store}
}

func (g *guestRecorder) Record(ctx context.Context, level int, score int) error {
	key := strconv.Itoa(level)
	if g.store.Has(SetPlayed, key) {
		return ErrAlreadyPlayed
	}
	g.store.Add(SetPlayed, key)
	if score > 0 {
		g.store.Add(SetCompleted, key)
	}
	return nil
}

// ledgerRecorder submits to the remote ledger, fire-and-forget.
type ledgerRecorder struct {
	ledger Ledger
}

// NewLedgerRecorder builds a Recorder over the remote ledger.
func NewLedgerRecorder(ledger Ledger) Recorder {
	return &ledgerRecorder{ledger: ledger}
}

func (l *ledgerRecorder) Record(ctx context.Context, level int, score int) error {
	err := l.ledger.SubmitScore(ctx, level, score)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyPlayed):
		return ErrAlreadyPlayed
	default:
		// One attempt, no retry. The round's terminal state stands.
		log.Warn().Err(err).Int("level", level).Int("score", score).
			Msg("score submission failed")
		return nil
	}
}

// ForMode selects the recorder for the current play mode.
func ForMode(guest bool, store session.Store, ledger Ledger) Recorder {
	if guest {
		return NewGuestRecorder(store)
	}
	return NewLedgerRecorder(ledger)
}
