// internal/audio/audio.go
//
// Playback control for a game round.
//
// The controller owns at most one live audio handle. Starting a new window
// or full playback always stops the prior handle first, and the auto-stop
// timer for a window is cancelled whenever a newer call supersedes it, so a
// stale timer can never stop the wrong handle. Stop is safe to call at any
// time and must be called on round teardown so playback cannot outlive the
// round.

package audio

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrBlocked reports a play attempt refused until a user gesture
	// (browser autoplay policy). Recoverable: the caller should re-arm a
	// manual start instead of failing the round.
	ErrBlocked = errors.New("audio: playback blocked, user gesture required")

	// ErrBadSource reports a structurally malformed embedded audio source.
	ErrBadSource = errors.New("audio: malformed embedded source")
)

// Handle is one live playable resource. Play starts from position zero;
// Stop halts and rewinds. Implementations are supplied by the embedder.
type Handle interface {
	Play() error
	Stop()
}

// Factory opens a handle for an audio source.
type Factory func(source string) (Handle, error)

// ValidateSource checks an audio source before any play attempt. Plain URLs
// pass through; embedded sources ("data:...") must declare a media type
// followed by a single comma-delimited payload.
func ValidateSource(src string) error {
	if !strings.HasPrefix(src, "data:") {
		return nil
	}
	rest := src[len("data:"):]
	if strings.Count(rest, ",") != 1 {
		return ErrBadSource
	}
	meta, payload, _ := strings.Cut(rest, ",")
	if meta == "" || payload == "" {
		return ErrBadSource
	}
	return nil
}

// Controller serializes ownership of the single playback handle.
type Controller struct {
	mu        sync.Mutex
	open      Factory
	handle    Handle
	stopTimer *time.Timer
}

func NewController(open Factory) *Controller {
	return &Controller{open: open}
}

// PlayWindow stops any active handle, starts the source from zero and arms
// an auto-stop after d. onElapsed, if non-nil, runs after the auto-stop
// fires; it does not run if the window is superseded or stopped early.
func (c *Controller) PlayWindow(source string, d time.Duration, onElapsed func()) error {
	if err := ValidateSource(source); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	h, err := c.open(source)
	if err != nil {
		return err
	}
	if err := h.Play(); err != nil {
		h.Stop()
		if errors.Is(err, ErrBlocked) {
			log.Debug().Dur("window", d).Msg("playback blocked, awaiting user gesture")
			return ErrBlocked
		}
		return err
	}
	c.handle = h
	c.stopTimer = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.handle != h {
			// Superseded meanwhile; nothing to do.
			c.mu.Unlock()
			return
		}
		h.Stop()
		c.handle = nil
		c.stopTimer = nil
		c.mu.Unlock()
		if onElapsed != nil {
			onElapsed()
		}
	})
	return nil
}

// PlayFull stops any active handle and plays the source untruncated.
func (c *Controller) PlayFull(source string) error {
	if err := ValidateSource(source); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	h, err := c.open(source)
	if err != nil {
		return err
	}
	if err := h.Play(); err != nil {
		h.Stop()
		if errors.Is(err, ErrBlocked) {
			return ErrBlocked
		}
		return err
	}
	c.handle = h
	return nil
}

// Stop halts playback, releases the handle and clears any pending auto-stop.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Playing reports whether a handle is currently live.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

func (c *Controller) stopLocked() {
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
}
