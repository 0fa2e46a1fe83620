package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle records play/stop calls.
type fakeHandle struct {
	mu      sync.Mutex
	playErr error
	playing bool
	stops   int
}

func (f *fakeHandle) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeHandle) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.stops++
}

func (f *fakeHandle) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

// fakeFactory hands out fakeHandles and remembers them in order.
type fakeFactory struct {
	mu      sync.Mutex
	handles []*fakeHandle
	nextErr error
	playErr error
}

func (f *fakeFactory) open(source string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	h := &fakeHandle{playErr: f.playErr}
	f.handles = append(f.handles, h)
	return h, nil
}

func TestValidateSource(t *testing.T) {
	assert.NoError(t, ValidateSource("https://cdn.example.com/clip.mp3"))
	assert.NoError(t, ValidateSource("data:audio/mpeg;base64,AAAA"))

	for _, bad := range []string{
		"data:,",
		"data:audio/mpeg;base64,",
		"data:,AAAA",
		"data:audio/mpeg",
		"data:audio/mpeg;base64,AA,AA",
	} {
		assert.ErrorIs(t, ValidateSource(bad), ErrBadSource, bad)
	}
}

func TestExclusiveOwnership(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.open)

	require.NoError(t, c.PlayWindow("u", time.Hour, nil))
	require.NoError(t, c.PlayWindow("u", time.Hour, nil))
	require.NoError(t, c.PlayFull("u"))

	require.Len(t, f.handles, 3)
	assert.False(t, f.handles[0].isPlaying(), "first handle stopped by second window")
	assert.False(t, f.handles[1].isPlaying(), "second handle stopped by full playback")
	assert.True(t, f.handles[2].isPlaying())
	assert.True(t, c.Playing())

	c.Stop()
	assert.False(t, f.handles[2].isPlaying())
	assert.False(t, c.Playing())
}

func TestAutoStopFires(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.open)

	elapsed := make(chan struct{})
	require.NoError(t, c.PlayWindow("u", 10*time.Millisecond, func() { close(elapsed) }))

	select {
	case <-elapsed:
	case <-time.After(time.Second):
		t.Fatal("auto-stop never fired")
	}
	assert.False(t, f.handles[0].isPlaying())
	assert.False(t, c.Playing())
}

func TestAutoStopCancelledWhenSuperseded(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.open)

	fired := make(chan struct{}, 1)
	require.NoError(t, c.PlayWindow("u", 20*time.Millisecond, func() { fired <- struct{}{} }))
	require.NoError(t, c.PlayFull("u"))

	select {
	case <-fired:
		t.Fatal("superseded window's auto-stop still fired")
	case <-time.After(60 * time.Millisecond):
	}
	assert.True(t, f.handles[1].isPlaying(), "full playback keeps going")
}

func TestBlockedPlayIsRecoverable(t *testing.T) {
	f := &fakeFactory{playErr: ErrBlocked}
	c := NewController(f.open)

	err := c.PlayWindow("u", time.Hour, nil)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.False(t, c.Playing())

	// A later (user-gesture driven) attempt succeeds.
	f.playErr = nil
	require.NoError(t, c.PlayWindow("u", time.Hour, nil))
	assert.True(t, c.Playing())
}

func TestBadSourceRejectedBeforeOpen(t *testing.T) {
	f := &fakeFactory{nextErr: errors.New("should not be reached")}
	c := NewController(f.open)
	assert.ErrorIs(t, c.PlayWindow("data:nope", time.Second, nil), ErrBadSource)
	assert.ErrorIs(t, c.PlayFull("data:nope"), ErrBadSource)
	assert.Empty(t, f.handles)
}
