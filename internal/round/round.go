// internal/round/round.go
//
// The game round state machine: one playthrough of a level from puzzle load
// to a terminal outcome.
//
// The original flow drove progression from timer callbacks mutating shared
// flags; here there is exactly one authoritative State guarded by one mutex,
// and every timer callback is a scheduled transition that re-checks a
// generation counter before touching anything, so a timer surviving past
// teardown is a no-op rather than a mutation of a discarded round.
//
// Transitions:
//
//	Loading → Ready | LoadError
//	Ready → Listening (start, user gesture)
//	Listening → AwaitingAnswer (window elapses)
//	AwaitingAnswer → Listening (replay) | Evaluating (submit)
//	Evaluating → Correct | AwaitingAnswer(+1 attempt) | Exhausted
//	{Ready,Listening,AwaitingAnswer} → GivenUp
package round

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/davidgrc/songdle/internal/audio"
	"github.com/davidgrc/songdle/internal/completion"
	"github.com/davidgrc/songdle/internal/hints"
	"github.com/davidgrc/songdle/internal/puzzle"
	"github.com/davidgrc/songdle/internal/scoring"
)

// Catalog fetches the puzzle for a level. A nil puzzle with a nil error is a
// successful empty load: the level exists but has no song assigned. Failures
// must be classified as *puzzle.LoadFailure.
type Catalog interface {
	Load(ctx context.Context, level puzzle.LevelID, credential string) (*puzzle.Puzzle, error)
}

// Verdict is the judge's interpretation of one guess.
type Verdict struct {
	Correct bool
	Answer  *puzzle.AnswerFields // canonical fields, set on a correct guess
}

// Judge submits a guess to the remote judge. Comparison semantics are the
// judge's policy; the round only interprets the verdict. A returned error is
// a transport failure, never an incorrect answer.
type Judge interface {
	Check(ctx context.Context, level puzzle.LevelID, answer string) (Verdict, error)
}

// Revealer fetches the canonical answer for display when a round ends
// without a correct guess.
type Revealer interface {
	Reveal(ctx context.Context, songID string) (puzzle.AnswerFields, error)
}

// Config carries the tunable constants of a round. Confirm them against the
// deployed judge and ledger before trusting the numbers.
type Config struct {
	MaxAttempts int
	WindowFloor time.Duration // first attempt's playback window
	WindowStep  time.Duration // growth per wrong attempt
	HintDelay   time.Duration // pause before auto-replay after a miss
	Schedule    hints.Schedule
	Scoring     scoring.Policy
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 6
	}
	if c.WindowFloor == 0 {
		c.WindowFloor = 3 * time.Second
	}
	if c.WindowStep == 0 {
		c.WindowStep = 2 * time.Second
	}
	if c.HintDelay == 0 {
		c.HintDelay = time.Second
	}
	if c.Schedule == nil {
		c.Schedule = hints.Default
	}
	if c.Scoring == (scoring.Policy{}) {
		c.Scoring = scoring.Default
	}
	return c
}

// Deps are the round's collaborators.
type Deps struct {
	Catalog  Catalog
	Judge    Judge
	Revealer Revealer
	Recorder completion.Recorder
	Audio    *audio.Controller
}

// Round drives one playthrough. All methods are safe for concurrent use;
// commands are serialized on an internal mutex.
type Round struct {
	mu   sync.Mutex
	id   string
	cfg  Config
	deps Deps

	level      puzzle.LevelID
	credential string

	state    State
	failure  *puzzle.LoadFailure
	puz      *puzzle.Puzzle
	attempt  int
	window   time.Duration
	revealed []hints.Key
	quarters int

	canReplay       bool
	awaitingGesture bool // blocked playback, manual start re-armed
	score           int
	alreadyPlayed   bool
	message         string

	gen       int // bumped on teardown and restart; timers check it
	hintTimer *time.Timer
	closed    bool
}

// Snapshot is a read-only view for the caller's UI.
type Snapshot struct {
	ID              string
	Level           puzzle.LevelID
	State           State
	Failure         *puzzle.LoadFailure
	Puzzle          *puzzle.Puzzle
	Attempt         int
	MaxAttempts     int
	Window          time.Duration
	RevealedHints   []hints.Key
	ImageQuarters   int
	CanReplay       bool
	AwaitingGesture bool
	Score           int
	AlreadyPlayed   bool
	Message         string
}

// New constructs a round. Call Begin to load the level.
func New(cfg Config, deps Deps) *Round {
	return &Round{id: uuid.NewString(), cfg: cfg.withDefaults(), deps: deps, state: StateLoading}
}

// Begin loads the puzzle for the level and enters Ready or LoadError.
// No retries happen automatically; Retry re-enters loading explicitly.
func (r *Round) Begin(ctx context.Context, level puzzle.LevelID, credential string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.level = level
	r.credential = credential
	return r.loadLocked(ctx)
}

func (r *Round) loadLocked(ctx context.Context) error {
	r.gen++
	r.deps.Audio.Stop()
	r.resetLocked()
	r.state = StateLoading

	puz, err := r.deps.Catalog.Load(ctx, r.level, r.credential)
	if err != nil {
		var lf *puzzle.LoadFailure
		if !errors.As(err, &lf) {
			lf = &puzzle.LoadFailure{Kind: puzzle.FailUnknown, Err: err}
		}
		r.failure = lf
		r.state = StateLoadError
		r.message = "Could not load the level: " + lf.Kind.Remediation()
		return lf
	}
	r.puz = puz
	r.state = StateReady
	if puz == nil {
		r.message = "No song assigned to this level"
	} else {
		r.message = fmt.Sprintf("Level %d — press play to listen", r.level.Number)
	}
	return nil
}

func (r *Round) resetLocked() {
	r.failure = nil
	r.puz = nil
	r.attempt = 1
	r.window = r.cfg.WindowFloor
	r.revealed = nil
	r.quarters = 1
	r.canReplay = false
	r.awaitingGesture = false
	r.score = 0
	r.alreadyPlayed = false
	r.message = ""
	if r.hintTimer != nil {
		r.hintTimer.Stop()
		r.hintTimer = nil
	}
}

// Start begins the first listen. Required as an explicit command because the
// first play needs a user gesture. Also re-arms playback after a blocked
// attempt.
func (r *Round) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state.Terminal() {
		return nil
	}
	if r.state != StateReady && !(r.state == StateAwaitingAnswer && r.awaitingGesture) {
		return ErrBadState
	}
	if r.puz == nil {
		return ErrNoPuzzle
	}
	return r.enterListeningLocked()
}

// Replay plays the current window again without consuming an attempt.
// Permitted only once the window has elapsed at least once.
func (r *Round) Replay(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state.Terminal() {
		return nil
	}
	if r.state != StateAwaitingAnswer || !r.canReplay {
		return ErrBadState
	}
	return r.enterListeningLocked()
}

// enterListeningLocked starts the current window. A blocked play attempt is
// recoverable: the state reverts and a manual start is re-armed.
func (r *Round) enterListeningLocked() error {
	prev := r.state
	r.state = StateListening
	gen := r.gen
	err := r.deps.Audio.PlayWindow(r.puz.AudioSource, r.window, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen != gen || r.state != StateListening {
			return
		}
		r.state = StateAwaitingAnswer
		r.canReplay = true
	})
	if err != nil {
		r.state = prev
		if errors.Is(err, audio.ErrBlocked) {
			r.awaitingGesture = true
			r.message = "Tap play to start the audio"
			return err
		}
		return err
	}
	r.awaitingGesture = false
	return nil
}

// Submit evaluates a guess. Empty input is rejected locally; a judge
// transport failure is surfaced without consuming an attempt.
func (r *Round) Submit(ctx context.Context, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state.Terminal() {
		return nil
	}
	if r.state != StateAwaitingAnswer {
		return ErrBadState
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		r.message = "Enter an answer"
		return ErrEmptyAnswer
	}

	r.state = StateEvaluating
	verdict, err := r.deps.Judge.Check(ctx, r.level, answer)
	if err != nil {
		r.state = StateAwaitingAnswer
		r.message = "Could not check your answer, try again"
		return fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}

	if verdict.Correct {
		r.finishCorrectLocked(ctx, verdict)
		return nil
	}
	if r.attempt >= r.cfg.MaxAttempts {
		r.finishLocked(ctx, StateExhausted, "Out of attempts")
		return nil
	}
	r.advanceAttemptLocked()
	return nil
}

// GiveUp surrenders the round at any point before evaluation. Same effects
// as exhaustion, score forced to zero.
func (r *Round) GiveUp(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state.Terminal() {
		return nil
	}
	switch r.state {
	case StateReady, StateListening, StateAwaitingAnswer:
	default:
		return ErrBadState
	}
	if r.hintTimer != nil {
		r.hintTimer.Stop()
		r.hintTimer = nil
	}
	r.finishLocked(ctx, StateGivenUp, "You gave up")
	return nil
}

// Retry re-enters loading after a load error.
func (r *Round) Retry(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state != StateLoadError {
		return ErrBadState
	}
	return r.loadLocked(ctx)
}

// Restart re-enters loading for the given level once the round is terminal.
func (r *Round) Restart(ctx context.Context, level puzzle.LevelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if !r.state.Terminal() {
		return ErrBadState
	}
	r.level = level
	return r.loadLocked(ctx)
}

// NextLevel advances to level+1, carrying the play mode forward.
func (r *Round) NextLevel(ctx context.Context) error {
	r.mu.Lock()
	next := puzzle.LevelID{Number: r.level.Number + 1, Guest: r.level.Guest}
	r.mu.Unlock()
	return r.Restart(ctx, next)
}

// Close tears the round down: stops audio, cancels pending timers, and makes
// every later timer fire a no-op. Must be called when the round's owner
// navigates away or replaces it.
func (r *Round) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.gen++
	if r.hintTimer != nil {
		r.hintTimer.Stop()
		r.hintTimer = nil
	}
	r.deps.Audio.Stop()
}

// Snapshot returns a copy of the externally visible round state.
func (r *Round) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:              r.id,
		Level:           r.level,
		State:           r.state,
		Failure:         r.failure,
		Puzzle:          r.puz,
		Attempt:         r.attempt,
		MaxAttempts:     r.cfg.MaxAttempts,
		Window:          r.window,
		RevealedHints:   append([]hints.Key(nil), r.revealed...),
		ImageQuarters:   r.quarters,
		CanReplay:       r.canReplay,
		AwaitingGesture: r.awaitingGesture,
		Score:           r.score,
		AlreadyPlayed:   r.alreadyPlayed,
		Message:         r.message,
	}
}

// finishCorrectLocked runs the terminal effects of a correct answer, in
// order: merge the reveal, compute the score, play the full track, record
// the completion.
func (r *Round) finishCorrectLocked(ctx context.Context, verdict Verdict) {
	if verdict.Answer != nil {
		r.puz.Reveal(*verdict.Answer)
	}
	r.score = r.cfg.Scoring.Score(r.attempt)
	r.state = StateCorrect
	r.message = fmt.Sprintf("Correct! %q by %s — %d points",
		r.puz.Answer.Title, r.puz.Answer.Artist, r.score)
	r.playFullLocked()
	r.recordLocked(ctx)
}

// finishLocked ends the round without a correct answer: reveal, full
// playback, then a zero-score completion record.
func (r *Round) finishLocked(ctx context.Context, terminal State, prefix string) {
	r.revealAnswerLocked(ctx)
	r.score = 0
	r.state = terminal
	if r.puz != nil && r.puz.Revealed {
		r.message = fmt.Sprintf("%s. The song was %q by %s",
			prefix, r.puz.Answer.Title, r.puz.Answer.Artist)
	} else {
		r.message = prefix
	}
	r.playFullLocked()
	r.recordLocked(ctx)
}

// advanceAttemptLocked applies a wrong attempt: bump the counter, grow the
// window, reveal the scheduled hint, then re-enter listening after a short
// user-readable delay. The delay is cancellable via the generation counter.
func (r *Round) advanceAttemptLocked() {
	r.attempt++
	r.window += r.cfg.WindowStep
	if e, ok := r.cfg.Schedule.ForAttempt(r.attempt); ok {
		r.revealed = append(r.revealed, e.Key)
		if e.Quarters > r.quarters {
			r.quarters = e.Quarters
		}
	}
	r.canReplay = false
	r.state = StateAwaitingAnswer
	r.message = fmt.Sprintf("Wrong answer — hint %d/%d revealed", r.attempt, r.cfg.MaxAttempts)

	gen := r.gen
	r.hintTimer = time.AfterFunc(r.cfg.HintDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen != gen || r.state != StateAwaitingAnswer {
			return
		}
		r.hintTimer = nil
		if err := r.enterListeningLocked(); err != nil && !errors.Is(err, audio.ErrBlocked) {
			log.Warn().Err(err).Str("round", r.id).Msg("auto replay failed")
		}
	})
}

func (r *Round) revealAnswerLocked(ctx context.Context) {
	if r.puz == nil || r.puz.Revealed || r.deps.Revealer == nil {
		return
	}
	a, err := r.deps.Revealer.Reveal(ctx, r.puz.ID)
	if err != nil {
		log.Warn().Err(err).Str("round", r.id).Msg("answer reveal failed")
		return
	}
	r.puz.Reveal(a)
}

func (r *Round) playFullLocked() {
	if r.puz == nil {
		return
	}
	if err := r.deps.Audio.PlayFull(r.puz.AudioSource); err != nil {
		log.Warn().Err(err).Str("round", r.id).Msg("full playback failed")
	}
}

// recordLocked writes the completion exactly once. An already-played signal
// suppresses the duplicate but never hides the score from the player.
func (r *Round) recordLocked(ctx context.Context) {
	if r.deps.Recorder == nil {
		return
	}
	err := r.deps.Recorder.Record(ctx, r.level.Number, r.score)
	if errors.Is(err, completion.ErrAlreadyPlayed) {
		r.alreadyPlayed = true
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("round", r.id).Msg("completion record failed")
	}
}
