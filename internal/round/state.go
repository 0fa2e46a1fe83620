// internal/round/state.go
//
// Round lifecycle states and command errors.

package round

import "errors"

// State is the single authoritative phase of a round.
type State string

const (
	StateLoading        State = "loading"
	StateReady          State = "ready"
	StateListening      State = "listening"
	StateAwaitingAnswer State = "awaiting_answer"
	StateEvaluating     State = "evaluating"
	StateCorrect        State = "correct"
	StateExhausted      State = "exhausted"
	StateGivenUp        State = "given_up"
	StateLoadError      State = "load_error"
)

// Terminal reports whether the state admits no further play.
func (s State) Terminal() bool {
	switch s {
	case StateCorrect, StateExhausted, StateGivenUp, StateLoadError:
		return true
	}
	return false
}

var (
	// ErrBadState reports a command issued in a phase that does not
	// accept it. Commands arriving after a terminal state are no-ops,
	// not errors.
	ErrBadState = errors.New("round: command not valid in current state")

	// ErrEmptyAnswer reports a submit with no content after trimming.
	// Local validation only; no state change, no attempt consumed.
	ErrEmptyAnswer = errors.New("round: empty answer")

	// ErrNoPuzzle reports a start on a level that loaded successfully
	// but has no song assigned.
	ErrNoPuzzle = errors.New("round: level has no song assigned")

	// ErrJudgeUnavailable reports a transport failure while checking an
	// answer. Never counted as a wrong attempt.
	ErrJudgeUnavailable = errors.New("round: answer judge unreachable")

	// ErrClosed reports a command on a torn-down round.
	ErrClosed = errors.New("round: closed")
)
