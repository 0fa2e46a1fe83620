// internal/scoring/scoring.go
//
// Scoring policy: a pure function from the attempt at which the correct
// answer was given to the score awarded. The constants mirror the deployed
// judge service; treat them as configuration rather than law.

package scoring

// Policy holds the scoring constants.
type Policy struct {
	Base  int // score for a first-attempt win
	Step  int // deduction per wrong attempt before the win
	Floor int // minimum score for any correct answer
}

// Default is the production policy: 1000 base, 150 per miss, floored at 100.
var Default = Policy{Base: 1000, Step: 150, Floor: 100}

// Score returns the score for a correct answer given at the provided attempt
// (1-based). It never goes below the floor. Exhausted and given-up rounds
// score zero; that is the round's decision, not the policy's.
func (p Policy) Score(attempt int) int {
	s := p.Base - (attempt-1)*p.Step
	if s < p.Floor {
		return p.Floor
	}
	return s
}
