// internal/puzzle/load_failure.go
//
// Failure taxonomy for puzzle loading. Classification is mandatory: the
// round's caller picks a remediation per kind, so a forbidden response must
// say whether the fix is linking a music account or upgrading to a real
// account, and an expired session must not look like a network blip.

package puzzle

import "fmt"

// FailureKind classifies why a puzzle load failed.
type FailureKind string

const (
	FailNeedsLink       FailureKind = "needs_link"       // no linked external music account
	FailNeedsUpgrade    FailureKind = "needs_upgrade"    // guest account, registration required
	FailNotFound        FailureKind = "not_found"        // level does not exist
	FailUnauthenticated FailureKind = "unauthenticated"  // credential missing or expired
	FailNetwork         FailureKind = "network"          // transport error, retryable
	FailUnknown         FailureKind = "unknown"
)

// Remediation names the user-facing fix for a failure kind.
func (k FailureKind) Remediation() string {
	switch k {
	case FailNeedsLink:
		return "link your music account"
	case FailNeedsUpgrade:
		return "register an account"
	case FailUnauthenticated:
		return "sign in again"
	case FailNetwork:
		return "retry"
	default:
		return "try another level"
	}
}

// LoadFailure is a classified puzzle-load error.
type LoadFailure struct {
	Kind FailureKind
	Err  error // underlying cause, may be nil
}

func (f *LoadFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("puzzle: load failed (%s): %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("puzzle: load failed (%s)", f.Kind)
}

func (f *LoadFailure) Unwrap() error { return f.Err }
