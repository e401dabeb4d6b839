package machine

import (
	"errors"
	"fmt"
)

// ErrNoApplicableRule signals that zero rules were applicable at a
// step. A correctly-built machine always keeps at least one rule
// eligible (the create class depends only on fresh draws), so this is
// a machine-definition bug, never a valid run outcome. It is surfaced
// as a scheduler error, not recorded as a run failure.
var ErrNoApplicableRule = errors.New("no applicable rule: machine definition bug")

// ErrStepNotApplicable is returned by Apply during replay when the
// recorded parameters no longer resolve - for example, a shrink
// candidate dropped the create that produced the principal a later
// step consumes. The candidate is discarded; the error never reaches
// the user.
var ErrStepNotApplicable = errors.New("step not applicable to current state")

// InvariantViolationError reports that the domain model and the SUT
// disagree. It always fails the run and triggers shrinking.
type InvariantViolationError struct {
	// Invariant is the name of the violated invariant.
	Invariant string

	// Detail is a human-readable description of the disagreement.
	Detail string
}

// Error implements the error interface.
func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Detail)
}

// FailureSignature returns the stable identity of this failure: the
// invariant name without the varying detail, so shrunk reproductions
// with different generated values still match the original failure.
func (e *InvariantViolationError) FailureSignature() string {
	return "invariant/" + e.Invariant
}

// Signatured is implemented by errors that carry a stable failure
// signature. The shrinker preserves a candidate only when it reproduces
// the same signature as the original failure.
type Signatured interface {
	FailureSignature() string
}

// signatureOf derives the failure signature for a step error: the
// error's own signature when it carries one, otherwise a generic
// signature keyed by the failing rule.
func signatureOf(err error, rule string) string {
	var sig Signatured
	if errors.As(err, &sig) {
		return sig.FailureSignature()
	}
	return "error/" + rule
}
