package lifecycle

import (
	"fmt"

	"github.com/prowlkit/prowl/internal/sut"
)

// UnexpectedOutcomeError is a service response that contradicts the
// model's expectation: an operation that should have succeeded was
// rejected, or an expected rejection came back with the wrong kind (or
// succeeded). It always fails the run and carries a stable signature
// so shrinking preserves the exact divergence.
type UnexpectedOutcomeError struct {
	// Op is the operation that diverged ("create user", "login", ...).
	Op string

	// Name is the account the operation targeted.
	Name string

	// Expected and Got classify the outcomes (KindNone = success).
	Expected sut.FailureKind
	Got      sut.FailureKind

	// Err is the underlying service error, nil when the divergence is
	// an unexpected success.
	Err error
}

func (e *UnexpectedOutcomeError) Error() string {
	return fmt.Sprintf("%s %s: expected %s, got %s: %v",
		e.Op, e.Name, describeKind(e.Expected), describeKind(e.Got), e.Err)
}

func (e *UnexpectedOutcomeError) Unwrap() error { return e.Err }

// FailureSignature implements machine.Signatured. The signature names
// what actually happened, not what was expected: two different rules
// hitting the same wrong outcome shrink toward each other.
func (e *UnexpectedOutcomeError) FailureSignature() string {
	return "unexpected/" + describeKind(e.Got)
}

func describeKind(k sut.FailureKind) string {
	if k == sut.KindNone {
		return "success"
	}
	return string(k)
}

// expect compares the classified outcome of a client call against the
// model's expectation.
func expect(op, name string, want sut.FailureKind, err error) error {
	got := sut.KindOf(err)
	if got == want {
		return nil
	}
	return &UnexpectedOutcomeError{Op: op, Name: name, Expected: want, Got: got, Err: err}
}
