package sut

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FailureKind classifies a service rejection into the small set of
// outcomes the lifecycle rules reason about.
type FailureKind string

const (
	// KindUnknownPrincipal: the named account does not exist (code 192).
	KindUnknownPrincipal FailureKind = "unknown-principal"

	// KindAlreadyExists: an account with that name exists (code 493).
	KindAlreadyExists FailureKind = "already-exists"

	// KindAuthRejected: the session's credential was refused (code 516).
	KindAuthRejected FailureKind = "auth-rejected"

	// KindUnknown: the service rejected the statement for a reason the
	// tester has no expectation about. Always a run failure.
	KindUnknown FailureKind = "unknown"

	// KindNone: no failure.
	KindNone FailureKind = ""
)

// Service error codes the classifier recognizes.
const (
	codeUnknownPrincipal = 192
	codeAlreadyExists    = 493
	codeAuthRejected     = 516
)

var codeRe = regexp.MustCompile(`Code:\s+(\d+)\.`)

// ServiceError is a statement the service accepted for execution and
// rejected. Raw carries the full diagnostic text; Code is the numeric
// error code extracted from it, 0 when none was found.
type ServiceError struct {
	Raw  string
	Code int
}

// ParseServiceError classifies raw diagnostic output from the service.
func ParseServiceError(raw string) *ServiceError {
	e := &ServiceError{Raw: strings.TrimSpace(raw)}
	if m := codeRe.FindStringSubmatch(e.Raw); m != nil {
		e.Code, _ = strconv.Atoi(m[1])
	}
	return e
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error (code %d): %s", e.Code, e.Raw)
}

// Kind maps the error to a FailureKind, by code first and by message
// content when the code is absent.
func (e *ServiceError) Kind() FailureKind {
	switch e.Code {
	case codeUnknownPrincipal:
		return KindUnknownPrincipal
	case codeAlreadyExists:
		return KindAlreadyExists
	case codeAuthRejected:
		return KindAuthRejected
	case 0:
		lower := strings.ToLower(e.Raw)
		switch {
		case strings.Contains(lower, "there is no user"):
			return KindUnknownPrincipal
		case strings.Contains(lower, "already exists"):
			return KindAlreadyExists
		case strings.Contains(lower, "authentication failed"):
			return KindAuthRejected
		}
	}
	return KindUnknown
}

// TransportError is a failure to reach the service at all: the client
// binary could not be spawned, the connection refused, the process was
// killed. Transport errors are fatal to a run; only the readiness poll
// retries through them.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// KindOf classifies any error returned by a client operation. nil maps
// to KindNone, transport errors and everything unrecognized to
// KindUnknown.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindNone
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind()
	}
	return KindUnknown
}

// IsTransportError reports whether err is a transport failure.
// Uses errors.As to handle wrapped errors.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
