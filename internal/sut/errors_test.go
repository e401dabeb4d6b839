package sut_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prowlkit/prowl/internal/sut"
)

func TestParseServiceError_Codes(t *testing.T) {
	tests := []struct {
		raw      string
		wantCode int
		wantKind sut.FailureKind
	}{
		{
			raw:      "Code: 493. DB::Exception: User `bob` already exists.",
			wantCode: 493,
			wantKind: sut.KindAlreadyExists,
		},
		{
			raw:      "Code: 192. DB::Exception: There is no user `bob` in user directories.",
			wantCode: 192,
			wantKind: sut.KindUnknownPrincipal,
		},
		{
			raw:      "Code: 516. DB::Exception: bob: Authentication failed: password is incorrect, or there is no user with such name.",
			wantCode: 516,
			wantKind: sut.KindAuthRejected,
		},
		{
			raw:      "Code: 62. DB::Exception: Syntax error",
			wantCode: 62,
			wantKind: sut.KindUnknown,
		},
		{
			raw:      "Received exception from server:\nCode:   516. DB::Exception: denied",
			wantCode: 516,
			wantKind: sut.KindAuthRejected,
		},
	}

	for _, tt := range tests {
		e := sut.ParseServiceError(tt.raw)
		assert.Equal(t, tt.wantCode, e.Code, tt.raw)
		assert.Equal(t, tt.wantKind, e.Kind(), tt.raw)
	}
}

func TestServiceError_MessageFallback(t *testing.T) {
	tests := []struct {
		raw  string
		want sut.FailureKind
	}{
		{"DB::Exception: There is no user `x`", sut.KindUnknownPrincipal},
		{"DB::Exception: user already exists", sut.KindAlreadyExists},
		{"DB::Exception: Authentication failed for x", sut.KindAuthRejected},
		{"something else entirely", sut.KindUnknown},
	}
	for _, tt := range tests {
		e := sut.ParseServiceError(tt.raw)
		assert.Equal(t, 0, e.Code, tt.raw)
		assert.Equal(t, tt.want, e.Kind(), tt.raw)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, sut.KindNone, sut.KindOf(nil))

	svcErr := sut.ParseServiceError("Code: 493. DB::Exception: exists")
	assert.Equal(t, sut.KindAlreadyExists, sut.KindOf(svcErr))

	wrapped := fmt.Errorf("drop: %w", svcErr)
	assert.Equal(t, sut.KindAlreadyExists, sut.KindOf(wrapped))

	assert.Equal(t, sut.KindUnknown, sut.KindOf(errors.New("boom")))

	te := &sut.TransportError{Op: "exec", Err: errors.New("no such binary")}
	assert.Equal(t, sut.KindUnknown, sut.KindOf(te))
	assert.True(t, sut.IsTransportError(fmt.Errorf("wrapped: %w", te)))
	assert.False(t, sut.IsTransportError(svcErr))
}
