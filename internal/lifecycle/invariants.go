package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/sut"
)

// Invariant names, as they appear in failure signatures.
const (
	InvariantListing = "listing-round-trip"
	InvariantAuth    = "credentials-authenticate"
)

func invariants() []machine.Invariant[*State] {
	return []machine.Invariant[*State]{
		{Name: InvariantListing, Check: checkListing},
		{Name: InvariantAuth, Check: checkAuthentication},
	}
}

// checkListing compares the service's account listing against the
// model's key set, order-independent, default excluded.
func checkListing(ctx context.Context, s *State) error {
	listed, err := s.Client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	sort.Strings(listed)

	expected := make([]string, 0, len(s.Model))
	for name := range s.Model {
		expected = append(expected, name)
	}
	sort.Strings(expected)

	if !equalStrings(listed, expected) {
		return &machine.InvariantViolationError{
			Invariant: InvariantListing,
			Detail:    fmt.Sprintf("service lists %v, model expects %v", listed, expected),
		}
	}
	return nil
}

// checkAuthentication probes every modeled principal's login and every
// graveyard name's rejection.
func checkAuthentication(ctx context.Context, s *State) error {
	for _, p := range s.Model {
		if err := probeLogin(ctx, s, p); err != nil {
			return &machine.InvariantViolationError{
				Invariant: InvariantAuth,
				Detail:    err.Error(),
			}
		}
	}
	for _, dead := range s.Graveyard.Values() {
		if _, live := s.Model[dead.Name]; live {
			continue
		}
		if err := expect("login", dead.Name, sut.KindAuthRejected, s.Client.TryLogin(ctx, dead)); err != nil {
			return &machine.InvariantViolationError{
				Invariant: InvariantAuth,
				Detail:    fmt.Sprintf("dropped account still authenticates: %v", err),
			}
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
