// Package lifecycle is the account-lifecycle instantiation of the
// engine: the reference model, the rule catalog driving a service's
// user subsystem, and the invariants comparing the two after every
// step.
//
// The reference model is a plain map from account name to principal.
// Rule bodies are the only writers; the service is mutated through the
// admin client in the same body, so model and service move in
// lockstep or an invariant catches the divergence.
package lifecycle

import (
	"math/rand"

	"github.com/prowlkit/prowl/internal/account"
	"github.com/prowlkit/prowl/internal/bundle"
	"github.com/prowlkit/prowl/internal/gen"
	"github.com/prowlkit/prowl/internal/sut"
)

// Defaults for Options.
const (
	DefaultNamePrefix = "pt_"
	DefaultNameMin    = 3
	DefaultNameMax    = 10
	DefaultSecretMin  = 4
	DefaultSecretMax  = 16
	DefaultOptionalP  = 0.5
	DefaultReuseP     = 0.3
)

// Options tunes parameter generation. The zero value takes every
// default.
type Options struct {
	// NamePrefix namespaces generated account names, so cleanup and
	// concurrent campaigns against a shared service stay disjoint.
	NamePrefix string

	// NameMin/NameMax bound the random suffix length of account names.
	NameMin, NameMax int

	// SecretMin/SecretMax bound plaintext secret lengths.
	SecretMin, SecretMax int

	// OptionalP is the probability that each optional alter field
	// (rename, new credential) is drawn.
	OptionalP float64

	// ReuseP is the probability that a create draws a dropped account
	// name from the graveyard instead of a fresh one.
	ReuseP float64
}

func (o Options) withDefaults() Options {
	if o.NamePrefix == "" {
		o.NamePrefix = DefaultNamePrefix
	}
	if o.NameMin == 0 {
		o.NameMin = DefaultNameMin
	}
	if o.NameMax == 0 {
		o.NameMax = DefaultNameMax
	}
	if o.SecretMin == 0 {
		o.SecretMin = DefaultSecretMin
	}
	if o.SecretMax == 0 {
		o.SecretMax = DefaultSecretMax
	}
	if o.OptionalP == 0 {
		o.OptionalP = DefaultOptionalP
	}
	if o.ReuseP == 0 {
		o.ReuseP = DefaultReuseP
	}
	return o
}

// State is everything one example owns: the reference model, the admin
// client into the service, the live and graveyard pools, and the name
// registry. Construct a fresh State per example and per replay.
type State struct {
	opts Options

	// Client speaks as the service's default superuser.
	Client *sut.Client

	// Model maps live account names to their expected principal.
	Model map[string]account.Principal

	// Live holds principals that exist on the service right now.
	Live *bundle.Bundle[account.Principal]

	// Graveyard holds dropped principals, available for re-creation and
	// for absent-name negative probes.
	Graveyard *bundle.Bundle[account.Principal]

	// Names guarantees every generated account name is fresh for the
	// whole example, renames and never-created probe names included.
	Names *gen.Unique
}

// NewState builds an empty example state over the given admin client.
func NewState(client *sut.Client, opts Options) *State {
	opts = opts.withDefaults()
	return &State{
		opts:      opts,
		Client:    client,
		Model:     make(map[string]account.Principal),
		Live:      bundle.New[account.Principal]("live"),
		Graveyard: bundle.New[account.Principal]("graveyard"),
		Names:     gen.NewUnique(opts.NamePrefix),
	}
}

// drawCredential picks a credential mode uniformly; plaintext secrets
// come from the letter alphabet within the configured bounds.
func drawCredential(rng *rand.Rand, opts Options) account.Credential {
	switch gen.OneOf(rng, account.KindUnauthenticated, account.KindNoCredential, account.KindPlainSecret) {
	case account.KindUnauthenticated:
		return account.Unauthenticated()
	case account.KindNoCredential:
		return account.NoCredential()
	default:
		return account.PlainSecret(gen.String(rng, gen.Letters, opts.SecretMin, opts.SecretMax))
	}
}

// loginExpectation is the outcome a login probe must produce for a
// live principal: NOT IDENTIFIED accounts must be rejected, everything
// else must get in.
func loginExpectation(c account.Credential) sut.FailureKind {
	if c.Kind == account.KindUnauthenticated {
		return sut.KindAuthRejected
	}
	return sut.KindNone
}
