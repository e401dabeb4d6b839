package lifecycle

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/prowlkit/prowl/internal/account"
	"github.com/prowlkit/prowl/internal/gen"
	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/sut"
	"github.com/prowlkit/prowl/internal/trace"
)

// Rule names, as they appear in recorded runs.
const (
	RuleCreate         = "create_principal"
	RuleAlter          = "alter_principal"
	RuleDrop           = "drop_principal"
	RuleRecreateExists = "recreate_existing_fails"
	RuleAlterMissing   = "alter_missing_fails"
	RuleDropMissing    = "drop_missing_fails"
	RuleLoginMissing   = "login_missing_fails"
)

// NewMachine assembles the lifecycle rule catalog and invariants.
func NewMachine() (*machine.Catalog[*State], []machine.Invariant[*State]) {
	catalog, err := machine.NewCatalog(
		createRule(),
		alterRule(),
		dropRule(),
		recreateExistingRule(),
		alterMissingRule(),
		dropMissingRule(),
		loginMissingRule(),
	)
	if err != nil {
		panic(err) // fixed rule set, cannot fail
	}
	return catalog, invariants()
}

// createRule creates a principal with a drawn credential, probes its
// login, and inserts it into the model. Sometimes the drawn name comes
// from the graveyard, exercising re-creation after a drop.
func createRule() machine.Rule[*State] {
	return machine.Rule[*State]{
		Name: RuleCreate,
		Draw: func(s *State, rng *rand.Rand) (trace.Params, error) {
			p := trace.Params{"credential": drawCredential(rng, s.opts).Encode()}
			if s.Graveyard.Len() > 0 && gen.Chance(rng, s.opts.ReuseP) {
				prev, err := s.Graveyard.Peek(rng)
				if err != nil {
					return nil, err
				}
				p["source"] = "graveyard"
				p["external_id"] = prev.ExternalID
				p["name"] = prev.Name
				return p, nil
			}
			name, err := s.Names.Draw(rng, gen.Letters, s.opts.NameMin, s.opts.NameMax)
			if err != nil {
				return nil, err
			}
			p["source"] = "fresh"
			// Drawn from the run's rng, not a UUID: recorded runs must be
			// byte-identical for the same seed.
			p["external_id"] = fmt.Sprintf("%08x%08x", rng.Uint32(), rng.Uint32())
			p["name"] = name
			return p, nil
		},
		Apply: func(ctx context.Context, s *State, p trace.Params) error {
			name, err := paramString(p, "name")
			if err != nil {
				return err
			}
			xid, err := paramString(p, "external_id")
			if err != nil {
				return err
			}
			cred, err := account.DecodeCredential(p["credential"])
			if err != nil {
				return err
			}

			if source, _ := p["source"].(string); source == "graveyard" {
				if _, ok := s.Graveyard.TakeFunc(byExternalID(xid)); !ok {
					return machine.ErrStepNotApplicable
				}
			}
			if _, exists := s.Model[name]; exists {
				return machine.ErrStepNotApplicable
			}

			if err := expect("create user", name, sut.KindNone, s.Client.CreateUser(ctx, name, cred)); err != nil {
				return err
			}

			principal := account.Principal{Name: name, Credential: cred, ExternalID: xid}
			if err := probeLogin(ctx, s, principal); err != nil {
				return err
			}
			s.Model[name] = principal
			s.Live.Put(principal)
			s.Names.Observe(name)
			return nil
		},
	}
}

// alterRule renames a live principal, changes its credential, both, or
// neither (a bare no-op ALTER), then probes login under the post-alter
// identity.
func alterRule() machine.Rule[*State] {
	return machine.Rule[*State]{
		Name:  RuleAlter,
		Ready: func(s *State) bool { return s.Live.Len() > 0 },
		Draw: func(s *State, rng *rand.Rand) (trace.Params, error) {
			cur, err := s.Live.Peek(rng)
			if err != nil {
				return nil, err
			}
			p := trace.Params{"external_id": cur.ExternalID, "name": cur.Name}

			withRename := gen.Chance(rng, s.opts.OptionalP)
			withCred := gen.Chance(rng, s.opts.OptionalP)
			if withRename {
				rename, err := s.Names.Draw(rng, gen.Letters, s.opts.NameMin, s.opts.NameMax)
				if err != nil {
					return nil, err
				}
				p["rename"] = rename
			}
			if withCred {
				p["credential"] = drawCredential(rng, s.opts).Encode()
			}
			return p, nil
		},
		Apply: func(ctx context.Context, s *State, p trace.Params) error {
			xid, err := paramString(p, "external_id")
			if err != nil {
				return err
			}
			cur, ok := s.Live.TakeFunc(byExternalID(xid))
			if !ok {
				return machine.ErrStepNotApplicable
			}

			rename, _ := p["rename"].(string)
			var cred *account.Credential
			if raw, present := p["credential"]; present {
				decoded, err := account.DecodeCredential(raw)
				if err != nil {
					return err
				}
				cred = &decoded
			}

			if err := expect("alter user", cur.Name, sut.KindNone,
				s.Client.AlterUser(ctx, cur.Name, rename, cred)); err != nil {
				return err
			}

			updated := cur
			if rename != "" {
				updated.Name = rename
			}
			if cred != nil {
				updated.Credential = *cred
			}
			delete(s.Model, cur.Name)
			s.Model[updated.Name] = updated
			s.Live.Put(updated)
			s.Names.Observe(updated.Name)
			return probeLogin(ctx, s, updated)
		},
	}
}

// dropRule drops a live principal and verifies its credential stops
// authenticating.
func dropRule() machine.Rule[*State] {
	return machine.Rule[*State]{
		Name:  RuleDrop,
		Ready: func(s *State) bool { return s.Live.Len() > 0 },
		Draw: func(s *State, rng *rand.Rand) (trace.Params, error) {
			cur, err := s.Live.Peek(rng)
			if err != nil {
				return nil, err
			}
			return trace.Params{"external_id": cur.ExternalID, "name": cur.Name}, nil
		},
		Apply: func(ctx context.Context, s *State, p trace.Params) error {
			xid, err := paramString(p, "external_id")
			if err != nil {
				return err
			}
			cur, ok := s.Live.TakeFunc(byExternalID(xid))
			if !ok {
				return machine.ErrStepNotApplicable
			}

			if err := expect("drop user", cur.Name, sut.KindNone, s.Client.DropUser(ctx, cur.Name)); err != nil {
				return err
			}
			delete(s.Model, cur.Name)
			if err := expect("login", cur.Name, sut.KindAuthRejected,
				s.Client.TryLogin(ctx, cur)); err != nil {
				return err
			}
			s.Graveyard.Put(cur)
			return nil
		},
	}
}

// recreateExistingRule creates a name that is already taken and expects
// the already-exists rejection, with no state change on either side.
func recreateExistingRule() machine.Rule[*State] {
	return machine.Rule[*State]{
		Name:  RuleRecreateExists,
		Ready: func(s *State) bool { return s.Live.Len() > 0 },
		Draw: func(s *State, rng *rand.Rand) (trace.Params, error) {
			cur, err := s.Live.Peek(rng)
			if err != nil {
				return nil, err
			}
			return trace.Params{
				"external_id": cur.ExternalID,
				"name":        cur.Name,
				"credential":  drawCredential(rng, s.opts).Encode(),
			}, nil
		},
		Apply: func(ctx context.Context, s *State, p trace.Params) error {
			xid, err := paramString(p, "external_id")
			if err != nil {
				return err
			}
			cur, ok := s.Live.Find(byExternalID(xid))
			if !ok {
				return machine.ErrStepNotApplicable
			}
			cred, err := account.DecodeCredential(p["credential"])
			if err != nil {
				return err
			}
			return expect("create user", cur.Name, sut.KindAlreadyExists,
				s.Client.CreateUser(ctx, cur.Name, cred))
		},
	}
}

// alterMissingRule alters an absent name and expects unknown-principal.
func alterMissingRule() machine.Rule[*State] {
	return machine.Rule[*State]{
		Name: RuleAlterMissing,
		Draw: drawAbsentTarget,
		Apply: func(ctx context.Context, s *State, p trace.Params) error {
			name, cred, err := absentTarget(s, p)
			if err != nil {
				return err
			}
			return expect("alter user", name, sut.KindUnknownPrincipal,
				s.Client.AlterUser(ctx, name, "", &cred))
		},
	}
}

// dropMissingRule drops an absent name and expects unknown-principal.
func dropMissingRule() machine.Rule[*State] {
	return machine.Rule[*State]{
		Name: RuleDropMissing,
		Draw: drawAbsentTarget,
		Apply: func(ctx context.Context, s *State, p trace.Params) error {
			name, _, err := absentTarget(s, p)
			if err != nil {
				return err
			}
			return expect("drop user", name, sut.KindUnknownPrincipal,
				s.Client.DropUser(ctx, name))
		},
	}
}

// loginMissingRule probes login for an absent name and expects the
// authentication rejection.
func loginMissingRule() machine.Rule[*State] {
	return machine.Rule[*State]{
		Name: RuleLoginMissing,
		Draw: drawAbsentTarget,
		Apply: func(ctx context.Context, s *State, p trace.Params) error {
			name, cred, err := absentTarget(s, p)
			if err != nil {
				return err
			}
			return expect("login", name, sut.KindAuthRejected,
				s.Client.TryLogin(ctx, account.Principal{Name: name, Credential: cred}))
		},
	}
}

// drawAbsentTarget picks a name guaranteed absent from the model: a
// dropped name from the graveyard, or a fresh one that will never be
// created. The credential accompanies rules that need one.
func drawAbsentTarget(s *State, rng *rand.Rand) (trace.Params, error) {
	p := trace.Params{"credential": drawCredential(rng, s.opts).Encode()}
	if s.Graveyard.Len() > 0 && gen.Chance(rng, s.opts.ReuseP) {
		prev, err := s.Graveyard.Peek(rng)
		if err != nil {
			return nil, err
		}
		p["name"] = prev.Name
		return p, nil
	}
	name, err := s.Names.Draw(rng, gen.Letters, s.opts.NameMin, s.opts.NameMax)
	if err != nil {
		return nil, err
	}
	p["name"] = name
	return p, nil
}

// absentTarget decodes an absent-name draw and re-checks absence, which
// can stop holding after a shrink removed the producing drop.
func absentTarget(s *State, p trace.Params) (string, account.Credential, error) {
	name, err := paramString(p, "name")
	if err != nil {
		return "", account.Credential{}, err
	}
	if _, exists := s.Model[name]; exists {
		return "", account.Credential{}, machine.ErrStepNotApplicable
	}
	cred, err := account.DecodeCredential(p["credential"])
	if err != nil {
		return "", account.Credential{}, err
	}
	return name, cred, nil
}

// probeLogin verifies a live principal's credential behaves as modeled.
func probeLogin(ctx context.Context, s *State, p account.Principal) error {
	return expect("login", p.Name, loginExpectation(p.Credential), s.Client.TryLogin(ctx, p))
}

func byExternalID(xid string) func(account.Principal) bool {
	return func(p account.Principal) bool { return p.ExternalID == xid }
}

func paramString(p trace.Params, key string) (string, error) {
	v, ok := p[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("step params: missing %q", key)
	}
	return v, nil
}
