// Package config loads campaign profiles from CUE.
//
// A profile tunes a campaign: how many examples, how many steps each,
// and the generation bounds for names and secrets. The schema with its
// defaults is an embedded CUE literal; a user profile is unified
// against it, so partial profiles work and out-of-bounds values fail
// loading with a CUE error rather than misbehaving later.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/prowlkit/prowl/internal/lifecycle"
)

//go:embed defaults.cue
var defaultsCUE string

// Profile is a decoded campaign profile.
type Profile struct {
	Examples int `json:"examples"`
	MaxSteps int `json:"max_steps"`

	NamePrefix string `json:"name_prefix"`
	NameMin    int    `json:"name_min"`
	NameMax    int    `json:"name_max"`

	SecretMin int `json:"secret_min"`
	SecretMax int `json:"secret_max"`

	OptionalP float64 `json:"optional_p"`
	ReuseP    float64 `json:"reuse_p"`

	ReadyTimeoutSeconds int `json:"ready_timeout_seconds"`
}

// Default returns the profile with every field at its schema default.
func Default() (*Profile, error) {
	return decode(schema())
}

// Load reads a CUE profile file and unifies it against the schema.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	ctx := cuecontext.New()
	base := ctx.CompileString(defaultsCUE, cue.Filename("defaults.cue"))
	if err := base.Err(); err != nil {
		return nil, fmt.Errorf("compile profile schema: %w", err)
	}
	user := ctx.CompileString(string(data), cue.Filename(path))
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("compile profile %s: %w", path, err)
	}

	return decode(base.Unify(user))
}

func schema() cue.Value {
	ctx := cuecontext.New()
	return ctx.CompileString(defaultsCUE, cue.Filename("defaults.cue"))
}

func decode(v cue.Value) (*Profile, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate profile: %w", err)
	}
	var p Profile
	if err := v.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.NameMax < p.NameMin {
		return nil, fmt.Errorf("profile: name_max (%d) < name_min (%d)", p.NameMax, p.NameMin)
	}
	if p.SecretMax < p.SecretMin {
		return nil, fmt.Errorf("profile: secret_max (%d) < secret_min (%d)", p.SecretMax, p.SecretMin)
	}
	return &p, nil
}

// Options maps the generation bounds onto the lifecycle machine.
func (p *Profile) Options() lifecycle.Options {
	return lifecycle.Options{
		NamePrefix: p.NamePrefix,
		NameMin:    p.NameMin,
		NameMax:    p.NameMax,
		SecretMin:  p.SecretMin,
		SecretMax:  p.SecretMax,
		OptionalP:  p.OptionalP,
		ReuseP:     p.ReuseP,
	}
}

// ReadyTimeout is the readiness-wait deadline.
func (p *Profile) ReadyTimeout() time.Duration {
	return time.Duration(p.ReadyTimeoutSeconds) * time.Second
}
