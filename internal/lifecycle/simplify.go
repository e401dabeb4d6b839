package lifecycle

import (
	"strings"

	"github.com/prowlkit/prowl/internal/trace"
)

// Simplify proposes simpler variants of one recorded step for the
// shrinker, simplest first: dropped optional alter fields, then
// shortened account names and secrets. A variant that breaks the
// sequence (a collision, a login that now succeeds) stops reproducing
// the failure and is discarded by the shrinker's replay, so proposals
// here only need to be plausible, not safe.
func (o Options) Simplify(step trace.Step) []trace.Step {
	o = o.withDefaults()
	var out []trace.Step

	clone := func() trace.Step {
		return trace.CloneSteps([]trace.Step{step})[0]
	}

	// A bare ALTER with neither optional field is still a valid step,
	// so an alter variant may drop either field independently.
	if step.Rule == RuleAlter {
		for _, key := range []string{"rename", "credential"} {
			if _, ok := step.Params[key]; ok {
				v := clone()
				delete(v.Params, key)
				out = append(out, v)
			}
		}
	}

	for _, key := range []string{"name", "rename"} {
		s, ok := step.Params[key].(string)
		if !ok {
			continue
		}
		suffix := strings.TrimPrefix(s, o.NamePrefix)
		if len(suffix) <= 1 {
			continue
		}
		for _, shorter := range []string{suffix[:1], suffix[:len(suffix)/2]} {
			candidate := o.NamePrefix + shorter
			if candidate == s {
				continue
			}
			v := clone()
			v.Params[key] = candidate
			out = append(out, v)
		}
	}

	if credMap, ok := step.Params["credential"].(map[string]any); ok {
		if secret, ok := credMap["secret"].(string); ok && len(secret) > 1 {
			for _, shorter := range []string{secret[:1], secret[:len(secret)/2]} {
				if shorter == secret {
					continue
				}
				v := clone()
				v.Params["credential"].(map[string]any)["secret"] = shorter
				out = append(out, v)
			}
		}
	}
	return out
}
