// Package trace defines the recorded form of a run: the ordered step
// sequence with drawn parameters, and the canonical encoding used to
// hash and persist it.
//
// Step parameters are restricted to strings, integers, booleans, and
// nested arrays/objects of those. The restriction keeps every recorded
// run canonically encodable, so a step sequence has exactly one byte
// representation and therefore one hash - the shrinker relies on this
// to deduplicate candidate sequences.
package trace

// Params holds the drawn parameter values of one rule firing,
// keyed by parameter name.
type Params map[string]any

// Step is one executed rule invocation.
type Step struct {
	// Index is the position of the step within its run, starting at 1.
	Index int64 `json:"index"`

	// Rule is the name of the fired rule.
	Rule string `json:"rule"`

	// Params are the values drawn for the rule's parameters.
	Params Params `json:"params"`

	// Outcome labels how the step concluded: "ok" for a successful
	// firing, or the failure classification that ended the run.
	Outcome string `json:"outcome"`
}

// Status describes how a run ended.
type Status string

const (
	// StatusPassed - the run completed its step budget with every
	// invariant holding.
	StatusPassed Status = "passed"

	// StatusFailed - an invariant violation or unexpected failure ended
	// the run; Failure carries the signature.
	StatusFailed Status = "failed"

	// StatusExhausted - the value generator ran out of fresh values and
	// the run ended early without a verdict. Not a failure.
	StatusExhausted Status = "exhausted"
)

// Run is the recorded form of one example: everything needed to replay
// or shrink it.
type Run struct {
	// Token identifies the run (UUIDv7, time-sortable).
	Token string `json:"token"`

	// Seed is the random seed the run was generated from.
	Seed int64 `json:"seed"`

	// Steps is the executed sequence in order.
	Steps []Step `json:"steps"`

	// Status records how the run ended.
	Status Status `json:"status"`

	// Failure is the failure signature for failed runs: the violated
	// invariant's name or the step error classification. Empty otherwise.
	Failure string `json:"failure,omitempty"`
}

// CloneSteps returns a deep copy of a step sequence. Shrink candidates
// mutate their copy freely without aliasing the original run.
func CloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = Step{
			Index:   s.Index,
			Rule:    s.Rule,
			Params:  cloneParams(s.Params),
			Outcome: s.Outcome,
		}
	}
	return out
}

func cloneParams(p Params) Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case Params:
		return map[string]any(cloneParams(val))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}
