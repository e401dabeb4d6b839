package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/prowlkit/prowl/internal/trace"
)

// TraceSnapshot is the golden-file form of a scenario execution: the
// executed sequence plus the observed outcome, serialized canonically
// so the comparison is byte-stable.
type TraceSnapshot struct {
	Scenario string
	Steps    []trace.Step
	Failure  string
	Live     []string
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	stepList := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		stepList[i] = map[string]any{
			"index":   step.Index,
			"rule":    step.Rule,
			"params":  map[string]any(step.Params),
			"outcome": step.Outcome,
		}
	}
	live := make([]any, len(s.Live))
	for i, name := range s.Live {
		live[i] = name
	}
	return map[string]any{
		"scenario": s.Scenario,
		"steps":    stepList,
		"failure":  s.Failure,
		"live":     live,
	}
}

// AssertGolden compares a scenario execution against its golden file
// in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, scenario *Scenario, result *ScenarioResult) error {
	t.Helper()

	snapshot := TraceSnapshot{
		Scenario: scenario.Name,
		Steps:    scenario.TraceSteps(),
		Failure:  result.Signature,
		Live:     result.Live,
	}
	data, err := trace.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
