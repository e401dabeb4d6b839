package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/prowlkit/prowl/internal/lifecycle"
	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/sut"
	"github.com/prowlkit/prowl/internal/trace"
)

// Scenario is a deterministic conformance case: a fixed step sequence
// with the outcome it must produce. Scenarios replay through the same
// code path as recorded runs.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps is the fixed sequence to execute.
	Steps []ScenarioStep `yaml:"steps"`

	// Expect is the required outcome.
	Expect Expectation `yaml:"expect"`
}

// ScenarioStep is one rule firing with fully specified parameters.
type ScenarioStep struct {
	Rule   string         `yaml:"rule"`
	Params map[string]any `yaml:"params"`
}

// Expectation describes how a scenario must end.
type Expectation struct {
	// Failure is the required failure signature, empty for a clean run.
	Failure string `yaml:"failure"`

	// Live lists the account names the model must hold afterwards.
	Live []string `yaml:"live"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected (catches typos like "step:" vs "steps:").
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if step.Rule == "" {
			return fmt.Errorf("steps[%d]: rule is required", i)
		}
		if step.Params == nil {
			return fmt.Errorf("steps[%d]: params is required (use empty map if no params)", i)
		}
	}
	return nil
}

// TraceSteps converts the scenario into a replayable step sequence.
func (s *Scenario) TraceSteps() []trace.Step {
	steps := make([]trace.Step, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = trace.Step{
			Index:  int64(i + 1),
			Rule:   step.Rule,
			Params: trace.Params(step.Params),
		}
	}
	return steps
}

// ScenarioResult is the observed outcome of a scenario execution.
type ScenarioResult struct {
	// Signature is the failure the sequence produced, "" when clean.
	Signature string

	// Live is the model's account names afterwards, sorted.
	Live []string
}

// RunScenario executes a scenario against a fresh model over the given
// service connector.
func RunScenario(ctx context.Context, s *Scenario, conn sut.Connector, opts lifecycle.Options) (*ScenarioResult, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog, invariants := lifecycle.NewMachine()
	state := lifecycle.NewState(sut.NewClient(conn, logger), opts)

	sig, err := machine.Replay(ctx, catalog, invariants, state, s.TraceSteps(), logger)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	live := make([]string, 0, len(state.Model))
	for name := range state.Model {
		live = append(live, name)
	}
	sort.Strings(live)

	return &ScenarioResult{Signature: sig, Live: live}, nil
}

// Verify checks the result against the scenario's expectation.
func (r *ScenarioResult) Verify(s *Scenario) error {
	if r.Signature != s.Expect.Failure {
		return fmt.Errorf("scenario %s: failure = %q, expected %q", s.Name, r.Signature, s.Expect.Failure)
	}
	expected := append([]string(nil), s.Expect.Live...)
	sort.Strings(expected)
	if len(expected) != len(r.Live) {
		return fmt.Errorf("scenario %s: live accounts %v, expected %v", s.Name, r.Live, expected)
	}
	for i := range expected {
		if expected[i] != r.Live[i] {
			return fmt.Errorf("scenario %s: live accounts %v, expected %v", s.Name, r.Live, expected)
		}
	}
	return nil
}
