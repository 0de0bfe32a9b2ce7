// Package simulation answers "what happens if" questions about a
// configuration without persisting anything. Simulated runs share the
// same rule evaluation path as real validations but never touch the
// decision trail or the frozen price snapshot.
package simulation

import (
	"fmt"
	"time"

	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/rules"
)

// ComponentSource loads the current components of a stored
// configuration.
type ComponentSource interface {
	Components(configurationID string) ([]cto.Component, error)
}

// Evaluator runs condition rules against a component list. It is the
// read-only slice of rules.Engine a simulation needs.
type Evaluator interface {
	EvaluateConfiguration(components []cto.Component) (*rules.EvaluationResult, error)
}

// Result is the outcome of a simulated evaluation. Ephemeral is always
// true: the result exists only in the response.
type Result struct {
	Ephemeral    bool               `json:"ephemeral"`
	Valid        bool               `json:"valid"`
	RulesFailed  int                `json:"rulesFailed"`
	Results      []rules.RuleResult `json:"rules"`
	Explanations []cto.Explanation  `json:"explanations"`
	Components   []cto.Component    `json:"components"`
	EvaluatedAt  time.Time          `json:"evaluatedAt"`
}

// Engine merges hypothetical component changes into a base
// configuration and evaluates the merged list.
type Engine struct {
	source    ComponentSource
	evaluator Evaluator
}

// NewEngine creates a simulation engine over a component source and a
// rule evaluator.
func NewEngine(source ComponentSource, evaluator Evaluator) *Engine {
	return &Engine{source: source, evaluator: evaluator}
}

// Simulate evaluates the base configuration with the overrides applied.
// An override replaces every base component of its type, so simulating
// a single CPU on a dual-CPU base yields one CPU, not three. The base
// configuration is optional: with an empty ID the overrides are
// evaluated on their own.
func (en *Engine) Simulate(configurationID string, overrides []cto.Component) (*Result, error) {
	if len(overrides) == 0 {
		return nil, fmt.Errorf("at least one component override is required: %w", cto.ErrInvalidSimulation)
	}
	for _, o := range overrides {
		if o.Type == "" || o.Reference == "" {
			return nil, fmt.Errorf("override needs a component type and reference: %w", cto.ErrInvalidSimulation)
		}
		if o.Quantity <= 0 {
			return nil, fmt.Errorf("override quantity must be positive: %w", cto.ErrInvalidSimulation)
		}
	}

	var base []cto.Component
	if configurationID != "" {
		var err error
		base, err = en.source.Components(configurationID)
		if err != nil {
			return nil, fmt.Errorf("configuration %s: %w", configurationID, cto.ErrInvalidSimulation)
		}
	}

	merged := mergeComponents(base, overrides)

	eval, err := en.evaluator.EvaluateConfiguration(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate simulated configuration: %w", err)
	}

	failed := 0
	for _, r := range eval.Results {
		if !r.Passed {
			failed++
		}
	}

	return &Result{
		Ephemeral:    true,
		Valid:        eval.Passed,
		RulesFailed:  failed,
		Results:      eval.Results,
		Explanations: eval.Explanations,
		Components:   merged,
		EvaluatedAt:  time.Now().UTC(),
	}, nil
}

// SimulateChange is a convenience for the common single-swap case. A
// non-positive quantity defaults to 1.
func (en *Engine) SimulateChange(configurationID string, componentType cto.ComponentType, reference string, quantity int) (*Result, error) {
	if quantity <= 0 {
		quantity = 1
	}
	return en.Simulate(configurationID, []cto.Component{{
		Type:      componentType,
		Reference: reference,
		Quantity:  quantity,
	}})
}

// mergeComponents returns base with every component whose type appears
// in overrides removed, then the overrides appended. Neither input
// slice is modified.
func mergeComponents(base, overrides []cto.Component) []cto.Component {
	overridden := make(map[cto.ComponentType]bool, len(overrides))
	for _, o := range overrides {
		overridden[o.Type] = true
	}

	merged := make([]cto.Component, 0, len(base)+len(overrides))
	for _, c := range base {
		if !overridden[c.Type] {
			merged = append(merged, c)
		}
	}
	merged = append(merged, overrides...)
	return merged
}
