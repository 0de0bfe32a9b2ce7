package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/refurbd/ctoengine/cto"
)

// Engine evaluates the latest version of every rule against a component
// list using generic field/operator/value conditions. Evaluation is a
// pure function of the component list plus the stored latest versions,
// so concurrent evaluations of different configurations need no locking
// beyond the cache's own.
type Engine struct {
	store VersionStore
	cache VersionsCache
}

// NewEngine creates an engine reading latest versions from store.
func NewEngine(store VersionStore) *Engine {
	return &Engine{
		store: store,
		cache: NewInMemoryVersionsCache(DefaultCacheConfig()),
	}
}

// NewEngineWithCache creates an engine with a custom versions cache.
func NewEngineWithCache(store VersionStore, cache VersionsCache) *Engine {
	return &Engine{store: store, cache: cache}
}

// InvalidateCache forces the next evaluation to reload latest versions.
// Called after a new rule version is created.
func (en *Engine) InvalidateCache() {
	en.cache.Invalidate()
}

// EvaluateConfiguration evaluates every latest-version rule against the
// component list. A rule's conditions are checked in order and the
// first unsatisfied one fails the rule (short-circuit) and produces an
// explanation. The overall result passes iff every rule passes.
func (en *Engine) EvaluateConfiguration(components []cto.Component) (*EvaluationResult, error) {
	versions := en.cache.Get()
	if versions == nil {
		var err error
		versions, err = en.store.AllLatest()
		if err != nil {
			return nil, fmt.Errorf("failed to load latest rule versions: %w", err)
		}
		en.cache.Set(versions)
	}

	result := &EvaluationResult{
		Results:      make([]RuleResult, 0, len(versions)),
		Passed:       true,
		Explanations: []cto.Explanation{},
	}

	for _, rv := range versions {
		rr := RuleResult{
			RuleID:        rv.RuleID,
			RuleVersionID: rv.ID,
			Version:       rv.Version,
			Name:          rv.Name,
			Action:        rv.Logic.Action,
			Passed:        true,
		}

		if failed := firstUnsatisfied(rv.Logic, components); failed != nil {
			rr.Passed = false
			result.Passed = false
			expl := explain(rv.Logic, *failed, components)
			rr.Explanation = &expl
			result.Explanations = append(result.Explanations, expl)
		}

		result.Results = append(result.Results, rr)
	}

	return result, nil
}

// firstUnsatisfied returns the first condition in logic that the
// component list does not satisfy, or nil when the rule passes. An
// empty condition list passes vacuously.
func firstUnsatisfied(logic Logic, components []cto.Component) *Condition {
	for i := range logic.Conditions {
		if !conditionSatisfied(logic.Conditions[i], components) {
			return &logic.Conditions[i]
		}
	}
	return nil
}

// conditionSatisfied applies the positive-match / universal-non-match
// semantic: for every operator except NOT_EQUALS the condition holds
// when at least one component's property matches; for NOT_EQUALS it
// holds only when no component matches. With zero candidate components
// a positive operator therefore fails and NOT_EQUALS holds vacuously.
func conditionSatisfied(c Condition, components []cto.Component) bool {
	entity, property := splitField(c.Field)

	matched := false
	if entity == "component" {
		for _, comp := range components {
			value, ok := propertyValue(comp, property)
			if !ok {
				continue
			}
			if operatorMatches(c.Operator, value, c.Value) {
				matched = true
				break
			}
		}
	}

	if c.Operator == OpNotEquals {
		// NOT_EQUALS is an exclusion: it must hold for every component.
		return !matched
	}
	return matched
}

// splitField parses "entity.property". A field without a dot is treated
// as an entity with no property, which never matches anything.
func splitField(field string) (entity, property string) {
	entity, property, _ = strings.Cut(field, ".")
	return entity, property
}

func propertyValue(comp cto.Component, property string) (string, bool) {
	switch property {
	case "type":
		return string(comp.Type), true
	case "reference":
		return comp.Reference, true
	case "quantity":
		return strconv.Itoa(comp.Quantity), true
	default:
		return "", false
	}
}

// operatorMatches reports whether a single component value matches the
// condition value under op. NOT_EQUALS is deliberately evaluated as an
// equality match here; conditionSatisfied inverts it over the whole
// component list.
func operatorMatches(op Operator, value, conditionValue string) bool {
	switch op {
	case OpEquals, OpNotEquals:
		return value == conditionValue
	case OpContains:
		return strings.Contains(value, conditionValue)
	case OpGreaterThan:
		return compareValues(value, conditionValue) > 0
	case OpLessThan:
		return compareValues(value, conditionValue) < 0
	default:
		return false
	}
}

// compareValues compares numerically when both sides parse as numbers,
// lexicographically otherwise.
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
