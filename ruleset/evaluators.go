package ruleset

import (
	"fmt"
	"slices"

	"github.com/refurbd/ctoengine/cto"
)

// Evaluate runs every typed validation rule in the set against a
// candidate (productModel, components) pair and returns the
// concatenated violations. An empty slice means the configuration is
// valid. Each evaluator is pure and order-independent across rule
// instances of the same kind; PRICING and LEAD_TIME rules are costing
// inputs, not validations, and are skipped here.
func Evaluate(rs *RuleSet, productModel string, components []cto.Component) []cto.ValidationError {
	errs := []cto.ValidationError{}

	for _, rule := range rs.Rules {
		switch rule.Kind {
		case KindCompatibility:
			errs = append(errs, evaluateCompatibility(rule.Compatibility, productModel, components)...)
		case KindQuantity:
			errs = append(errs, evaluateQuantity(rule.Quantity, productModel, components)...)
		case KindDependency:
			errs = append(errs, evaluateDependency(rule.Dependency, productModel, components)...)
		case KindExclusion:
			errs = append(errs, evaluateExclusion(rule.Exclusion, productModel, components)...)
		}
	}

	return errs
}

// appliesTo reports whether a rule scoped to ruleModel applies to the
// candidate product model. An empty scope applies to every model.
func appliesTo(ruleModel, productModel string) bool {
	return ruleModel == "" || ruleModel == productModel
}

func evaluateCompatibility(r *CompatibilityRule, productModel string, components []cto.Component) []cto.ValidationError {
	if r == nil || !appliesTo(r.ProductModel, productModel) {
		return nil
	}

	var errs []cto.ValidationError
	for _, comp := range components {
		if comp.Type != r.ComponentType {
			continue
		}
		if !slices.Contains(r.AllowedReferences, comp.Reference) {
			errs = append(errs, cto.ValidationError{
				Code: cto.CodeCompatibilityError,
				Message: fmt.Sprintf("%s %s is not compatible with product model %s",
					comp.Type, comp.Reference, productModel),
				ComponentType:      string(comp.Type),
				ComponentReference: comp.Reference,
			})
		}
	}
	return errs
}

func evaluateQuantity(r *QuantityRule, productModel string, components []cto.Component) []cto.ValidationError {
	if r == nil || !appliesTo(r.ProductModel, productModel) {
		return nil
	}

	total := 0
	for _, comp := range components {
		if comp.Type == r.ComponentType {
			total += comp.Quantity
		}
	}

	if total < r.MinQuantity || total > r.MaxQuantity {
		return []cto.ValidationError{{
			Code: cto.CodeQuantityError,
			Message: fmt.Sprintf("%s quantity %d is outside the allowed range %d-%d",
				r.ComponentType, total, r.MinQuantity, r.MaxQuantity),
			ComponentType: string(r.ComponentType),
		}}
	}
	return nil
}

func evaluateDependency(r *DependencyRule, productModel string, components []cto.Component) []cto.ValidationError {
	if r == nil || !appliesTo(r.ProductModel, productModel) {
		return nil
	}

	triggered := false
	for _, comp := range components {
		if comp.Type == r.IfComponentType && comp.Reference == r.IfComponentReference {
			triggered = true
			break
		}
	}
	if !triggered {
		return nil
	}

	for _, comp := range components {
		if comp.Type == r.RequiresComponentType && slices.Contains(r.RequiresComponentReferences, comp.Reference) {
			return nil
		}
	}

	return []cto.ValidationError{{
		Code: cto.CodeDependencyError,
		Message: fmt.Sprintf("%s %s requires a %s from %v",
			r.IfComponentType, r.IfComponentReference, r.RequiresComponentType, r.RequiresComponentReferences),
		ComponentType:      string(r.IfComponentType),
		ComponentReference: r.IfComponentReference,
	}}
}

func evaluateExclusion(r *ExclusionRule, productModel string, components []cto.Component) []cto.ValidationError {
	if r == nil || !appliesTo(r.ProductModel, productModel) {
		return nil
	}

	var errs []cto.ValidationError
	for _, group := range r.ExclusiveGroups {
		var present []string
		for _, comp := range components {
			if comp.Type == r.ComponentType && slices.Contains(group, comp.Reference) &&
				!slices.Contains(present, comp.Reference) {
				present = append(present, comp.Reference)
			}
		}
		if len(present) > 1 {
			errs = append(errs, cto.ValidationError{
				Code: cto.CodeExclusionError,
				Message: fmt.Sprintf("%s references %v are mutually exclusive",
					r.ComponentType, present),
				ComponentType: string(r.ComponentType),
			})
		}
	}
	return errs
}
