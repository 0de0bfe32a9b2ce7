package ruleset

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/refurbd/ctoengine/cto"
)

// RuleKind discriminates the typed rule variants.
type RuleKind string

const (
	KindCompatibility RuleKind = "COMPATIBILITY"
	KindQuantity      RuleKind = "QUANTITY"
	KindDependency    RuleKind = "DEPENDENCY"
	KindExclusion     RuleKind = "EXCLUSION"
	KindPricing       RuleKind = "PRICING"
	KindLeadTime      RuleKind = "LEAD_TIME"
)

// CompatibilityRule restricts the references allowed for a component
// type on a given product model.
type CompatibilityRule struct {
	ProductModel      string            `json:"productModel"`
	ComponentType     cto.ComponentType `json:"componentType"`
	AllowedReferences []string          `json:"allowedReferences"`
}

// QuantityRule bounds the total quantity of a component type.
type QuantityRule struct {
	ProductModel  string            `json:"productModel"`
	ComponentType cto.ComponentType `json:"componentType"`
	MinQuantity   int               `json:"minQuantity"`
	MaxQuantity   int               `json:"maxQuantity"`
}

// DependencyRule requires a companion component when a trigger
// component is present.
type DependencyRule struct {
	ProductModel                string            `json:"productModel"`
	IfComponentType             cto.ComponentType `json:"ifComponentType"`
	IfComponentReference        string            `json:"ifComponentReference"`
	RequiresComponentType       cto.ComponentType `json:"requiresComponentType"`
	RequiresComponentReferences []string          `json:"requiresComponentReferences"`
}

// ExclusionRule forbids combining more than one reference from the same
// mutually-exclusive group.
type ExclusionRule struct {
	ProductModel    string            `json:"productModel"`
	ComponentType   cto.ComponentType `json:"componentType"`
	ExclusiveGroups [][]string        `json:"exclusiveGroups"`
}

// PricingRule prices a component. An empty Reference makes the rule
// generic for its component type; an exact (type, reference) rule wins
// over the generic one.
type PricingRule struct {
	ComponentType cto.ComponentType `json:"componentType"`
	Reference     string            `json:"reference,omitempty"`
	UnitPrice     decimal.Decimal   `json:"unitPrice"`
	LaborCost     decimal.Decimal   `json:"laborCost"`
	MarginPercent decimal.Decimal   `json:"marginPercent"`
}

// LeadTimeRule contributes assembly minutes per unit of a component
// type. A rule with an empty ComponentType defines the single QA
// duration for the whole configuration.
type LeadTimeRule struct {
	ComponentType   cto.ComponentType `json:"componentType,omitempty"`
	AssemblyMinutes int               `json:"assemblyMinutes"`
}

// TypedRule is a tagged variant: Kind names the populated payload and
// exactly one payload pointer is set. The typed and generic condition
// representations are deliberately separate; their semantics and
// failure messages differ.
type TypedRule struct {
	ID   string   `json:"id"`
	Kind RuleKind `json:"kind"`

	Compatibility *CompatibilityRule `json:"compatibility,omitempty"`
	Quantity      *QuantityRule      `json:"quantity,omitempty"`
	Dependency    *DependencyRule    `json:"dependency,omitempty"`
	Exclusion     *ExclusionRule     `json:"exclusion,omitempty"`
	Pricing       *PricingRule       `json:"pricing,omitempty"`
	LeadTime      *LeadTimeRule      `json:"leadTime,omitempty"`
}

// RuleSet is a named, versioned, activatable collection of typed rules.
// At most one rule set is active at a time.
type RuleSet struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Version   int         `json:"version"`
	Active    bool        `json:"active"`
	Rules     []TypedRule `json:"rules"`
	CreatedAt time.Time   `json:"createdAt"`
}

// clone returns a deep copy so evaluations work on a stable snapshot.
func (rs *RuleSet) clone() *RuleSet {
	cp := *rs
	cp.Rules = make([]TypedRule, len(rs.Rules))
	copy(cp.Rules, rs.Rules)
	return &cp
}
