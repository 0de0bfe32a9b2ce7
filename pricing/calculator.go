// Package pricing computes frozen price snapshots and lead times for
// validated configurations. All money math uses decimals so repeated
// runs with the same inputs reproduce every figure bit for bit.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/ruleset"
)

// SnapshotLine is one priced component in a snapshot.
type SnapshotLine struct {
	Type      cto.ComponentType `json:"type"`
	Reference string            `json:"reference"`
	Quantity  int               `json:"quantity"`
	UnitPrice decimal.Decimal   `json:"unitPrice"`
	LineTotal decimal.Decimal   `json:"lineTotal"`
}

// PriceSnapshot is the frozen price of a configuration. Once produced
// it is treated as immutable truth: the contract is "never recompute",
// not "cannot reproduce". FrozenAt is informational only.
type PriceSnapshot struct {
	Components []SnapshotLine  `json:"components"`
	LaborCost  decimal.Decimal `json:"laborCost"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Margin     decimal.Decimal `json:"margin"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	FrozenAt   time.Time       `json:"frozenAt"`
}

// Defaults hold system fallbacks applied when no pricing rule matches.
type Defaults struct {
	LaborCost     decimal.Decimal
	MarginPercent decimal.Decimal
	Currency      string
}

// Calculator produces price snapshots from a rule set's PRICING rules.
type Calculator struct {
	rulesets ruleset.Store
	defaults Defaults
}

// NewCalculator creates a calculator reading pricing rules from store.
func NewCalculator(store ruleset.Store, defaults Defaults) *Calculator {
	return &Calculator{rulesets: store, defaults: defaults}
}

var oneHundred = decimal.NewFromInt(100)

// Snapshot computes the price snapshot for (ruleSetID, components):
// exact (type, reference) pricing rule first, generic type rule second,
// zero unit price plus default labor otherwise. The margin rate is the
// quantity-weighted mean of matched components' margin percents,
// falling back to the system default when nothing matched.
func (c *Calculator) Snapshot(ruleSetID string, components []cto.Component) (*PriceSnapshot, error) {
	rs, err := c.rulesets.Get(ruleSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set for pricing: %w", err)
	}

	exact := make(map[string]*ruleset.PricingRule)
	generic := make(map[cto.ComponentType]*ruleset.PricingRule)
	for i := range rs.Rules {
		r := rs.Rules[i].Pricing
		if rs.Rules[i].Kind != ruleset.KindPricing || r == nil {
			continue
		}
		if r.Reference == "" {
			generic[r.ComponentType] = r
		} else {
			exact[string(r.ComponentType)+":"+r.Reference] = r
		}
	}

	snap := &PriceSnapshot{
		Components: make([]SnapshotLine, 0, len(components)),
		Subtotal:   decimal.Zero,
		LaborCost:  decimal.Zero,
		Currency:   c.defaults.Currency,
		FrozenAt:   time.Now(),
	}

	marginWeighted := decimal.Zero
	marginWeight := decimal.Zero

	for _, comp := range components {
		qty := decimal.NewFromInt(int64(comp.Quantity))

		rule := exact[string(comp.Type)+":"+comp.Reference]
		if rule == nil {
			rule = generic[comp.Type]
		}

		unitPrice := decimal.Zero
		labor := c.defaults.LaborCost
		if rule != nil {
			unitPrice = rule.UnitPrice
			labor = rule.LaborCost
			marginWeighted = marginWeighted.Add(rule.MarginPercent.Mul(qty))
			marginWeight = marginWeight.Add(qty)
		}

		lineTotal := unitPrice.Mul(qty)
		snap.Components = append(snap.Components, SnapshotLine{
			Type:      comp.Type,
			Reference: comp.Reference,
			Quantity:  comp.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
		snap.Subtotal = snap.Subtotal.Add(lineTotal)
		snap.LaborCost = snap.LaborCost.Add(labor.Mul(qty))
	}

	marginRate := c.defaults.MarginPercent
	if marginWeight.IsPositive() {
		marginRate = marginWeighted.Div(marginWeight)
	}

	snap.Margin = snap.Subtotal.Add(snap.LaborCost).Mul(marginRate).Div(oneHundred).Round(2)
	snap.Total = snap.Subtotal.Add(snap.LaborCost).Add(snap.Margin)

	return snap, nil
}
