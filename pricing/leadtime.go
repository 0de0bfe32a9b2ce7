package pricing

import (
	"fmt"

	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/ruleset"
)

// LeadTimeDefaults hold fallbacks used when no LEAD_TIME rule matches.
type LeadTimeDefaults struct {
	ComponentMinutes   int
	QAMinutes          int
	WorkingHoursPerDay int
}

// LeadTimeCalculator computes a whole number of working days from a
// rule set's LEAD_TIME rules.
type LeadTimeCalculator struct {
	rulesets ruleset.Store
	defaults LeadTimeDefaults
}

// NewLeadTimeCalculator creates a calculator reading lead-time rules
// from store.
func NewLeadTimeCalculator(store ruleset.Store, defaults LeadTimeDefaults) *LeadTimeCalculator {
	return &LeadTimeCalculator{rulesets: store, defaults: defaults}
}

// WorkingDays sums assembly minutes per component (rule minutes times
// quantity, or the default per component), adds a single QA duration
// (from the rule with no component type when present), and converts to
// days rounding up, never below one day.
func (c *LeadTimeCalculator) WorkingDays(ruleSetID string, components []cto.Component) (int, error) {
	rs, err := c.rulesets.Get(ruleSetID)
	if err != nil {
		return 0, fmt.Errorf("failed to load rule set for lead time: %w", err)
	}

	perType := make(map[cto.ComponentType]int)
	qaMinutes := c.defaults.QAMinutes
	for _, rule := range rs.Rules {
		if rule.Kind != ruleset.KindLeadTime || rule.LeadTime == nil {
			continue
		}
		if rule.LeadTime.ComponentType == "" {
			qaMinutes = rule.LeadTime.AssemblyMinutes
			continue
		}
		perType[rule.LeadTime.ComponentType] = rule.LeadTime.AssemblyMinutes
	}

	totalMinutes := qaMinutes
	for _, comp := range components {
		minutes, ok := perType[comp.Type]
		if !ok {
			minutes = c.defaults.ComponentMinutes
		}
		totalMinutes += minutes * comp.Quantity
	}

	minutesPerDay := c.defaults.WorkingHoursPerDay * 60
	days := (totalMinutes + minutesPerDay - 1) / minutesPerDay
	if days < 1 {
		days = 1
	}
	return days, nil
}
