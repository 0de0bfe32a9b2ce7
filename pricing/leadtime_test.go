package pricing

import (
	"testing"

	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/ruleset"
)

func leadTimeRule(componentType cto.ComponentType, minutes int) ruleset.TypedRule {
	return ruleset.TypedRule{
		Kind: ruleset.KindLeadTime,
		LeadTime: &ruleset.LeadTimeRule{
			ComponentType:   componentType,
			AssemblyMinutes: minutes,
		},
	}
}

func testLeadTimeDefaults() LeadTimeDefaults {
	return LeadTimeDefaults{
		ComponentMinutes:   30,
		QAMinutes:          45,
		WorkingHoursPerDay: 8,
	}
}

// TestWorkingDays_Defaults verifies defaults apply when no LEAD_TIME
// rule matches: 2x30 + 8x30 + 45 QA = 345 minutes, under one 480
// minute day.
func TestWorkingDays_Defaults(t *testing.T) {
	store := storeWith(t)
	calc := NewLeadTimeCalculator(store, testLeadTimeDefaults())

	days, err := calc.WorkingDays("rs-1", []cto.Component{
		{Type: cto.ComponentCPU, Reference: "XEON", Quantity: 2},
		{Type: cto.ComponentRAM, Reference: "DDR4", Quantity: 8},
	})
	if err != nil {
		t.Fatalf("WorkingDays failed: %v", err)
	}
	if days != 1 {
		t.Errorf("Expected 1 day, got %d", days)
	}
}

// TestWorkingDays_RoundsUp verifies a total just over a day boundary
// rounds up to the next whole day.
func TestWorkingDays_RoundsUp(t *testing.T) {
	store := storeWith(t, leadTimeRule(cto.ComponentGPU, 450))
	calc := NewLeadTimeCalculator(store, testLeadTimeDefaults())

	// 450 + 45 QA = 495 minutes, over the 480 minute day.
	days, err := calc.WorkingDays("rs-1", []cto.Component{
		{Type: cto.ComponentGPU, Reference: "A100", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("WorkingDays failed: %v", err)
	}
	if days != 2 {
		t.Errorf("Expected 2 days for 495 minutes, got %d", days)
	}
}

// TestWorkingDays_MinimumOneDay verifies an empty configuration still
// takes a day.
func TestWorkingDays_MinimumOneDay(t *testing.T) {
	store := storeWith(t)
	calc := NewLeadTimeCalculator(store, LeadTimeDefaults{
		ComponentMinutes:   30,
		QAMinutes:          0,
		WorkingHoursPerDay: 8,
	})

	days, err := calc.WorkingDays("rs-1", nil)
	if err != nil {
		t.Fatalf("WorkingDays failed: %v", err)
	}
	if days != 1 {
		t.Errorf("Expected factory-floor minimum of 1 day, got %d", days)
	}
}

// TestWorkingDays_QARuleOverridesDefault verifies a LEAD_TIME rule
// with no component type replaces the default QA duration.
func TestWorkingDays_QARuleOverridesDefault(t *testing.T) {
	store := storeWith(t,
		leadTimeRule("", 480),
		leadTimeRule(cto.ComponentCPU, 60),
	)
	calc := NewLeadTimeCalculator(store, testLeadTimeDefaults())

	// 2x60 + 480 QA = 600 minutes = 2 days of 480.
	days, err := calc.WorkingDays("rs-1", []cto.Component{
		{Type: cto.ComponentCPU, Reference: "XEON", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("WorkingDays failed: %v", err)
	}
	if days != 2 {
		t.Errorf("Expected 2 days, got %d", days)
	}
}

// TestWorkingDays_MinutesScaleWithQuantity verifies per-unit minutes
// multiply by quantity.
func TestWorkingDays_MinutesScaleWithQuantity(t *testing.T) {
	store := storeWith(t, leadTimeRule(cto.ComponentSSD, 100))
	calc := NewLeadTimeCalculator(store, LeadTimeDefaults{
		ComponentMinutes:   30,
		QAMinutes:          0,
		WorkingHoursPerDay: 8,
	})

	// 10 x 100 = 1000 minutes = ceil(1000/480) = 3 days.
	days, err := calc.WorkingDays("rs-1", []cto.Component{
		{Type: cto.ComponentSSD, Reference: "SSD-960", Quantity: 10},
	})
	if err != nil {
		t.Fatalf("WorkingDays failed: %v", err)
	}
	if days != 3 {
		t.Errorf("Expected 3 days for 1000 minutes, got %d", days)
	}
}
