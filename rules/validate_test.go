package rules

import (
	"strings"
	"testing"
)

// TestValidateLogic_Valid verifies a well-formed logic passes.
func TestValidateLogic_Valid(t *testing.T) {
	logic := Logic{
		Conditions: []Condition{
			{Field: "component.type", Operator: OpEquals, Value: "CPU"},
		},
		Action:  ActionBlock,
		Message: "{field} must be {value}, have [{components}]",
	}
	if err := ValidateLogic(logic); err != nil {
		t.Errorf("Expected valid logic, got error: %v", err)
	}
}

// TestValidateLogic_MissingAction verifies an empty action is rejected.
func TestValidateLogic_MissingAction(t *testing.T) {
	err := ValidateLogic(Logic{})
	if err == nil {
		t.Fatal("Expected error for missing action, got nil")
	}
	if !strings.Contains(err.Error(), "action") {
		t.Errorf("Expected error to mention action, got: %v", err)
	}
}

// TestValidateLogic_InvalidAction verifies unknown actions are
// rejected.
func TestValidateLogic_InvalidAction(t *testing.T) {
	if err := ValidateLogic(Logic{Action: "DENY"}); err == nil {
		t.Error("Expected error for action DENY, got nil")
	}
}

// TestValidateLogic_BadField verifies fields must be entity.property.
func TestValidateLogic_BadField(t *testing.T) {
	for _, field := range []string{"", "component", "component.", ".type", "a.b.c", "a b.c"} {
		logic := Logic{
			Conditions: []Condition{{Field: field, Operator: OpEquals, Value: "X"}},
			Action:     ActionBlock,
		}
		if err := ValidateLogic(logic); err == nil {
			t.Errorf("Expected error for field %q, got nil", field)
		}
	}
}

// TestValidateLogic_BadOperator verifies unknown operators are
// rejected.
func TestValidateLogic_BadOperator(t *testing.T) {
	logic := Logic{
		Conditions: []Condition{{Field: "component.type", Operator: "MATCHES", Value: "X"}},
		Action:     ActionBlock,
	}
	if err := ValidateLogic(logic); err == nil {
		t.Error("Expected error for operator MATCHES, got nil")
	}
}

// TestValidateLogic_WhitespaceValue verifies values with surrounding
// whitespace are rejected rather than silently trimmed.
func TestValidateLogic_WhitespaceValue(t *testing.T) {
	logic := Logic{
		Conditions: []Condition{{Field: "component.type", Operator: OpEquals, Value: " CPU"}},
		Action:     ActionBlock,
	}
	if err := ValidateLogic(logic); err == nil {
		t.Error("Expected error for value with leading whitespace, got nil")
	}
}

// TestValidateLogic_UnknownPlaceholder verifies message templates may
// only use the four defined placeholders.
func TestValidateLogic_UnknownPlaceholder(t *testing.T) {
	logic := Logic{
		Action:  ActionBlock,
		Message: "rule {name} failed",
	}
	err := ValidateLogic(logic)
	if err == nil {
		t.Fatal("Expected error for unknown placeholder, got nil")
	}
	if !strings.Contains(err.Error(), "{name}") {
		t.Errorf("Expected error to name the bad placeholder, got: %v", err)
	}
}
