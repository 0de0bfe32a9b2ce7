package rules

import (
	"time"

	"github.com/refurbd/ctoengine/cto"
)

// Operator is a comparison applied by a generic rule condition.
type Operator string

const (
	OpEquals      Operator = "EQUALS"
	OpNotEquals   Operator = "NOT_EQUALS"
	OpContains    Operator = "CONTAINS"
	OpGreaterThan Operator = "GREATER_THAN"
	OpLessThan    Operator = "LESS_THAN"
)

// Action determines what a failed rule does to the configuration.
type Action string

const (
	ActionBlock Action = "BLOCK"
	ActionWarn  Action = "WARN"
)

// Condition is a single field/operator/value check. Field is of the
// form "entity.property"; only "component.<property>" is meaningful.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Logic is the evaluable body of a rule version. Message is a template
// supporting the fixed placeholders {field}, {value}, {operator} and
// {components}.
type Logic struct {
	Type       string      `json:"type"`
	Conditions []Condition `json:"conditions"`
	Action     Action      `json:"action"`
	Message    string      `json:"message"`
}

// RuleVersion is one immutable, numbered revision of a rule. For a
// given RuleID versions start at 1 and increase strictly; an amendment
// always creates version+1, never touches an existing row.
type RuleVersion struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"ruleId"`
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Logic       Logic     `json:"logic"`
	CreatedAt   time.Time `json:"createdAt"`
}

// clone returns a deep copy so a stored version's logic can never be
// mutated through a returned pointer.
func (rv *RuleVersion) clone() *RuleVersion {
	cp := *rv
	cp.Logic.Conditions = make([]Condition, len(rv.Logic.Conditions))
	copy(cp.Logic.Conditions, rv.Logic.Conditions)
	return &cp
}

// RuleResult is the outcome of evaluating one rule version against a
// component list.
type RuleResult struct {
	RuleID        string           `json:"ruleId"`
	RuleVersionID string           `json:"ruleVersionId"`
	Version       int              `json:"version"`
	Name          string           `json:"name"`
	Action        Action           `json:"action"`
	Passed        bool             `json:"passed"`
	Explanation   *cto.Explanation `json:"explanation,omitempty"`
}

// EvaluationResult aggregates per-rule results for a whole component
// list. Passed is true iff every rule passed.
type EvaluationResult struct {
	Results      []RuleResult      `json:"rules"`
	Passed       bool              `json:"passed"`
	Explanations []cto.Explanation `json:"explanations"`
}
