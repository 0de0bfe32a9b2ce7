package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// fieldPattern validates condition fields of the form "entity.property".
var fieldPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*\.[a-zA-Z_][a-zA-Z0-9_]*$`)

// placeholderPattern finds {placeholder} occurrences in a message template.
var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z]+\}`)

// knownPlaceholders are the only substitutions the explanation renderer
// performs.
var knownPlaceholders = map[string]bool{
	"{field}":      true,
	"{value}":      true,
	"{operator}":   true,
	"{components}": true,
}

// ValidateLogic validates a rule logic payload before a new version is
// created. Returns an error describing the first problem found, nil if
// the logic is well-formed.
func ValidateLogic(logic Logic) error {
	switch logic.Action {
	case ActionBlock, ActionWarn:
	case "":
		return fmt.Errorf("action is required (BLOCK or WARN)")
	default:
		return fmt.Errorf("invalid action %q (must be BLOCK or WARN)", logic.Action)
	}

	for i, c := range logic.Conditions {
		if c.Field == "" {
			return fmt.Errorf("condition %d: field is required", i)
		}
		if !fieldPattern.MatchString(c.Field) {
			return fmt.Errorf("condition %d: field %q must have the form entity.property", i, c.Field)
		}
		if !isValidOperator(c.Operator) {
			return fmt.Errorf("condition %d: invalid operator %q (must be one of: EQUALS, NOT_EQUALS, CONTAINS, GREATER_THAN, LESS_THAN)", i, c.Operator)
		}
		if strings.TrimSpace(c.Value) != c.Value {
			return fmt.Errorf("condition %d: value has leading/trailing whitespace: %q", i, c.Value)
		}
	}

	for _, ph := range placeholderPattern.FindAllString(logic.Message, -1) {
		if !knownPlaceholders[ph] {
			return fmt.Errorf("message template uses unknown placeholder %s (known: {field}, {value}, {operator}, {components})", ph)
		}
	}

	return nil
}

func isValidOperator(op Operator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan:
		return true
	default:
		return false
	}
}
