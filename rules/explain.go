package rules

import (
	"fmt"
	"strings"

	"github.com/refurbd/ctoengine/cto"
)

// Explanation codes for failed rule evaluations.
const (
	CodeRuleViolation = "RULE_VIOLATION"
	CodeRuleWarning   = "RULE_WARNING"
)

const defaultMessageTemplate = "condition {field} {operator} {value} not satisfied by [{components}]"

// explain renders an explanation for the condition that failed a rule.
// Substitution is a fixed four-placeholder replacement, not a template
// engine: the rule format only ever defines {field}, {value},
// {operator} and {components}.
func explain(logic Logic, failed Condition, components []cto.Component) cto.Explanation {
	tmpl := logic.Message
	if tmpl == "" {
		tmpl = defaultMessageTemplate
	}

	r := strings.NewReplacer(
		"{field}", failed.Field,
		"{value}", failed.Value,
		"{operator}", string(failed.Operator),
		"{components}", componentsSummary(components),
	)

	expl := cto.Explanation{
		Code:     CodeRuleViolation,
		Message:  r.Replace(tmpl),
		Severity: cto.SeverityError,
	}
	if logic.Action == ActionWarn {
		expl.Code = CodeRuleWarning
		expl.Severity = cto.SeverityWarning
	}
	return expl
}

func componentsSummary(components []cto.Component) string {
	if len(components) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(components))
	for _, c := range components {
		parts = append(parts, fmt.Sprintf("%s:%s x%d", c.Type, c.Reference, c.Quantity))
	}
	return strings.Join(parts, ", ")
}
