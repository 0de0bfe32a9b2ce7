package audit

import (
	"time"

	"github.com/refurbd/ctoengine/cto"
)

// Result is the outcome of evaluating one rule version against one
// configuration.
type Result string

const (
	ResultAccept Result = "ACCEPT"
	ResultReject Result = "REJECT"
)

// Decision is the persisted outcome of a single rule-version
// evaluation. Immutable once created; there is no API to update or
// delete one.
type Decision struct {
	ID              string            `json:"id"`
	ConfigurationID string            `json:"configurationId"`
	RuleVersionID   string            `json:"ruleVersionId"`
	Result          Result            `json:"result"`
	Explanations    []cto.Explanation `json:"explanations"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// ConfigurationAudit is the full audit trail of a configuration: its
// decisions in creation order, the aggregate outcome, and the instant
// of the earliest decision.
type ConfigurationAudit struct {
	ConfigurationID string     `json:"configurationId"`
	Decisions       []Decision `json:"decisions"`
	OverallResult   Result     `json:"overallResult"`
	EvaluatedAt     time.Time  `json:"evaluatedAt"`
}
