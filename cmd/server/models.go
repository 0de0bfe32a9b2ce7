package main

import (
	"github.com/refurbd/ctoengine/audit"
	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/rules"
	"github.com/refurbd/ctoengine/ruleset"
)

// Request bodies for the HTTP API. Responses reuse the domain types
// directly.

type validateRequest struct {
	AssetID    string          `json:"assetId"`
	Components []cto.Component `json:"components"`
}

type createConfigurationRequest struct {
	AssetID    string          `json:"assetId"`
	Components []cto.Component `json:"components"`
}

type createRuleVersionRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Logic       rules.Logic `json:"logic"`
}

type createRuleSetRequest struct {
	Name     string              `json:"name"`
	Version  int                 `json:"version"`
	Activate bool                `json:"activate"`
	Rules    []ruleset.TypedRule `json:"rules"`
}

type simulateRequest struct {
	// ConfigurationID is optional: when empty the components are
	// evaluated on their own, without a stored base.
	ConfigurationID string          `json:"configurationId,omitempty"`
	Components      []cto.Component `json:"components"`
}

type recordDecisionRequest struct {
	ConfigurationID string            `json:"configurationId"`
	RuleVersionID   string            `json:"ruleVersionId"`
	Result          audit.Result      `json:"result"`
	Explanations    []cto.Explanation `json:"explanations"`
}
