// Package configurator orchestrates the full configuration lifecycle:
// asset gatekeeping, rule validation, assembly plan derivation, price
// freezing, decision recording and what-if simulation.
package configurator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/refurbd/ctoengine/audit"
	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/pricing"
	"github.com/refurbd/ctoengine/rules"
	"github.com/refurbd/ctoengine/ruleset"
	"github.com/refurbd/ctoengine/simulation"
)

// ValidationOutcome is the full result of validating a configuration.
// AssemblyTasks, PriceSnapshot and LeadTimeDays are only populated when
// the configuration is valid.
type ValidationOutcome struct {
	Valid         bool                   `json:"valid"`
	Errors        []cto.ValidationError  `json:"errors"`
	RuleResults   []rules.RuleResult     `json:"rules,omitempty"`
	Explanations  []cto.Explanation      `json:"explanations"`
	RuleSetID     string                 `json:"ruleSetId,omitempty"`
	AssemblyTasks []ruleset.AssemblyTask `json:"assemblyTasks,omitempty"`
	PriceSnapshot *pricing.PriceSnapshot `json:"priceSnapshot,omitempty"`
	LeadTimeDays  int                    `json:"leadTimeDays,omitempty"`
}

// Service wires the stores, calculators and engines behind the public
// operations. All methods are safe for concurrent use when the
// underlying stores are.
type Service struct {
	assets    AssetClient
	configs   ConfigurationStore
	rulesets  ruleset.Store
	versions  rules.VersionStore
	engine    *rules.Engine
	audits    audit.Store
	pricer    *pricing.Calculator
	leadTimes *pricing.LeadTimeCalculator
	simulator *simulation.Engine
}

// NewService assembles a configurator service.
func NewService(
	assets AssetClient,
	configs ConfigurationStore,
	rulesets ruleset.Store,
	versions rules.VersionStore,
	engine *rules.Engine,
	audits audit.Store,
	pricer *pricing.Calculator,
	leadTimes *pricing.LeadTimeCalculator,
) *Service {
	return &Service{
		assets:    assets,
		configs:   configs,
		rulesets:  rulesets,
		versions:  versions,
		engine:    engine,
		audits:    audits,
		pricer:    pricer,
		leadTimes: leadTimes,
		simulator: simulation.NewEngine(configs, engine),
	}
}

// CreateConfiguration validates the asset gate and persists a new
// configuration without evaluating rules. The returned configuration
// carries a generated ID and the asset's product model.
func (s *Service) CreateConfiguration(ctx context.Context, assetID string, components []cto.Component) (*Configuration, error) {
	asset, err := s.lookupAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	cfg := &Configuration{
		ID:           uuid.New().String(),
		AssetID:      assetID,
		ProductModel: asset.ProductModel,
		Components:   append([]cto.Component(nil), components...),
	}
	if err := s.configs.SaveConfiguration(cfg); err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}
	return cfg, nil
}

// Components returns the component list of a stored configuration.
func (s *Service) Components(configurationID string) ([]cto.Component, error) {
	return s.configs.Components(configurationID)
}

// Snapshot returns the frozen snapshot of a configuration, or nil when
// none has been frozen yet.
func (s *Service) Snapshot(configurationID string) (*pricing.PriceSnapshot, error) {
	return s.configs.Snapshot(configurationID)
}

// Validate runs the full validation pipeline for an asset and a
// component list: asset gate, typed rule set checks, generic condition
// rules, and on success the assembly plan, price snapshot preview and
// lead time.
func (s *Service) Validate(ctx context.Context, assetID string, components []cto.Component) (*ValidationOutcome, error) {
	if len(components) == 0 {
		return &ValidationOutcome{
			Valid: false,
			Errors: []cto.ValidationError{{
				Code:    cto.CodeInputError,
				Message: "configuration has no components",
			}},
			Explanations: []cto.Explanation{},
		}, nil
	}

	asset, err := s.lookupAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	rs, err := s.rulesets.ActiveRuleSet()
	if err != nil {
		return nil, err
	}

	outcome := &ValidationOutcome{
		RuleSetID:    rs.ID,
		Errors:       ruleset.Evaluate(rs, asset.ProductModel, components),
		Explanations: []cto.Explanation{},
	}

	eval, err := s.engine.EvaluateConfiguration(components)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate condition rules: %w", err)
	}
	outcome.RuleResults = eval.Results
	outcome.Explanations = eval.Explanations

	outcome.Valid = len(outcome.Errors) == 0 && eval.Passed
	if !outcome.Valid {
		return outcome, nil
	}

	outcome.AssemblyTasks = ruleset.AssemblyTasks(components)

	snap, err := s.pricer.Snapshot(rs.ID, components)
	if err != nil {
		return nil, fmt.Errorf("failed to compute price snapshot: %w", err)
	}
	outcome.PriceSnapshot = snap

	days, err := s.leadTimes.WorkingDays(rs.ID, components)
	if err != nil {
		return nil, fmt.Errorf("failed to compute lead time: %w", err)
	}
	outcome.LeadTimeDays = days

	return outcome, nil
}

// FreezeSnapshot freezes the price of a configuration. If a snapshot
// already exists it is returned untouched; frozen figures are never
// recomputed, even after pricing rules change.
func (s *Service) FreezeSnapshot(configurationID string) (*pricing.PriceSnapshot, error) {
	existing, err := s.configs.Snapshot(configurationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	components, err := s.configs.Components(configurationID)
	if err != nil {
		return nil, err
	}

	rs, err := s.rulesets.ActiveRuleSet()
	if err != nil {
		return nil, err
	}

	snap, err := s.pricer.Snapshot(rs.ID, components)
	if err != nil {
		return nil, fmt.Errorf("failed to compute price snapshot: %w", err)
	}
	snap.FrozenAt = time.Now().UTC()

	if err := s.configs.SaveSnapshot(configurationID, snap); err != nil {
		// Lost a race with a concurrent freeze; the stored snapshot
		// is the committed one.
		stored, getErr := s.configs.Snapshot(configurationID)
		if getErr == nil && stored != nil {
			return stored, nil
		}
		return nil, err
	}
	return snap, nil
}

// EvaluateAndRecord runs the condition rules against a stored
// configuration and commits one decision per rule to the audit trail.
// A configuration with existing decisions is never re-evaluated.
func (s *Service) EvaluateAndRecord(configurationID string) (*audit.ConfigurationAudit, error) {
	evaluated, err := s.audits.HasExistingDecisions(configurationID)
	if err != nil {
		return nil, err
	}
	if evaluated {
		return nil, fmt.Errorf("configuration %s: %w", configurationID, cto.ErrAlreadyEvaluated)
	}

	components, err := s.configs.Components(configurationID)
	if err != nil {
		return nil, err
	}

	eval, err := s.engine.EvaluateConfiguration(components)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate condition rules: %w", err)
	}

	for _, rr := range eval.Results {
		result := audit.ResultAccept
		var explanations []cto.Explanation
		if !rr.Passed {
			if rr.Action == rules.ActionBlock {
				result = audit.ResultReject
			}
			if rr.Explanation != nil {
				explanations = []cto.Explanation{*rr.Explanation}
			}
		}
		if _, err := s.audits.RecordDecision(configurationID, rr.RuleVersionID, result, explanations); err != nil {
			return nil, fmt.Errorf("failed to record decision for rule %s: %w", rr.RuleID, err)
		}
	}

	return s.audits.GetAudit(configurationID)
}

// RecordDecision commits a single decision, verifying the referenced
// rule version exists first.
func (s *Service) RecordDecision(configurationID, ruleVersionID string, result audit.Result, explanations []cto.Explanation) (*audit.Decision, error) {
	if _, err := s.versions.Get(ruleVersionID); err != nil {
		return nil, err
	}
	return s.audits.RecordDecision(configurationID, ruleVersionID, result, explanations)
}

// GetConfigurationAudit returns the committed decision trail.
func (s *Service) GetConfigurationAudit(configurationID string) (*audit.ConfigurationAudit, error) {
	return s.audits.GetAudit(configurationID)
}

// CreateRuleVersion validates the rule logic and appends a new
// immutable version, then drops the evaluation cache so the next
// evaluation sees it.
func (s *Service) CreateRuleVersion(ruleID, name, description string, logic rules.Logic) (*rules.RuleVersion, error) {
	if err := rules.ValidateLogic(logic); err != nil {
		return nil, err
	}
	rv, err := s.versions.CreateVersion(ruleID, name, description, logic)
	if err != nil {
		return nil, err
	}
	s.engine.InvalidateCache()
	return rv, nil
}

// RuleHistory returns all versions of a rule, newest first.
func (s *Service) RuleHistory(ruleID string) ([]*rules.RuleVersion, error) {
	return s.versions.History(ruleID)
}

// LatestRuleVersion returns the newest version of a rule.
func (s *Service) LatestRuleVersion(ruleID string) (*rules.RuleVersion, error) {
	return s.versions.Latest(ruleID)
}

// Simulate evaluates hypothetical component changes against a stored
// configuration without persisting anything. An empty configuration ID
// evaluates the overrides on their own.
func (s *Service) Simulate(configurationID string, overrides []cto.Component) (*simulation.Result, error) {
	return s.simulator.Simulate(configurationID, overrides)
}

// SimulateChange simulates a single component swap.
func (s *Service) SimulateChange(configurationID string, componentType cto.ComponentType, reference string, quantity int) (*simulation.Result, error) {
	return s.simulator.SimulateChange(configurationID, componentType, reference, quantity)
}

// lookupAsset fetches the asset and enforces the sellable gate. Any
// lookup failure blocks validation.
func (s *Service) lookupAsset(ctx context.Context, assetID string) (*Asset, error) {
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Status != StatusSellable {
		return nil, fmt.Errorf("asset %s has status %s: %w", assetID, asset.Status, cto.ErrAssetNotSellable)
	}
	return asset, nil
}
