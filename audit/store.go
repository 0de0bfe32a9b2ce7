package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/refurbd/ctoengine/cto"
)

// Store records evaluation outcomes for audit. The interface is
// append-only by construction: there is no update or delete. The store
// does not block re-insertion for an already-decided configuration;
// that discipline belongs to the calling workflow, which checks
// HasExistingDecisions first.
type Store interface {
	// RecordDecision inserts one decision with its explanations and a
	// system-generated identifier.
	RecordDecision(configurationID, ruleVersionID string, result Result, explanations []cto.Explanation) (*Decision, error)

	// GetAudit returns the configuration's decisions ordered by
	// creation time, or cto.ErrAuditNotAvailable when none exist.
	GetAudit(configurationID string) (*ConfigurationAudit, error)

	// HasExistingDecisions reports whether any decision was recorded
	// for the configuration.
	HasExistingDecisions(configurationID string) (bool, error)
}

// InMemoryStore implements Store with a mutex-guarded map. Used in
// tests and embedded setups.
type InMemoryStore struct {
	decisions map[string][]Decision // configurationID -> insertion order
	mu        sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory decision store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{decisions: make(map[string][]Decision)}
}

// RecordDecision appends a decision. Pure insert, never an update.
func (s *InMemoryStore) RecordDecision(configurationID, ruleVersionID string, result Result, explanations []cto.Explanation) (*Decision, error) {
	if configurationID == "" {
		return nil, fmt.Errorf("configuration ID is required")
	}
	if result != ResultAccept && result != ResultReject {
		return nil, fmt.Errorf("invalid decision result %q", result)
	}

	d := Decision{
		ID:              uuid.New().String(),
		ConfigurationID: configurationID,
		RuleVersionID:   ruleVersionID,
		Result:          result,
		Explanations:    append([]cto.Explanation(nil), explanations...),
		CreatedAt:       time.Now(),
	}

	s.mu.Lock()
	s.decisions[configurationID] = append(s.decisions[configurationID], d)
	s.mu.Unlock()

	out := d
	out.Explanations = append([]cto.Explanation(nil), d.Explanations...)
	return &out, nil
}

// GetAudit assembles the audit trail for a configuration.
func (s *InMemoryStore) GetAudit(configurationID string) (*ConfigurationAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.decisions[configurationID]
	if len(stored) == 0 {
		return nil, fmt.Errorf("configuration %s: %w", configurationID, cto.ErrAuditNotAvailable)
	}

	decisions := make([]Decision, len(stored))
	for i, d := range stored {
		decisions[i] = d
		decisions[i].Explanations = append([]cto.Explanation(nil), d.Explanations...)
	}

	return assembleAudit(configurationID, decisions), nil
}

// HasExistingDecisions reports whether any decision exists.
func (s *InMemoryStore) HasExistingDecisions(configurationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions[configurationID]) > 0, nil
}

// assembleAudit derives the aggregate fields from decisions already
// ordered by creation time: overall result is REJECT if any decision is
// REJECT, and EvaluatedAt is the earliest decision time.
func assembleAudit(configurationID string, decisions []Decision) *ConfigurationAudit {
	audit := &ConfigurationAudit{
		ConfigurationID: configurationID,
		Decisions:       decisions,
		OverallResult:   ResultAccept,
		EvaluatedAt:     decisions[0].CreatedAt,
	}
	for _, d := range decisions {
		if d.Result == ResultReject {
			audit.OverallResult = ResultReject
		}
		if d.CreatedAt.Before(audit.EvaluatedAt) {
			audit.EvaluatedAt = d.CreatedAt
		}
	}
	return audit
}
