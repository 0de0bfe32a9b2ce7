package rules

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/refurbd/ctoengine/cto"
)

// VersionStore manages append-only persistence of rule versions. The
// interface deliberately exposes no update or delete: an amendment to a
// rule is always a new version, and recorded versions are immutable.
type VersionStore interface {
	// CreateVersion persists the next version for ruleID (1 when none
	// exists yet). Concurrent writers never produce two versions with
	// the same (ruleID, version) pair.
	CreateVersion(ruleID, name, description string, logic Logic) (*RuleVersion, error)

	// Get retrieves a version by its ID.
	Get(versionID string) (*RuleVersion, error)

	// Latest returns the highest version for ruleID.
	Latest(ruleID string) (*RuleVersion, error)

	// History returns all versions for ruleID, newest first.
	History(ruleID string) ([]*RuleVersion, error)

	// AllLatest returns one version per distinct ruleID, each the
	// maximum version.
	AllLatest() ([]*RuleVersion, error)
}

// InMemoryVersionStore implements VersionStore with a mutex-guarded map.
// Used in tests and for embedded setups without Postgres.
type InMemoryVersionStore struct {
	byRule map[string][]*RuleVersion // ascending by version
	byID   map[string]*RuleVersion
	mu     sync.Mutex
}

// NewInMemoryVersionStore creates an empty in-memory version store.
func NewInMemoryVersionStore() *InMemoryVersionStore {
	return &InMemoryVersionStore{
		byRule: make(map[string][]*RuleVersion),
		byID:   make(map[string]*RuleVersion),
	}
}

// CreateVersion appends the next version for ruleID. The single mutex
// serializes writers, so version numbers are gapless and never reused.
func (s *InMemoryVersionStore) CreateVersion(ruleID, name, description string, logic Logic) (*RuleVersion, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("rule ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rv := &RuleVersion{
		ID:          uuid.New().String(),
		RuleID:      ruleID,
		Version:     len(s.byRule[ruleID]) + 1,
		Name:        name,
		Description: description,
		Logic:       logic,
		CreatedAt:   time.Now(),
	}
	// Copy the conditions so the caller cannot mutate stored logic.
	stored := rv.clone()
	s.byRule[ruleID] = append(s.byRule[ruleID], stored)
	s.byID[stored.ID] = stored

	return rv.clone(), nil
}

// Get retrieves a version by its ID.
func (s *InMemoryVersionStore) Get(versionID string) (*RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rv, exists := s.byID[versionID]
	if !exists {
		return nil, fmt.Errorf("version %s: %w", versionID, cto.ErrRuleVersionNotFound)
	}
	return rv.clone(), nil
}

// Latest returns the highest version for ruleID.
func (s *InMemoryVersionStore) Latest(ruleID string) (*RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.byRule[ruleID]
	if len(versions) == 0 {
		return nil, fmt.Errorf("rule %s: %w", ruleID, cto.ErrRuleNotFound)
	}
	return versions[len(versions)-1].clone(), nil
}

// History returns all versions for ruleID, newest first.
func (s *InMemoryVersionStore) History(ruleID string) ([]*RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.byRule[ruleID]
	if len(versions) == 0 {
		return nil, fmt.Errorf("rule %s: %w", ruleID, cto.ErrRuleNotFound)
	}

	out := make([]*RuleVersion, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i].clone())
	}
	return out, nil
}

// AllLatest returns the latest version of every rule, ordered by rule
// ID so repeated evaluations see the rules in the same order.
func (s *InMemoryVersionStore) AllLatest() ([]*RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*RuleVersion, 0, len(s.byRule))
	for _, versions := range s.byRule {
		out = append(out, versions[len(versions)-1].clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}
