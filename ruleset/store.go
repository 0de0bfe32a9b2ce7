package ruleset

import (
	"fmt"
	"sync"
	"time"

	"github.com/refurbd/ctoengine/cto"
)

// Store manages rule sets and the single active pointer. ActiveRuleSet
// returns an atomic snapshot so an evaluation never observes a rule set
// that changes midway.
type Store interface {
	// Save persists a new rule set.
	Save(rs *RuleSet) error

	// Get retrieves a rule set by ID.
	Get(id string) (*RuleSet, error)

	// ActiveRuleSet returns a snapshot of the currently active rule
	// set, or cto.ErrNoActiveRuleSet when none is active.
	ActiveRuleSet() (*RuleSet, error)

	// Activate makes the given rule set the active one, deactivating
	// any previously active set.
	Activate(id string) error
}

// InMemoryStore implements Store with a mutex-guarded map. Used in
// tests and embedded setups.
type InMemoryStore struct {
	sets     map[string]*RuleSet
	activeID string
	mu       sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory rule set store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sets: make(map[string]*RuleSet)}
}

// Save persists a new rule set.
func (s *InMemoryStore) Save(rs *RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sets[rs.ID]; exists {
		return fmt.Errorf("rule set %s already exists", rs.ID)
	}

	stored := rs.clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.sets[rs.ID] = stored
	if stored.Active {
		s.setActiveLocked(stored.ID)
	}
	return nil
}

// Get retrieves a rule set by ID.
func (s *InMemoryStore) Get(id string) (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, exists := s.sets[id]
	if !exists {
		return nil, fmt.Errorf("rule set %s not found", id)
	}
	return rs.clone(), nil
}

// ActiveRuleSet returns a snapshot of the active rule set.
func (s *InMemoryStore) ActiveRuleSet() (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return nil, cto.ErrNoActiveRuleSet
	}
	return s.sets[s.activeID].clone(), nil
}

// Activate switches the active pointer to the given rule set.
func (s *InMemoryStore) Activate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sets[id]; !exists {
		return fmt.Errorf("rule set %s not found", id)
	}
	s.setActiveLocked(id)
	return nil
}

func (s *InMemoryStore) setActiveLocked(id string) {
	if s.activeID != "" && s.activeID != id {
		s.sets[s.activeID].Active = false
	}
	s.sets[id].Active = true
	s.activeID = id
}
