package configurator

import (
	"fmt"
	"sync"

	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/pricing"
)

// Configuration is a stored customer build: the asset it targets plus
// the selected components.
type Configuration struct {
	ID           string          `json:"id"`
	AssetID      string          `json:"assetId"`
	ProductModel string          `json:"productModel"`
	Components   []cto.Component `json:"components"`
}

// ConfigurationStore persists configurations and their frozen price
// snapshots. SaveSnapshot is write-once: a second write for the same
// configuration fails instead of replacing the committed figures.
type ConfigurationStore interface {
	// SaveConfiguration persists a configuration.
	SaveConfiguration(cfg *Configuration) error

	// GetConfiguration retrieves a configuration by ID.
	GetConfiguration(id string) (*Configuration, error)

	// Components returns the component list of a configuration.
	Components(configurationID string) ([]cto.Component, error)

	// Snapshot returns the frozen snapshot, or nil when none exists.
	Snapshot(configurationID string) (*pricing.PriceSnapshot, error)

	// SaveSnapshot freezes a snapshot. Fails if one already exists.
	SaveSnapshot(configurationID string, snap *pricing.PriceSnapshot) error
}

// InMemoryConfigurationStore implements ConfigurationStore with
// mutex-guarded maps.
type InMemoryConfigurationStore struct {
	configs   map[string]*Configuration
	snapshots map[string]*pricing.PriceSnapshot
	mu        sync.RWMutex
}

// NewInMemoryConfigurationStore creates an empty in-memory store.
func NewInMemoryConfigurationStore() *InMemoryConfigurationStore {
	return &InMemoryConfigurationStore{
		configs:   make(map[string]*Configuration),
		snapshots: make(map[string]*pricing.PriceSnapshot),
	}
}

// SaveConfiguration persists a configuration.
func (s *InMemoryConfigurationStore) SaveConfiguration(cfg *Configuration) error {
	if cfg.ID == "" {
		return fmt.Errorf("configuration ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *cfg
	stored.Components = append([]cto.Component(nil), cfg.Components...)
	s.configs[cfg.ID] = &stored
	return nil
}

// GetConfiguration retrieves a configuration by ID.
func (s *InMemoryConfigurationStore) GetConfiguration(id string) (*Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[id]
	if !ok {
		return nil, fmt.Errorf("configuration %s not found", id)
	}
	out := *cfg
	out.Components = append([]cto.Component(nil), cfg.Components...)
	return &out, nil
}

// Components returns the component list of a configuration.
func (s *InMemoryConfigurationStore) Components(configurationID string) ([]cto.Component, error) {
	cfg, err := s.GetConfiguration(configurationID)
	if err != nil {
		return nil, err
	}
	return cfg.Components, nil
}

// Snapshot returns the frozen snapshot, or nil when none exists.
func (s *InMemoryConfigurationStore) Snapshot(configurationID string) (*pricing.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[configurationID]
	if !ok {
		return nil, nil
	}
	out := *snap
	out.Components = append([]pricing.SnapshotLine(nil), snap.Components...)
	return &out, nil
}

// SaveSnapshot freezes a snapshot. Fails if one already exists.
func (s *InMemoryConfigurationStore) SaveSnapshot(configurationID string, snap *pricing.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[configurationID]; exists {
		return fmt.Errorf("configuration %s already has a frozen snapshot", configurationID)
	}

	stored := *snap
	stored.Components = append([]pricing.SnapshotLine(nil), snap.Components...)
	s.snapshots[configurationID] = &stored
	return nil
}
