package configurator

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/pricing"
)

// PostgresConfigurationStore implements ConfigurationStore backed by
// PostgreSQL. Components and snapshots are stored as JSONB; the
// write-once snapshot guard is a conditional UPDATE so two concurrent
// freezes cannot both win.
type PostgresConfigurationStore struct {
	db *sql.DB
}

// NewPostgresConfigurationStore creates a PostgreSQL-backed
// configuration store.
func NewPostgresConfigurationStore(db *sql.DB) *PostgresConfigurationStore {
	return &PostgresConfigurationStore{db: db}
}

// SaveConfiguration persists a configuration.
func (s *PostgresConfigurationStore) SaveConfiguration(cfg *Configuration) error {
	if cfg.ID == "" {
		return fmt.Errorf("configuration ID is required")
	}

	componentsJSON, err := json.Marshal(cfg.Components)
	if err != nil {
		return fmt.Errorf("failed to marshal components: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO configurations (id, asset_id, product_model, components, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			asset_id = EXCLUDED.asset_id,
			product_model = EXCLUDED.product_model,
			components = EXCLUDED.components
	`, cfg.ID, cfg.AssetID, cfg.ProductModel, componentsJSON)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// GetConfiguration retrieves a configuration by ID.
func (s *PostgresConfigurationStore) GetConfiguration(id string) (*Configuration, error) {
	var (
		cfg            Configuration
		componentsJSON []byte
	)
	err := s.db.QueryRow(`
		SELECT id, asset_id, product_model, components
		FROM configurations
		WHERE id = $1
	`, id).Scan(&cfg.ID, &cfg.AssetID, &cfg.ProductModel, &componentsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("configuration %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query configuration: %w", err)
	}

	if err := json.Unmarshal(componentsJSON, &cfg.Components); err != nil {
		return nil, fmt.Errorf("failed to unmarshal components: %w", err)
	}
	return &cfg, nil
}

// Components returns the component list of a configuration.
func (s *PostgresConfigurationStore) Components(configurationID string) ([]cto.Component, error) {
	cfg, err := s.GetConfiguration(configurationID)
	if err != nil {
		return nil, err
	}
	return cfg.Components, nil
}

// Snapshot returns the frozen snapshot, or nil when none exists.
func (s *PostgresConfigurationStore) Snapshot(configurationID string) (*pricing.PriceSnapshot, error) {
	var snapshotJSON []byte
	err := s.db.QueryRow(`
		SELECT price_snapshot
		FROM configurations
		WHERE id = $1
	`, configurationID).Scan(&snapshotJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("configuration %s not found", configurationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	if snapshotJSON == nil {
		return nil, nil
	}

	var snap pricing.PriceSnapshot
	if err := json.Unmarshal(snapshotJSON, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot freezes a snapshot. The UPDATE only matches rows that
// have no snapshot yet, so a second freeze affects zero rows and fails.
func (s *PostgresConfigurationStore) SaveSnapshot(configurationID string, snap *pricing.PriceSnapshot) error {
	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE configurations
		SET price_snapshot = $2
		WHERE id = $1 AND price_snapshot IS NULL
	`, configurationID, snapshotJSON)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check snapshot write: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("configuration %s already has a frozen snapshot or does not exist", configurationID)
	}
	return nil
}
