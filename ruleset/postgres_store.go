package ruleset

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/refurbd/ctoengine/cto"
)

// PostgresStore implements Store backed by PostgreSQL. Typed rule
// payloads are stored as JSONB alongside their kind tag.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed rule set store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save persists a rule set and its typed rules in one transaction.
func (s *PostgresStore) Save(rs *RuleSet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
		INSERT INTO rule_sets (id, name, version, active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, rs.ID, rs.Name, rs.Version, rs.Active).Scan(&rs.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule set: %w", err)
	}

	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal typed rule: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO typed_rules (id, rule_set_id, kind, payload)
			VALUES ($1, $2, $3, $4)
		`, r.ID, rs.ID, string(r.Kind), payload); err != nil {
			return fmt.Errorf("failed to insert typed rule: %w", err)
		}
	}

	if rs.Active {
		if _, err := tx.Exec(`
			UPDATE rule_sets SET active = false WHERE active = true AND id <> $1
		`, rs.ID); err != nil {
			return fmt.Errorf("failed to deactivate previous rule set: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule set: %w", err)
	}
	return nil
}

// Get retrieves a rule set with its typed rules.
func (s *PostgresStore) Get(id string) (*RuleSet, error) {
	return s.getWhere(`id = $1`, id)
}

// ActiveRuleSet returns the single active rule set as one snapshot
// read.
func (s *PostgresStore) ActiveRuleSet() (*RuleSet, error) {
	rs, err := s.getWhere(`active = true`)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return nil, cto.ErrNoActiveRuleSet
	}
	return rs, err
}

// Activate flips the active pointer in one transaction.
func (s *PostgresStore) Activate(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE rule_sets SET active = false WHERE active = true`); err != nil {
		return fmt.Errorf("failed to deactivate rule sets: %w", err)
	}

	result, err := tx.Exec(`UPDATE rule_sets SET active = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to activate rule set: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule set %s not found", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

func (s *PostgresStore) getWhere(where string, args ...any) (*RuleSet, error) {
	var rs RuleSet
	err := s.db.QueryRow(`
		SELECT id, name, version, active, created_at
		FROM rule_sets
		WHERE `+where, args...).Scan(&rs.ID, &rs.Name, &rs.Version, &rs.Active, &rs.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule set not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule set: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT payload
		FROM typed_rules
		WHERE rule_set_id = $1
		ORDER BY kind, id
	`, rs.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list typed rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan typed rule: %w", err)
		}
		var r TypedRule
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("invalid stored typed rule in set %s: %w", rs.ID, err)
		}
		rs.Rules = append(rs.Rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating typed rules: %w", err)
	}

	return &rs, nil
}
