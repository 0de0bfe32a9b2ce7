package rules

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/refurbd/ctoengine/cto"
)

// uniqueViolation is the Postgres error code raised when the
// (rule_id, version) uniqueness constraint rejects an insert.
const uniqueViolation = "23505"

// createVersionRetries bounds the retry loop when concurrent writers
// race for the same next version number.
const createVersionRetries = 3

// PostgresVersionStore implements VersionStore backed by PostgreSQL.
type PostgresVersionStore struct {
	db *sql.DB
}

// NewPostgresVersionStore creates a PostgreSQL-backed version store.
func NewPostgresVersionStore(db *sql.DB) *PostgresVersionStore {
	return &PostgresVersionStore{db: db}
}

// CreateVersion computes version = MAX(version)+1 and inserts in a
// single statement. Two concurrent writers can compute the same number;
// the UNIQUE (rule_id, version) constraint rejects the loser, which
// retries with a fresh computation.
func (s *PostgresVersionStore) CreateVersion(ruleID, name, description string, logic Logic) (*RuleVersion, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("rule ID is required")
	}

	logicJSON, err := json.Marshal(logic)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule logic: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < createVersionRetries; attempt++ {
		rv := &RuleVersion{
			ID:          uuid.New().String(),
			RuleID:      ruleID,
			Name:        name,
			Description: description,
			Logic:       logic,
		}

		err := s.db.QueryRow(`
			INSERT INTO rule_versions (id, rule_id, version, name, description, logic, created_at)
			SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5, NOW()
			FROM rule_versions
			WHERE rule_id = $2
			RETURNING version, created_at
		`, rv.ID, ruleID, name, description, logicJSON).Scan(&rv.Version, &rv.CreatedAt)

		if err == nil {
			return rv, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			lastErr = err
			continue
		}
		return nil, fmt.Errorf("failed to insert rule version: %w", err)
	}

	return nil, fmt.Errorf("failed to insert rule version after %d attempts: %w", createVersionRetries, lastErr)
}

// Get retrieves a version by its ID.
func (s *PostgresVersionStore) Get(versionID string) (*RuleVersion, error) {
	row := s.db.QueryRow(`
		SELECT id, rule_id, version, name, description, logic, created_at
		FROM rule_versions
		WHERE id = $1
	`, versionID)

	rv, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", versionID, cto.ErrRuleVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule version: %w", err)
	}
	return rv, nil
}

// Latest returns the highest version for ruleID.
func (s *PostgresVersionStore) Latest(ruleID string) (*RuleVersion, error) {
	row := s.db.QueryRow(`
		SELECT id, rule_id, version, name, description, logic, created_at
		FROM rule_versions
		WHERE rule_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, ruleID)

	rv, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", ruleID, cto.ErrRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return rv, nil
}

// History returns all versions for ruleID, newest first.
func (s *PostgresVersionStore) History(ruleID string) ([]*RuleVersion, error) {
	rows, err := s.db.Query(`
		SELECT id, rule_id, version, name, description, logic, created_at
		FROM rule_versions
		WHERE rule_id = $1
		ORDER BY version DESC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule history: %w", err)
	}
	defer rows.Close()

	versions, err := scanVersions(rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("rule %s: %w", ruleID, cto.ErrRuleNotFound)
	}
	return versions, nil
}

// AllLatest returns one version per distinct rule, each the maximum.
func (s *PostgresVersionStore) AllLatest() ([]*RuleVersion, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT ON (rule_id)
		       id, rule_id, version, name, description, logic, created_at
		FROM rule_versions
		ORDER BY rule_id, version DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest versions: %w", err)
	}
	defer rows.Close()

	return scanVersions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*RuleVersion, error) {
	var rv RuleVersion
	var logicJSON []byte
	if err := row.Scan(&rv.ID, &rv.RuleID, &rv.Version, &rv.Name,
		&rv.Description, &logicJSON, &rv.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(logicJSON, &rv.Logic); err != nil {
		return nil, fmt.Errorf("invalid stored logic for version %s: %w", rv.ID, err)
	}
	return &rv, nil
}

func scanVersions(rows *sql.Rows) ([]*RuleVersion, error) {
	var versions []*RuleVersion
	for rows.Next() {
		rv, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule version: %w", err)
		}
		versions = append(versions, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule versions: %w", err)
	}
	return versions, nil
}
