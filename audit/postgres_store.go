package audit

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/refurbd/ctoengine/cto"
)

// PostgresStore implements Store backed by PostgreSQL. Decisions and
// their explanations are inserted in one transaction; nothing here
// updates or deletes a row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed decision store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RecordDecision inserts a decision with its explanations.
func (s *PostgresStore) RecordDecision(configurationID, ruleVersionID string, result Result, explanations []cto.Explanation) (*Decision, error) {
	if configurationID == "" {
		return nil, fmt.Errorf("configuration ID is required")
	}
	if result != ResultAccept && result != ResultReject {
		return nil, fmt.Errorf("invalid decision result %q", result)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	d := &Decision{
		ID:              uuid.New().String(),
		ConfigurationID: configurationID,
		RuleVersionID:   ruleVersionID,
		Result:          result,
		Explanations:    append([]cto.Explanation(nil), explanations...),
	}

	// A decision may predate any condition rule, so the version
	// reference is nullable.
	var versionRef any
	if ruleVersionID != "" {
		versionRef = ruleVersionID
	}

	err = tx.QueryRow(`
		INSERT INTO decisions (id, configuration_id, rule_version_id, result, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, d.ID, configurationID, versionRef, string(result)).Scan(&d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert decision: %w", err)
	}

	// The ordinal preserves insertion order; explanation IDs are
	// random UUIDs and carry no ordering.
	for i, expl := range d.Explanations {
		if _, err := tx.Exec(`
			INSERT INTO explanations (id, decision_id, ordinal, code, message, severity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), d.ID, i, expl.Code, expl.Message, string(expl.Severity)); err != nil {
			return nil, fmt.Errorf("failed to insert explanation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit decision: %w", err)
	}
	return d, nil
}

// GetAudit loads the configuration's decisions in creation order with
// their explanations.
func (s *PostgresStore) GetAudit(configurationID string) (*ConfigurationAudit, error) {
	rows, err := s.db.Query(`
		SELECT d.id, COALESCE(d.rule_version_id::text, ''), d.result, d.created_at,
		       e.code, e.message, e.severity
		FROM decisions d
		LEFT JOIN explanations e ON e.decision_id = d.id
		WHERE d.configuration_id = $1
		ORDER BY d.created_at ASC, d.id ASC, e.ordinal ASC
	`, configurationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var (
			d                       Decision
			code, message, severity sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.RuleVersionID, &d.Result, &d.CreatedAt,
			&code, &message, &severity); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		if len(decisions) == 0 || decisions[len(decisions)-1].ID != d.ID {
			d.ConfigurationID = configurationID
			d.Explanations = []cto.Explanation{}
			decisions = append(decisions, d)
		}
		if code.Valid {
			last := &decisions[len(decisions)-1]
			last.Explanations = append(last.Explanations, cto.Explanation{
				Code:     code.String,
				Message:  message.String,
				Severity: cto.Severity(severity.String),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}

	if len(decisions) == 0 {
		return nil, fmt.Errorf("configuration %s: %w", configurationID, cto.ErrAuditNotAvailable)
	}

	return assembleAudit(configurationID, decisions), nil
}

// HasExistingDecisions reports whether any decision exists.
func (s *PostgresStore) HasExistingDecisions(configurationID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM decisions WHERE configuration_id = $1)
	`, configurationID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check decisions: %w", err)
	}
	return exists, nil
}
