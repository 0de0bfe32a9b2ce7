//go:build integration
// +build integration

package configurator_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/refurbd/ctoengine/audit"
	"github.com/refurbd/ctoengine/configurator"
	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/pricing"

	_ "github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "ctoengine_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=ctoengine_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}
	return db, cleanup
}

func TestPostgresConfigurationStore_SnapshotWrittenOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := configurator.NewPostgresConfigurationStore(db)

	cfg := &configurator.Configuration{
		ID:           uuid.New().String(),
		AssetID:      "asset-1",
		ProductModel: "R740",
		Components: []cto.Component{
			{Type: cto.ComponentCPU, Reference: "XEON", Quantity: 2},
		},
	}
	if err := store.SaveConfiguration(cfg); err != nil {
		t.Fatalf("Failed to save configuration: %v", err)
	}

	snap, err := store.Snapshot(cfg.ID)
	if err != nil {
		t.Fatalf("Failed to query snapshot: %v", err)
	}
	if snap != nil {
		t.Fatal("Expected no snapshot before freeze")
	}

	first := &pricing.PriceSnapshot{
		Subtotal:  decimal.RequireFromString("1000"),
		LaborCost: decimal.RequireFromString("50"),
		Margin:    decimal.RequireFromString("189.00"),
		Total:     decimal.RequireFromString("1239.00"),
		Currency:  "EUR",
		FrozenAt:  time.Now().UTC(),
	}
	if err := store.SaveSnapshot(cfg.ID, first); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	second := &pricing.PriceSnapshot{
		Subtotal: decimal.RequireFromString("9999"),
		Currency: "EUR",
	}
	if err := store.SaveSnapshot(cfg.ID, second); err == nil {
		t.Error("Expected second snapshot write to fail")
	}

	stored, err := store.Snapshot(cfg.ID)
	if err != nil {
		t.Fatalf("Failed to read snapshot: %v", err)
	}
	if stored == nil || !stored.Total.Equal(first.Total) {
		t.Errorf("Expected frozen total %s preserved, got %+v", first.Total, stored)
	}
}

func TestPostgresAuditStore_Trail(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := audit.NewPostgresStore(db)
	configID := uuid.New().String()

	if _, err := store.GetAudit(configID); !errors.Is(err, cto.ErrAuditNotAvailable) {
		t.Errorf("Expected ErrAuditNotAvailable for fresh configuration, got %v", err)
	}

	if _, err := store.RecordDecision(configID, "", audit.ResultAccept, nil); err != nil {
		t.Fatalf("Failed to record ACCEPT: %v", err)
	}
	if _, err := store.RecordDecision(configID, "", audit.ResultReject, []cto.Explanation{
		{Code: "RULE_VIOLATION", Message: "blocked", Severity: cto.SeverityError},
	}); err != nil {
		t.Fatalf("Failed to record REJECT: %v", err)
	}

	trail, err := store.GetAudit(configID)
	if err != nil {
		t.Fatalf("Failed to get audit: %v", err)
	}
	if trail.OverallResult != audit.ResultReject {
		t.Errorf("Expected overall REJECT, got %s", trail.OverallResult)
	}
	if len(trail.Decisions) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(trail.Decisions))
	}
	if len(trail.Decisions[1].Explanations) != 1 {
		t.Errorf("Expected 1 explanation on the REJECT decision, got %+v", trail.Decisions[1].Explanations)
	}

	has, err := store.HasExistingDecisions(configID)
	if err != nil {
		t.Fatalf("HasExistingDecisions failed: %v", err)
	}
	if !has {
		t.Error("Expected decisions to exist")
	}
}

// TestPostgresAuditStore_ExplanationOrder verifies a decision's
// explanations come back in the order they were recorded. Explanation
// IDs are random UUIDs, so ordering has to come from the ordinal.
func TestPostgresAuditStore_ExplanationOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := audit.NewPostgresStore(db)
	configID := uuid.New().String()

	want := []string{"first", "second", "third", "fourth", "fifth"}
	explanations := make([]cto.Explanation, 0, len(want))
	for _, msg := range want {
		explanations = append(explanations, cto.Explanation{
			Code:     "RULE_VIOLATION",
			Message:  msg,
			Severity: cto.SeverityError,
		})
	}
	if _, err := store.RecordDecision(configID, "", audit.ResultReject, explanations); err != nil {
		t.Fatalf("Failed to record decision: %v", err)
	}

	trail, err := store.GetAudit(configID)
	if err != nil {
		t.Fatalf("Failed to get audit: %v", err)
	}
	if len(trail.Decisions) != 1 {
		t.Fatalf("Expected 1 decision, got %d", len(trail.Decisions))
	}
	got := trail.Decisions[0].Explanations
	if len(got) != len(want) {
		t.Fatalf("Expected %d explanations, got %d", len(want), len(got))
	}
	for i, msg := range want {
		if got[i].Message != msg {
			t.Errorf("Explanation %d: expected %q, got %q", i, msg, got[i].Message)
		}
	}
}
