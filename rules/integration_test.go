//go:build integration
// +build integration

package rules_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/refurbd/ctoengine/cto"
	"github.com/refurbd/ctoengine/rules"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container with the schema applied
// and returns a connection.
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

func integrationLogic(value string) rules.Logic {
	return rules.Logic{
		Conditions: []rules.Condition{
			{Field: "component.reference", Operator: rules.OpNotEquals, Value: value},
		},
		Action: rules.ActionBlock,
	}
}

func TestPostgresVersionStore_AppendAndRead(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresVersionStore(db)

	v1, err := store.CreateVersion("R1", "block old", "first draft", integrationLogic("OLD"))
	if err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}
	if v1.Version != 1 {
		t.Errorf("Expected version 1, got %d", v1.Version)
	}

	v2, err := store.CreateVersion("R1", "block new", "", integrationLogic("NEW"))
	if err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}
	if v2.Version != 2 {
		t.Errorf("Expected version 2, got %d", v2.Version)
	}

	history, err := store.History("R1")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 2 || history[0].Version != 2 || history[1].Version != 1 {
		t.Errorf("Expected history [v2, v1], got %+v", history)
	}

	latest, err := store.Latest("R1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.Logic.Conditions[0].Value != "NEW" {
		t.Errorf("Expected latest logic NEW, got %q", latest.Logic.Conditions[0].Value)
	}

	got, err := store.Get(v1.ID)
	if err != nil {
		t.Fatalf("Failed to get v1 by ID: %v", err)
	}
	if got.Logic.Conditions[0].Value != "OLD" {
		t.Errorf("Expected v1 logic unchanged, got %q", got.Logic.Conditions[0].Value)
	}
}

func TestPostgresVersionStore_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresVersionStore(db)

	if _, err := store.Latest("absent"); !errors.Is(err, cto.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound, got %v", err)
	}
}

func TestPostgresVersionStore_ConcurrentAppends(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresVersionStore(db)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.CreateVersion("R1", "concurrent", "", integrationLogic("X")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent CreateVersion failed: %v", err)
	}

	history, err := store.History("R1")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != writers {
		t.Fatalf("Expected %d versions, got %d", writers, len(history))
	}
	seen := make(map[int]bool)
	for _, rv := range history {
		if seen[rv.Version] {
			t.Errorf("Version %d assigned twice", rv.Version)
		}
		seen[rv.Version] = true
	}
}

func TestPostgresVersionStore_AllLatest(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresVersionStore(db)

	if _, err := store.CreateVersion("R1", "a", "", integrationLogic("A")); err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}
	if _, err := store.CreateVersion("R1", "b", "", integrationLogic("B")); err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}
	if _, err := store.CreateVersion("R2", "c", "", integrationLogic("C")); err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}

	latest, err := store.AllLatest()
	if err != nil {
		t.Fatalf("Failed to get all latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(latest))
	}
	for _, rv := range latest {
		if rv.RuleID == "R1" && rv.Version != 2 {
			t.Errorf("Expected R1 at version 2, got %d", rv.Version)
		}
	}
}
