package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

// TestLoad_Defaults verifies the service starts with no config file.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("ASSET_API_URL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	margin, err := cfg.MarginPercent()
	if err != nil {
		t.Fatalf("MarginPercent failed: %v", err)
	}
	if !margin.Equal(decimal.RequireFromString("18")) {
		t.Errorf("Expected default margin 18, got %s", margin)
	}
	if cfg.Pricing.Currency != "EUR" {
		t.Errorf("Expected default currency EUR, got %s", cfg.Pricing.Currency)
	}
	if cfg.LeadTime.ComponentMinutes != 30 || cfg.LeadTime.QAMinutes != 45 || cfg.LeadTime.WorkingHoursPerDay != 8 {
		t.Errorf("Unexpected lead time defaults: %+v", cfg.LeadTime)
	}
}

// TestLoad_FileAndEnvOverride verifies YAML values apply and the
// environment wins over the file.
func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "9090"
databaseUrl: "postgres://file/db"
pricing:
  marginPercent: "22.5"
  currency: "USD"
leadTime:
  workingHoursPerDay: 6
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PORT", "")
	t.Setenv("ASSET_API_URL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090 from file, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://env/db" {
		t.Errorf("Expected environment to override file, got %s", cfg.DatabaseURL)
	}
	margin, _ := cfg.MarginPercent()
	if !margin.Equal(decimal.RequireFromString("22.5")) {
		t.Errorf("Expected margin 22.5 from file, got %s", margin)
	}
	if cfg.Pricing.Currency != "USD" {
		t.Errorf("Expected currency USD from file, got %s", cfg.Pricing.Currency)
	}
	if cfg.LeadTime.WorkingHoursPerDay != 6 {
		t.Errorf("Expected 6 working hours from file, got %d", cfg.LeadTime.WorkingHoursPerDay)
	}
	// Fields absent from the file keep their defaults.
	if cfg.LeadTime.ComponentMinutes != 30 {
		t.Errorf("Expected default component minutes, got %d", cfg.LeadTime.ComponentMinutes)
	}
}

// TestLoad_InvalidValues verifies bad figures are rejected at load
// time.
func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("pricing:\n  marginPercent: \"abc\"\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for non-numeric margin, got nil")
	}

	if err := os.WriteFile(path, []byte("leadTime:\n  workingHoursPerDay: 0\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for zero working hours, got nil")
	}
}
