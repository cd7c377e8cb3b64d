package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/dhos_test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if cfg.MigrationBatchSize != 100 {
		t.Errorf("expected default batch size 100, got %d", cfg.MigrationBatchSize)
	}
	if !cfg.IsDev() {
		t.Error("expected default env to be development")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestValidate_UsersAPIRequiresSecret(t *testing.T) {
	cfg := &Config{MigrationBatchSize: 100, UsersAPIHost: "http://users-api"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when USERS_API_HOST set without MIGRATION_JWT_SECRET")
	}
	cfg.MigrationJWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateLegacy_RequiresNeo4jURL(t *testing.T) {
	cfg := &Config{MigrationBatchSize: 100}
	if err := cfg.ValidateLegacy(); err == nil {
		t.Error("expected error when NEO4J_URL is missing")
	}
	cfg.Neo4jURL = "bolt://localhost:7687"
	if err := cfg.ValidateLegacy(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
