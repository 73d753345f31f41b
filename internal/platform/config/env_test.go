package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	DBPath string `env:"OKR_TEST_DB_PATH" envDefault:"data/okr.db"`
	Limit  int    `env:"OKR_TEST_LIMIT" envDefault:"5"`
}

type prefixedTestConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "data/okr.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "data/okr.db")
	}
	if cfg.Limit != 5 {
		t.Fatalf("limit = %d, want 5", cfg.Limit)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("OKR_TEST_LIMIT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvWithPrefixReadsPrefixedNames(t *testing.T) {
	t.Setenv("OKRTEST_DB_DRIVER", "postgres")

	var cfg prefixedTestConfig
	if err := ParseEnvWithPrefix(&cfg, "OKRTEST"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Driver != "postgres" {
		t.Fatalf("driver = %q, want %q", cfg.Driver, "postgres")
	}
}

func TestParseEnvWithPrefixEmptyFallsBack(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")

	var cfg prefixedTestConfig
	if err := ParseEnvWithPrefix(&cfg, "  "); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Driver != "memory" {
		t.Fatalf("driver = %q, want %q", cfg.Driver, "memory")
	}
}
