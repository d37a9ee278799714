package config

import (
	"os"
	"testing"
)

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 0},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_DefaultLimitAboveMax(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Search:   SearchConfig{DefaultLimit: 100, MaxLimit: 10},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default_limit exceeds max_limit")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Embedding.Model != "all-MiniLM-L6-v2" {
		t.Errorf("expected default embedding model, got %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected Dimensions=384, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.TimeoutSec != 30 {
		t.Errorf("expected TimeoutSec=30, got %d", cfg.Embedding.TimeoutSec)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("expected DefaultLimit=10, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Storage.KeyPrefix != "flux:" {
		t.Errorf("expected KeyPrefix=flux:, got %q", cfg.Storage.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FLUX_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("api_key: ${FLUX_TEST_KEY}")))
	if got != "api_key: secret" {
		t.Errorf("expandEnvVars = %q", got)
	}

	os.Unsetenv("FLUX_TEST_MISSING")
	got = string(expandEnvVars([]byte("addr: ${FLUX_TEST_MISSING:-localhost:6379}")))
	if got != "addr: localhost:6379" {
		t.Errorf("expandEnvVars with default = %q", got)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}

	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
