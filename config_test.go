package goGuard

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Lockout.Threshold != 3 || cfg.Password.MinLength != 14 || cfg.Authorization.RolePrefix != "ROLE_" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Roles) != 6 {
		t.Fatalf("expected six default roles, got %v", cfg.Roles)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"cost too low", func(c *Config) { c.Password.BcryptCost = 1 }, "BcryptCost"},
		{"short min length", func(c *Config) { c.Password.MinLength = 4 }, "MinLength"},
		{"no specials", func(c *Config) { c.Password.Specials = "" }, "Specials"},
		{"zero expiry", func(c *Config) { c.Password.Expiry = 0 }, "Expiry"},
		{"negative history", func(c *Config) { c.Password.HistoryLimit = -1 }, "HistoryLimit"},
		{"zero threshold", func(c *Config) { c.Lockout.Threshold = 0 }, "Threshold"},
		{"blank key id", func(c *Config) { c.Token.KeyID = " " }, "KeyID"},
		{"large leeway", func(c *Config) { c.Token.Leeway = 5 * time.Minute }, "Leeway"},
		{"no roles", func(c *Config) { c.Roles = nil }, "Roles"},
		{"duplicate role", func(c *Config) { c.Roles = []Role{RoleAdmin, RoleAdmin} }, "duplicate"},
		{"audit buffer", func(c *Config) { c.Audit.BufferSize = 0 }, "BufferSize"},
		{"metrics namespace", func(c *Config) { c.Metrics.Namespace = "" }, "Namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.substr, err)
			}
		})
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().WithSigningKey(signingKey(t)).Build(); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New().WithStore(newFakeStore()).Build(); err == nil {
		t.Fatal("expected error without signing key")
	}

	b := New().WithStore(newFakeStore()).WithSigningKey(signingKey(t))
	cfg := DefaultConfig()
	cfg.Password.BcryptCost = 4
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder must be single use")
	}
}

func TestWithConfigCopiesRoles(t *testing.T) {
	cfg := DefaultConfig()
	b := New().WithConfig(cfg)
	cfg.Roles[0] = "MUTATED"
	if b.config.Roles[0] != RoleAdmin {
		t.Fatal("builder must not alias caller's role slice")
	}
}
