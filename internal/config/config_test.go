package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected default driver sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Ollama.Model != "llama3.2" || cfg.Ollama.Seed != 42 {
		t.Errorf("unexpected ollama defaults %+v", cfg.Ollama)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Hours != 48 {
		t.Errorf("unexpected retention defaults %+v", cfg.Retention)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Server.Port = 9191
	cfg.Jira.ProjectKey = "SEC"
	cfg.Retention.Hours = 24

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	if loaded.Server.Port != 9191 {
		t.Errorf("expected port 9191, got %d", loaded.Server.Port)
	}
	if loaded.Jira.ProjectKey != "SEC" {
		t.Errorf("expected project key SEC, got %q", loaded.Jira.ProjectKey)
	}
	if loaded.Retention.Hours != 24 {
		t.Errorf("expected retention hours 24, got %d", loaded.Retention.Hours)
	}
}

func TestSaveCreatesConfigDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("reloading: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	p, err := ConfigPath("/tmp/custom.json")
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if p != "/tmp/custom.json" {
		t.Errorf("expected override path, got %q", p)
	}

	p, err = ConfigPath("")
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if !strings.HasSuffix(p, filepath.Join(DefaultConfigDir, DefaultConfigFile)) {
		t.Errorf("unexpected default path %q", p)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	cfg := base(t)
	cfg.Retention.Hours = 0
	if err := validate(cfg); err == nil {
		t.Errorf("expected error for retention.hours 0")
	}

	cfg = base(t)
	cfg.Ollama.BaseURL = "ftp://nope"
	if err := validate(cfg); err == nil {
		t.Errorf("expected error for non-http ollama.base_url")
	}

	cfg = base(t)
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = "  "
	if err := validate(cfg); err == nil {
		t.Errorf("expected error for blank jwt secret with auth enabled")
	}
}
