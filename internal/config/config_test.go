package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/stampindexer
bitcoin_rpc_url: http://127.0.0.1:8332
upstream_metadata_url: http://127.0.0.1:4000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want default 10s", cfg.PollInterval)
	}
	if cfg.UpstreamRatePerSec != 20 {
		t.Errorf("UpstreamRatePerSec = %v, want default 20", cfg.UpstreamRatePerSec)
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestLoadMissingRequiredFieldIsConfigError(t *testing.T) {
	path := writeConfig(t, `data_dir: /var/lib/stampindexer`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing bitcoin_rpc_url/upstream_metadata_url")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestLoadInvalidYAMLIsConfigError(t *testing.T) {
	path := writeConfig(t, "not: valid: yaml: at: all:")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/stampindexer
bitcoin_rpc_url: http://127.0.0.1:8332
upstream_metadata_url: http://127.0.0.1:4000
poll_interval: 30s
strict_validation: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if !cfg.StrictValidation {
		t.Error("StrictValidation = false, want true")
	}
}
