// Package config loads the indexer's non-consensus operational settings
// from a YAML file, grounded on orbas1-Synnergy's cmd/cli/devnet.go
// testnetStart (os.ReadFile + yaml.Unmarshal into a plain struct). The
// fixed activation-height table is never loaded from here — per spec.md
// §4.1/§9 it is Go source, not configuration, because it is
// consensus-critical and must not silently drift between deployments.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every operational setting the indexer needs at startup.
type Config struct {
	DataDir string `yaml:"data_dir"`

	BitcoinRPCURL      string `yaml:"bitcoin_rpc_url"`
	BitcoinRPCUser     string `yaml:"bitcoin_rpc_user"`
	BitcoinRPCPassword string `yaml:"bitcoin_rpc_password"`

	UpstreamMetadataURL string  `yaml:"upstream_metadata_url"`
	UpstreamRatePerSec  float64 `yaml:"upstream_rate_per_sec"`
	UpstreamBurst       int     `yaml:"upstream_burst"`

	OracleURL        string `yaml:"oracle_url"`
	StrictValidation bool   `yaml:"strict_validation"`

	PollInterval time.Duration `yaml:"poll_interval"`

	MetricsListenAddr string `yaml:"metrics_listen_addr"`

	ArtifactDir      string `yaml:"artifact_dir"`
	ArtifactBaseURL  string `yaml:"artifact_base_url"`
	MaxInFlightFetch int    `yaml:"max_in_flight_fetch"`
}

// ConfigError is returned for any malformed or incomplete configuration;
// fatal at startup (spec.md §7).
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Path, e.Reason)
}

// defaults mirrors what an operator would otherwise have to spell out for
// every deployment; only the fields with a sane indexer-wide default are
// listed here, everything else must come from the file.
func defaults() Config {
	return Config{
		PollInterval:       10 * time.Second,
		UpstreamRatePerSec: 20,
		UpstreamBurst:      10,
		MetricsListenAddr:  ":9190",
		MaxInFlightFetch:   4,
	}
}

// Load reads and validates the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: err.Error()}
	}

	cfg := defaults()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}

	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Path: path, Reason: err.Error()}
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.BitcoinRPCURL == "" {
		return fmt.Errorf("bitcoin_rpc_url is required")
	}
	if c.UpstreamMetadataURL == "" {
		return fmt.Errorf("upstream_metadata_url is required")
	}
	if c.UpstreamRatePerSec <= 0 {
		return fmt.Errorf("upstream_rate_per_sec must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}
