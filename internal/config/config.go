// Package config loads daemon configuration from an optional yaml file
// with environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	RPCEndpoint     string        `env:"VEILPOLL_RPC_ENDPOINT"`
	ProverEndpoint  string        `env:"VEILPOLL_PROVER_ENDPOINT"`
	SponsorEndpoint string        `env:"VEILPOLL_SPONSOR_ENDPOINT"`
	DataDir         string        `env:"VEILPOLL_DATA_DIR"`
	PollInterval    time.Duration `env:"VEILPOLL_POLL_INTERVAL"`
	MetricsAddr     string        `env:"VEILPOLL_METRICS_ADDR"`
}

// fileConfig is the yaml shape; durations are strings like "5m".
type fileConfig struct {
	RPCEndpoint     string `yaml:"rpcEndpoint"`
	ProverEndpoint  string `yaml:"proverEndpoint"`
	SponsorEndpoint string `yaml:"sponsorEndpoint"`
	DataDir         string `yaml:"dataDir"`
	PollInterval    string `yaml:"pollInterval"`
	MetricsAddr     string `yaml:"metricsAddr"`
}

func Default() Config {
	return Config{
		RPCEndpoint:    "https://rpc.veilpoll.example",
		ProverEndpoint: "https://prover.veilpoll.example/v1/prove",
		DataDir:        defaultDataDir(),
		PollInterval:   5 * time.Minute,
	}
}

// Load merges, in increasing precedence: defaults, the yaml file at path
// (the default file location is optional; an explicit path must exist),
// then VEILPOLL_* env vars.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = "configs/config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := merge(&cfg, parsed); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case explicit:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env overrides: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	return cfg, nil
}

func merge(dst *Config, src fileConfig) error {
	if src.RPCEndpoint != "" {
		dst.RPCEndpoint = src.RPCEndpoint
	}
	if src.ProverEndpoint != "" {
		dst.ProverEndpoint = src.ProverEndpoint
	}
	if src.SponsorEndpoint != "" {
		dst.SponsorEndpoint = src.SponsorEndpoint
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.MetricsAddr != "" {
		dst.MetricsAddr = src.MetricsAddr
	}
	if src.PollInterval != "" {
		interval, err := time.ParseDuration(src.PollInterval)
		if err != nil {
			return fmt.Errorf("pollInterval: %w", err)
		}
		dst.PollInterval = interval
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veilpoll"
	}
	return filepath.Join(home, ".veilpoll")
}
