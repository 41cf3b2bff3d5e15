// Package config loads cmd/playerctld's YAML configuration file, with
// an optional .env overlay for values that shouldn't live in plaintext
// YAML (e.g. a bus auth token).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/soundboard/playerctld/pkg/permissions"
)

// SourceConfig names one audio source and the permission vector it
// starts with. "default" (or empty) and "none" select
// permissions.Default() and permissions.None(); "custom" selects the
// explicit Custom block; any other value is rejected as an unknown
// preset.
type SourceConfig struct {
	Name        string         `yaml:"name"`
	Permissions string         `yaml:"permissions,omitempty"`
	Custom      *PermissionSet `yaml:"custom,omitempty"`
}

// PermissionSet mirrors permissions.Set for YAML decoding.
type PermissionSet struct {
	CanPlay               bool `yaml:"canPlay"`
	CanSkipForward        bool `yaml:"canSkipForward"`
	CanSkipBackward       bool `yaml:"canSkipBackward"`
	CanPrefetchForGapless bool `yaml:"canPrefetchForGapless"`
	CanSkipOnError        bool `yaml:"canSkipOnError"`
	RetryIfStreamBroken   bool `yaml:"retryIfStreamBroken"`
	MaxPrefetch           int  `yaml:"maxPrefetch"`
}

func (p PermissionSet) toSet() permissions.Set {
	return permissions.Set{
		CanPlay:               p.CanPlay,
		CanSkipForward:        p.CanSkipForward,
		CanSkipBackward:       p.CanSkipBackward,
		CanPrefetchForGapless: p.CanPrefetchForGapless,
		CanSkipOnError:        p.CanSkipOnError,
		RetryIfStreamBroken:   p.RetryIfStreamBroken,
		MaxPrefetch:           p.MaxPrefetch,
	}
}

// Resolve returns the permissions.Set this source config selects.
func (s SourceConfig) Resolve() (permissions.Set, error) {
	switch s.Permissions {
	case "", "default":
		return permissions.Default(), nil
	case "none":
		return permissions.None(), nil
	case "custom":
		if s.Custom == nil {
			return permissions.Set{}, fmt.Errorf("audio source %q: permissions: custom requires a custom: block", s.Name)
		}
		return s.Custom.toSet(), nil
	default:
		return permissions.Set{}, fmt.Errorf("audio source %q: unknown permissions preset %q", s.Name, s.Permissions)
	}
}

// Config is the full cmd/playerctld configuration, decoded from YAML
// and then overlaid with environment variables.
type Config struct {
	LogLevel    string         `yaml:"logLevel"`
	ListenAddr  string         `yaml:"listenAddr"`
	MetricsAddr string         `yaml:"metricsAddr"`
	BusToken    string         `yaml:"busToken,omitempty"`
	Sources     []SourceConfig `yaml:"sources"`
}

// Env var names consulted after the YAML file is parsed; these take
// precedence, matching the .env-overlay-then-ENV precedence a secret
// like a bus token needs.
const (
	envLogLevel    = "PLAYERCTLD_LOG_LEVEL"
	envListenAddr  = "PLAYERCTLD_LISTEN_ADDR"
	envMetricsAddr = "PLAYERCTLD_METRICS_ADDR"
	envBusToken    = "PLAYERCTLD_BUS_TOKEN"
)

func defaults() Config {
	return Config{
		LogLevel:    "info",
		ListenAddr:  ":7070",
		MetricsAddr: ":9090",
		Sources: []SourceConfig{
			{Name: "default", Permissions: "default"},
		},
	}
}

// Load reads a YAML config file at path, overlays a .env file at
// envPath if present (godotenv.Load is a no-op error we tolerate when
// the file is simply absent), then applies ENV var overrides. An empty
// path skips the YAML step and returns defaults with ENV applied.
func Load(path, envPath string) (Config, error) {
	cfg := defaults()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("load .env overlay: %w", err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		var fileCfg Config
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	applyEnv(&cfg)

	if len(cfg.Sources) == 0 {
		return cfg, fmt.Errorf("config: at least one audio source is required")
	}
	seen := make(map[string]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if s.Name == "" {
			return cfg, fmt.Errorf("config: audio source with empty name")
		}
		if seen[s.Name] {
			return cfg, fmt.Errorf("config: duplicate audio source %q", s.Name)
		}
		seen[s.Name] = true
		if _, err := s.Resolve(); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func mergeFile(dst *Config, src Config) {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.MetricsAddr != "" {
		dst.MetricsAddr = src.MetricsAddr
	}
	if src.BusToken != "" {
		dst.BusToken = src.BusToken
	}
	if len(src.Sources) > 0 {
		dst.Sources = src.Sources
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envMetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv(envBusToken); v != "" {
		cfg.BusToken = v
	}
}
