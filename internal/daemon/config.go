// Package daemon manages the rtuned daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Node     NodeConfig     `toml:"node"`
	Admin    AdminConfig    `toml:"admin"`
	Ingress  IngressConfig  `toml:"ingress"`
	Tunables TunablesConfig `toml:"tunables"`
	Logging  LoggingConfig  `toml:"logging"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	ID string `toml:"id"`
}

// AdminConfig controls the admin/debug HTTP server.
type AdminConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	EnableMetrics  bool   `toml:"enable_metrics"`
}

// IngressConfig controls the request-ingress UNIX domain socket.
type IngressConfig struct {
	SocketPath string `toml:"socket_path"`
	Workers    int    `toml:"workers"`
}

// TunablesConfig mirrors the PropertiesConfig operations of spec.md §6
// (GET_PROP/SET_PROP), loaded once at startup and then mutable at
// runtime through the Coordinator rather than through this struct.
type TunablesConfig struct {
	MaxConcurrentRequests  int     `toml:"maximum_concurrent_requests"`
	MaxResourcesPerRequest int     `toml:"maximum_resources_per_request"`
	PulseDurationMS        int64   `toml:"pulse_duration_ms"`
	GCDurationMS           int64   `toml:"garbage_collection_duration_ms"`
	RateLimiterDeltaMS     int64   `toml:"rate_limiter_delta_ms"`
	PenaltyFactor          int     `toml:"penalty_factor"`
	RewardFactor           float64 `toml:"reward_factor"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns the daemon defaults named in SPEC_FULL.md §6.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{ID: "node-local"},
		Admin: AdminConfig{
			Host:          "127.0.0.1",
			Port:          9977,
			EnableMetrics: true,
		},
		Ingress: IngressConfig{
			SocketPath: filepath.Join(rtunedHome(), "rtuned.sock"),
			Workers:    4,
		},
		Tunables: TunablesConfig{
			MaxConcurrentRequests:  512,
			MaxResourcesPerRequest: 32,
			PulseDurationMS:        60_000,
			GCDurationMS:           83_000,
			RateLimiterDeltaMS:     5,
			PenaltyFactor:          2,
			RewardFactor:           0.4,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(rtunedHome(), "rtuned.log"),
		},
	}
}

// LoadConfig reads config from $RTUNED_HOME/config.toml, falling back
// to defaults when no file exists yet.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(rtunedHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to $RTUNED_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(rtunedHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// asDurations converts the TOML tunables' millisecond fields into the
// pulse, GC, and rate-limiter durations cc.Config takes. Kept here
// rather than in cc so the Coordinator package stays free of the TOML
// dependency.
func (t TunablesConfig) asDurations() (pulse, gc, delta time.Duration) {
	return time.Duration(t.PulseDurationMS) * time.Millisecond,
		time.Duration(t.GCDurationMS) * time.Millisecond,
		time.Duration(t.RateLimiterDeltaMS) * time.Millisecond
}

// rtunedHome returns the rtuned data directory.
func rtunedHome() string {
	if env := os.Getenv("RTUNED_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rtuned")
}

// RtunedHome is exported for use by other packages.
func RtunedHome() string {
	return rtunedHome()
}
