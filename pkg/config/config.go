// Package config loads the single per-host configuration record the
// coordinator needs at startup: the shared filesystem root plus this
// host's identity. This is a one-shot YAML parse, not a cache with an
// implicit timer — the short-TTL cache semantics belong to pkg/profile,
// scoped to per-client profile blobs, with an injectable clock.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default heartbeat/stale-threshold constants. A lock is considered
// stale after 120s without a heartbeat refresh; holders heartbeat every
// 60s, giving two full refresh cycles of slack before eviction.
const (
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultStaleThreshold    = 120 * time.Second
)

// Config is the typed record loaded once at process startup.
type Config struct {
	ShareRoot  string `yaml:"share_root"`
	HostName   string `yaml:"host_name,omitempty"`
	WorkerID   string `yaml:"worker_id"`
	WorkerName string `yaml:"worker_name"`
	AppVersion string `yaml:"app_version,omitempty"`

	// CacheDir holds the host-local (never shared-mount) directory for the
	// discovery scan cache. Defaults to a subdirectory under the user's
	// cache home when unset.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// Raw duration strings as they appear in YAML ("60s", "2m"); resolved
	// into HeartbeatInterval/StaleThreshold by applyDefaults.
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval,omitempty"`
	StaleThresholdRaw    string `yaml:"stale_threshold,omitempty"`

	HeartbeatInterval time.Duration `yaml:"-"`
	StaleThreshold    time.Duration `yaml:"-"`
}

// Load parses the YAML config file at path and fills in defaults for any
// field the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.ShareRoot == "" {
		return nil, fmt.Errorf("config %s: share_root is required", path)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.HostName == "" {
		if h, err := os.Hostname(); err == nil {
			c.HostName = h
		}
	}
	if c.AppVersion == "" {
		c.AppVersion = "dev"
	}
	if c.CacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		c.CacheDir = dir + string(os.PathSeparator) + "packctl"
	}

	c.HeartbeatInterval = DefaultHeartbeatInterval
	if c.HeartbeatIntervalRaw != "" {
		d, err := time.ParseDuration(c.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("heartbeat_interval: %w", err)
		}
		c.HeartbeatInterval = d
	}

	c.StaleThreshold = DefaultStaleThreshold
	if c.StaleThresholdRaw != "" {
		d, err := time.ParseDuration(c.StaleThresholdRaw)
		if err != nil {
			return fmt.Errorf("stale_threshold: %w", err)
		}
		c.StaleThreshold = d
	}
	return nil
}
