package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File configuration validation errors.
var (
	ErrNoEnabledSources = errors.New("at least one source must be enabled")
	ErrUnknownSource    = errors.New("source name must be one of: webintel, relay, scout")
	ErrInvalidFailMode  = errors.New("fail_mode must be 'open' or 'closed'")
)

var knownSourceNames = map[string]bool{
	"webintel": true,
	"relay":    true,
	"scout":    true,
}

// FileConfig is the optional YAML file selecting which sources feed the
// refresh cycle and overriding per-route rate limits. Credentials stay in the
// environment; this file only carries fleet shape.
type FileConfig struct {
	Sources []SourceConfig         `yaml:"sources"`
	Limits  map[string]LimitConfig `yaml:"limits"`
}

// SourceConfig enables one adapter and optionally overrides what it asks for.
type SourceConfig struct {
	Name     string   `yaml:"name"`
	Enabled  bool     `yaml:"enabled"`
	Queries  []string `yaml:"queries"`
	Channels []string `yaml:"channels"`
}

// LimitConfig overrides one route's rate limit.
type LimitConfig struct {
	MaxRequests   int    `yaml:"max_requests"`
	WindowSeconds int    `yaml:"window_seconds"`
	FailMode      string `yaml:"fail_mode"`
}

func (l LimitConfig) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
}

// LoadFile reads and validates the YAML sources file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sources file validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *FileConfig) Validate() error {
	enabled := 0
	for i, src := range c.Sources {
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if !knownSourceNames[name] {
			return fmt.Errorf("%w: sources[%d] is %q", ErrUnknownSource, i, src.Name)
		}
		if src.Enabled {
			enabled++
		}
	}
	if len(c.Sources) > 0 && enabled == 0 {
		return ErrNoEnabledSources
	}

	for route, limit := range c.Limits {
		if limit.MaxRequests < 1 {
			return fmt.Errorf("limits.%s: max_requests must be >= 1", route)
		}
		if limit.WindowSeconds < 1 {
			return fmt.Errorf("limits.%s: window_seconds must be >= 1", route)
		}
		switch strings.ToLower(strings.TrimSpace(limit.FailMode)) {
		case "", "open", "closed":
		default:
			return fmt.Errorf("%w: limits.%s is %q", ErrInvalidFailMode, route, limit.FailMode)
		}
	}
	return nil
}

// Source returns the entry for name, matched case-insensitively.
func (c *FileConfig) Source(name string) (SourceConfig, bool) {
	if c == nil {
		return SourceConfig{}, false
	}
	for _, src := range c.Sources {
		if strings.EqualFold(strings.TrimSpace(src.Name), name) {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// SourceEnabled reports whether the adapter should run. With no file at all
// every configured adapter runs; with a file, only the enabled entries do.
func (c *FileConfig) SourceEnabled(name string) bool {
	if c == nil || len(c.Sources) == 0 {
		return true
	}
	src, ok := c.Source(name)
	return ok && src.Enabled
}
