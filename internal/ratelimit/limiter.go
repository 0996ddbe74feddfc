// Package ratelimit guards the public write and search endpoints. Two
// implementations share one interface: an in-memory fixed window for
// single-process deployments and a redis-backed sliding window when several
// instances share state.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// FailMode decides what happens when the limiter backend is unreachable.
type FailMode string

const (
	// FailOpen lets the request through when the backend is down. Used for
	// read paths where availability beats strictness.
	FailOpen FailMode = "open"
	// FailClosed denies the request when the backend is down. Used for
	// abuse-sensitive write paths.
	FailClosed FailMode = "closed"
)

// Config describes one protected route. Limits are always per route, never
// global.
type Config struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
	FailMode    FailMode
}

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = 60
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		c.KeyPrefix = "rl"
	}
	if c.FailMode != FailClosed {
		c.FailMode = FailOpen
	}
	return c
}

// Result is the outcome of one limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter is the surface handlers depend on. Check consumes one slot when
// allowed; backend failures never surface as errors, they resolve through the
// route's FailMode.
type Limiter interface {
	Check(ctx context.Context, identifier string) Result
	Allow(ctx context.Context, identifier string) bool
	Reset(ctx context.Context, identifier string) error
}

// CompositeIdentifier joins the client address with a truncated digest of a
// secondary signal (typically the user agent). The raw signal never reaches
// the limiter keys.
func CompositeIdentifier(addr, secondary string) string {
	addr = strings.TrimSpace(addr)
	if strings.TrimSpace(secondary) == "" {
		return addr
	}
	sum := sha256.Sum256([]byte(secondary))
	return addr + ":" + hex.EncodeToString(sum[:8])
}
