// Package globaltime is the process-wide clock. Production code reads time
// through it so tests can freeze the clock without threading a time source
// through every constructor.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

// Now returns the current time from the active clock.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

// UTC returns Now normalized to UTC. Persisted timestamps use this.
func UTC() time.Time {
	return Now().UTC()
}

// Since reports the elapsed time against the active clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// SetMockTime freezes the clock at t until ResetTime. Test helper; callers
// must pair it with a deferred ResetTime.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

// ResetTime restores the wall clock.
func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
