// Package memory implements the counter store with an in-process map.
package memory

import (
	"context"
	"sync"
)

// Counter tracks (name, day) counts under a mutex. Days never observed are
// zero; old days are left to accumulate since the process is short-lived
// relative to the key space.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

// New constructs an empty Counter.
func New() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// CheckAndIncr increments the counter for (name, day) unless doing so would
// exceed limit. It reports whether the increment was applied.
func (c *Counter) CheckAndIncr(_ context.Context, name string, day string, limit int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := name + "|" + day
	if c.counts[key] >= limit {
		return false, nil
	}
	c.counts[key]++
	return true, nil
}

// Decr releases one previously granted slot for (name, day). Counts never go
// below zero.
func (c *Counter) Decr(_ context.Context, name string, day string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := name + "|" + day
	if c.counts[key] > 0 {
		c.counts[key]--
	}
	return nil
}

// Value returns the current count for (name, day), for tests.
func (c *Counter) Value(name, day string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name+"|"+day]
}
