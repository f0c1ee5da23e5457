// Package internal contains the diagnostics probe and its HTTP handlers.
package internal

import (
	"context"
	"fmt"
	"sync"
)

// HealthChecker defines the interface for health checks.
// Implementations should perform quick checks and honor context deadlines.
type HealthChecker interface {
	// Name returns the name of the health check.
	Name() string
	// Check performs the health check and returns an error if unhealthy.
	Check(ctx context.Context) error
}

// Checks is a set of health checkers safe for concurrent use.
type Checks struct {
	mu       sync.RWMutex
	checkers []HealthChecker
}

// Add registers checkers.
func (c *Checks) Add(checkers ...HealthChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkers = append(c.checkers, checkers...)
}

// Len returns the number of registered checkers.
func (c *Checks) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.checkers)
}

// Run runs the checkers in registration order and stops at the first
// failure, which is returned with the checker's name.
func (c *Checks) Run(ctx context.Context) error {
	c.mu.RLock()
	checkers := make([]HealthChecker, len(c.checkers))
	copy(checkers, c.checkers)
	c.mu.RUnlock()

	for _, checker := range checkers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := checker.Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", checker.Name(), err)
		}
	}
	return nil
}
