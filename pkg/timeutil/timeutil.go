// Package timeutil provides the injected clock. All "today"/"yesterday"
// decisions in MajorPath go through a Clock; the calendar day itself is
// shared.DayOf(clock.Now()).
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock is the single source of "now" for the engine.
type Clock interface {
	// Now returns the current instant in the clock's location.
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock returns a SystemClock for the named IANA zone.
func NewSystemClock(tz string) (*SystemClock, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &SystemClock{Location: loc}, nil
}

// Now implements Clock.
func (c *SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant until moved. Safe for
// concurrent use.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock returns a clock stopped at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// LoadLocation resolves an IANA zone name, with "" and "UTC" meaning UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}
