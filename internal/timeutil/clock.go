// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a manually driven Clock for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Lap is one named interval recorded by a Stopwatch.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch records consecutive named intervals against a Clock.
type Stopwatch struct {
	clock Clock
	start time.Time
	last  time.Time
	laps  []Lap
}

// NewStopwatch starts a stopwatch at clock.Now().
func NewStopwatch(clock Clock) *Stopwatch {
	now := clock.Now()
	return &Stopwatch{clock: clock, start: now, last: now}
}

// Lap closes the current interval under name and returns its length.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := s.clock.Now()
	d := now.Sub(s.last)
	s.last = now
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns the recorded intervals in order.
func (s *Stopwatch) Laps() []Lap {
	out := make([]Lap, len(s.laps))
	copy(out, s.laps)
	return out
}

// Total is the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return s.clock.Since(s.start)
}
