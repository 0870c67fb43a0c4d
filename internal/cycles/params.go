// Package cycles detects periodicity in the stacking process and
// extrapolates stack heights for drop counts far too large to simulate.
//
// A cycle is one full pass through the repertoire. Cycles are simulated on
// a grid re-seeded from the starting fingerprint, so a cycle's outcome is a
// pure function of that fingerprint and can be cached and replayed.
package cycles

import (
	"fmt"

	"github.com/banshee-data/rockfall/internal/shaft"
	"github.com/banshee-data/rockfall/internal/surface"
)

// Params is the complete, validated input of one extrapolation.
type Params struct {
	Width      int
	Spawn      shaft.Spawn
	SurfaceCap int
	Repertoire shaft.Repertoire
	Impulses   shaft.Impulses

	// MaxSimulatedCycles bounds cache misses; 0 means unbounded.
	MaxSimulatedCycles int
}

// DefaultParams is the classic seven-wide shaft with the standard
// repertoire. Impulses must still be supplied.
func DefaultParams(imp shaft.Impulses) Params {
	return Params{
		Width:      7,
		Spawn:      shaft.DefaultSpawn,
		SurfaceCap: surface.DefaultCap,
		Repertoire: shaft.StandardRepertoire(),
		Impulses:   imp,
	}
}

// Validate runs every input check before any simulation happens.
func (p Params) Validate() error {
	if p.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d: %w", p.Width, shaft.ErrInvalidInput)
	}
	if err := p.Repertoire.Validate(p.Width); err != nil {
		return err
	}
	if err := p.Impulses.Validate(); err != nil {
		return err
	}
	if p.Spawn.Gap < 0 {
		return fmt.Errorf("spawn gap must be non-negative, got %d: %w", p.Spawn.Gap, shaft.ErrInvalidInput)
	}
	if p.Spawn.Column < 0 {
		return fmt.Errorf("spawn column must be non-negative, got %d: %w", p.Spawn.Column, shaft.ErrInvalidInput)
	}
	// Rows below the window are assumed unreachable; a window no taller
	// than a single piece cannot hold that assumption.
	if h := p.Repertoire.MaxHeight(); p.SurfaceCap <= h {
		return fmt.Errorf("surface cap %d must exceed the tallest piece (%d rows): %w", p.SurfaceCap, h, shaft.ErrInvalidInput)
	}
	if p.MaxSimulatedCycles < 0 {
		return fmt.Errorf("max simulated cycles must be non-negative, got %d: %w", p.MaxSimulatedCycles, shaft.ErrInvalidInput)
	}
	return nil
}
