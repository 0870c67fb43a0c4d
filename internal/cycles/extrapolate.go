package cycles

import (
	"fmt"
	"math/bits"

	"github.com/banshee-data/rockfall/internal/monitoring"
	"github.com/banshee-data/rockfall/internal/shaft"
	"github.com/banshee-data/rockfall/internal/surface"
)

var extrapolatorLogf = monitoring.Component("Extrapolator")

// Result describes how a height was reached.
type Result struct {
	Drops  uint64
	Height uint64

	// Loop is the detected recurrence, nil if none was needed or found.
	Loop *LoopInfo

	PrefixCycles    uint64 // cycles stepped before the loop was applied
	PeriodsApplied  uint64 // whole periods added arithmetically
	RemainderCycles uint64 // cycles stepped after the loop was applied
	TailPieces      int    // pieces simulated after the last whole cycle

	SimulatedCycles int // cache misses
	CacheHits       int
	Records         []RunRecord // first-seen order
}

// Extrapolator answers height queries for one validated parameter set.
// Each call builds its own grid, cursor and cache, so calls are independent.
type Extrapolator struct {
	params Params
}

// NewExtrapolator validates p eagerly; no simulation runs on invalid input.
func NewExtrapolator(p Params) (*Extrapolator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Extrapolator{params: p}, nil
}

// Params returns the parameters the extrapolator was built with.
func (e *Extrapolator) Params() Params { return e.params }

// HeightAfter returns the stack height after total drops.
func (e *Extrapolator) HeightAfter(total uint64) (uint64, error) {
	res, err := e.Run(total)
	if err != nil {
		return 0, err
	}
	return res.Height, nil
}

// Run walks the cycle chain: whole cycles through the cache until a loop is
// found, whole periods of that loop in one step, whole cycles again for the
// remainder, and finally fewer than a cycle's worth of pieces directly.
func (e *Extrapolator) Run(total uint64) (*Result, error) {
	p := e.params
	cycleLen := uint64(len(p.Repertoire))

	rowsHint := p.SurfaceCap + len(p.Repertoire)*(p.Repertoire.MaxHeight()+p.Spawn.Gap)
	grid, err := shaft.NewGrid(p.Width, rowsHint)
	if err != nil {
		return nil, err
	}
	cache := NewRunCache(p, grid)
	cur := &Cursor{}
	fp, err := surface.Capture(grid, cur.DriverPhase, p.SurfaceCap)
	if err != nil {
		return nil, err
	}

	res := &Result{Drops: total}
	remaining := total
	applied := false
	for remaining >= cycleLen {
		rec, err := cache.RunCycle(cur, fp)
		if err != nil {
			return nil, err
		}

		if rec.Loop != nil && !applied {
			applied = true
			loop := *rec.Loop
			res.Loop = &loop

			periods := (remaining / cycleLen) / loop.Period
			gain, err := mulAdd(periods, loop.Gain, cur.Height)
			if err != nil {
				return nil, fmt.Errorf("after %d drops: %w", total, err)
			}
			skipped := periods * loop.Period
			cur.Height = gain
			cur.Cycle += skipped
			cur.Dropped += skipped * cycleLen
			remaining -= skipped * cycleLen
			res.PeriodsApplied = periods
			extrapolatorLogf("applied %d periods of %d cycles (+%d rows) at cycle %d, %d drops left",
				periods, loop.Period, periods*loop.Gain, cur.Cycle-skipped, remaining)
			// Whole periods return to the same fingerprint.
			continue
		}

		height, carry := bits.Add64(cur.Height, rec.HeightDelta, 0)
		if carry != 0 {
			return nil, fmt.Errorf("after %d drops: %w", total, errHeightOverflow)
		}
		cur.Height = height
		cur.Dropped += cycleLen
		cur.Cycle++
		cur.DriverPhase = rec.EndDriverPhase
		cur.PiecePhase = 0
		remaining -= cycleLen
		fp = rec.End
		if applied {
			res.RemainderCycles++
		} else {
			res.PrefixCycles++
		}
	}

	if remaining > 0 {
		if err := e.tail(grid, cur, fp, int(remaining)); err != nil {
			return nil, err
		}
		res.TailPieces = int(remaining)
	}

	res.Height = cur.Height
	res.SimulatedCycles, res.CacheHits = cache.Stats()
	res.Records = cache.Records()
	return res, nil
}

// tail drops n < len(repertoire) pieces directly from fp.
func (e *Extrapolator) tail(grid *shaft.Grid, cur *Cursor, fp surface.Fingerprint, n int) error {
	p := e.params
	if err := surface.Restore(grid, fp); err != nil {
		return err
	}
	before := grid.Height()
	phase := fp.DriverPhase
	for i := 0; i < n; i++ {
		cur.PiecePhase = i
		var err error
		phase, _, err = shaft.Drop(grid, p.Repertoire.At(i), p.Spawn, p.Impulses, phase)
		if err != nil {
			return err
		}
	}
	height, carry := bits.Add64(cur.Height, uint64(grid.Height()-before), 0)
	if carry != 0 {
		return errHeightOverflow
	}
	cur.Height = height
	cur.DriverPhase = phase
	cur.PiecePhase = n % len(p.Repertoire)
	cur.Dropped += uint64(n)
	return nil
}

var errHeightOverflow = fmt.Errorf("stack height overflows uint64: %w", shaft.ErrInvalidInput)

// mulAdd returns a*b+c, failing on uint64 overflow.
func mulAdd(a, b, c uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errHeightOverflow
	}
	sum, carry := bits.Add64(lo, c, 0)
	if carry != 0 {
		return 0, errHeightOverflow
	}
	return sum, nil
}
