package cycles

import (
	"errors"
	"fmt"

	"github.com/banshee-data/rockfall/internal/monitoring"
	"github.com/banshee-data/rockfall/internal/shaft"
	"github.com/banshee-data/rockfall/internal/surface"
)

// ErrCycleBudget is returned when Params.MaxSimulatedCycles cache misses
// have been simulated and the walk still needs more.
var ErrCycleBudget = errors.New("simulated cycle budget exhausted")

var cacheLogf = monitoring.Component("RunCache")

// RunCache simulates whole repertoire cycles, memoises each cycle's outcome
// by its starting fingerprint, and flags the first fingerprint that recurs.
// It is owned by a single extrapolation and is not safe for concurrent use.
type RunCache struct {
	params  Params
	grid    *shaft.Grid
	records map[surface.Fingerprint]*RunRecord
	order   []*RunRecord
	loop    *RunRecord

	hits   int
	misses int
}

// NewRunCache returns an empty cache that simulates on g. g is reset from
// the starting fingerprint before every simulated cycle.
func NewRunCache(p Params, g *shaft.Grid) *RunCache {
	return &RunCache{
		params:  p,
		grid:    g,
		records: make(map[surface.Fingerprint]*RunRecord),
	}
}

// RunCycle returns the outcome of one cycle started from start, the
// fingerprint the cursor currently sits on. On a cache hit for a
// fingerprint first seen at an earlier cycle, the first such recurrence
// attaches LoopInfo to the recurring record. The cursor is read, never
// advanced.
func (c *RunCache) RunCycle(cur *Cursor, start surface.Fingerprint) (*RunRecord, error) {
	if rec, ok := c.records[start]; ok {
		c.hits++
		if c.loop == nil && rec.Loop == nil && cur.Cycle > rec.FirstSeenCycle {
			if cur.Height < rec.HeightAtFirstSeen {
				return nil, shaft.Invariantf("cycles.RunCycle", "height fell from %d to %d", rec.HeightAtFirstSeen, cur.Height)
			}
			rec.Loop = &LoopInfo{
				StartCycle: rec.FirstSeenCycle,
				Period:     cur.Cycle - rec.FirstSeenCycle,
				Gain:       cur.Height - rec.HeightAtFirstSeen,
			}
			c.loop = rec
			cacheLogf("loop detected at cycle %d: starts at cycle %d, period %d cycles, gain %d rows, fingerprint %016x",
				cur.Cycle, rec.Loop.StartCycle, rec.Loop.Period, rec.Loop.Gain, start.Sum64())
		}
		return rec, nil
	}

	if limit := c.params.MaxSimulatedCycles; limit > 0 && c.misses >= limit {
		return nil, fmt.Errorf("after %d cycles without reaching the target: %w", c.misses, ErrCycleBudget)
	}
	c.misses++

	rec, err := c.simulate(cur, start)
	if err != nil {
		return nil, err
	}
	c.records[start] = rec
	c.order = append(c.order, rec)
	return rec, nil
}

// simulate drops the whole repertoire once, starting at piece phase 0.
func (c *RunCache) simulate(cur *Cursor, start surface.Fingerprint) (*RunRecord, error) {
	if err := surface.Restore(c.grid, start); err != nil {
		return nil, err
	}
	before := c.grid.Height()
	phase := start.DriverPhase
	for _, p := range c.params.Repertoire {
		var err error
		phase, _, err = shaft.Drop(c.grid, p, c.params.Spawn, c.params.Impulses, phase)
		if err != nil {
			return nil, err
		}
	}
	end, err := surface.Capture(c.grid, phase, c.params.SurfaceCap)
	if err != nil {
		return nil, err
	}
	return &RunRecord{
		Start:             start,
		End:               end,
		HeightDelta:       uint64(c.grid.Height() - before),
		EndDriverPhase:    phase,
		FirstSeenCycle:    cur.Cycle,
		HeightAtFirstSeen: cur.Height,
	}, nil
}

// Loop returns the record carrying the detected loop, or nil.
func (c *RunCache) Loop() *RunRecord { return c.loop }

// Stats returns the number of simulated cycles (misses) and replayed
// cycles (hits).
func (c *RunCache) Stats() (simulated, hits int) { return c.misses, c.hits }

// Len is the number of distinct starting fingerprints seen.
func (c *RunCache) Len() int { return len(c.records) }

// Records returns copies of all records in first-seen order.
func (c *RunCache) Records() []RunRecord {
	out := make([]RunRecord, len(c.order))
	for i, rec := range c.order {
		out[i] = *rec
		if rec.Loop != nil {
			loop := *rec.Loop
			out[i].Loop = &loop
		}
	}
	return out
}
