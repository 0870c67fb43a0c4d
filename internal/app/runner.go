// Package app turns configuration and raw input into extrapolation runs,
// times them, and records finished runs in the history database.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rockfall/internal/config"
	"github.com/banshee-data/rockfall/internal/cycles"
	"github.com/banshee-data/rockfall/internal/db"
	"github.com/banshee-data/rockfall/internal/monitoring"
	"github.com/banshee-data/rockfall/internal/shaft"
	"github.com/banshee-data/rockfall/internal/timeutil"
)

// VerifyLimit is the largest drop count checked against direct simulation.
const VerifyLimit = 100_000

// ErrVerifyMismatch is returned when a verified extrapolation disagrees
// with direct simulation.
var ErrVerifyMismatch = errors.New("extrapolated height differs from direct simulation")

var runnerLogf = monitoring.Component("Runner")

// ParamsFromConfig builds extrapolation parameters from a configuration
// and an impulse sequence, validating both.
func ParamsFromConfig(cfg *config.SimulationConfig, imp shaft.Impulses) (cycles.Params, error) {
	if cfg == nil {
		cfg = config.EmptySimulationConfig()
	}
	if err := cfg.Validate(); err != nil {
		return cycles.Params{}, err
	}
	rep, err := cfg.GetRepertoire()
	if err != nil {
		return cycles.Params{}, err
	}
	p := cycles.Params{
		Width:              cfg.GetWidth(),
		Spawn:              cfg.GetSpawn(),
		SurfaceCap:         cfg.GetSurfaceCap(),
		Repertoire:         rep,
		Impulses:           imp,
		MaxSimulatedCycles: cfg.GetMaxSimulatedCycles(),
	}
	if err := p.Validate(); err != nil {
		return cycles.Params{}, err
	}
	return p, nil
}

// Request is one batch of height queries over a single parameter set.
type Request struct {
	Config   *config.SimulationConfig
	Impulses shaft.Impulses
	Drops    []uint64
	// Direct skips extrapolation and simulates every piece.
	Direct bool
	// Verify re-checks extrapolated heights for drop counts up to
	// VerifyLimit against direct simulation.
	Verify bool
}

// Outcome is the answer for one drop count.
type Outcome struct {
	RunID    string         `json:"run_id,omitempty"`
	Drops    uint64         `json:"drops"`
	Height   uint64         `json:"height"`
	Direct   bool           `json:"direct"`
	Verified bool           `json:"verified"`
	Duration time.Duration  `json:"duration_nanos"`
	Result   *cycles.Result `json:"-"`
}

// Runner executes requests. A nil store disables persistence.
type Runner struct {
	store *db.RunStore
	clock timeutil.Clock
}

// NewRunner returns a Runner. clock defaults to the real clock.
func NewRunner(store *db.RunStore, clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{store: store, clock: clock}
}

// Run answers every drop count in req, in order.
func (r *Runner) Run(req Request) ([]Outcome, error) {
	params, err := ParamsFromConfig(req.Config, req.Impulses)
	if err != nil {
		return nil, err
	}
	ex, err := cycles.NewExtrapolator(params)
	if err != nil {
		return nil, err
	}
	var paramsJSON json.RawMessage
	if req.Config != nil {
		if paramsJSON, err = json.Marshal(req.Config); err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}
	}

	out := make([]Outcome, 0, len(req.Drops))
	for _, n := range req.Drops {
		sw := timeutil.NewStopwatch(r.clock)
		o := Outcome{Drops: n, Direct: req.Direct}
		if req.Direct {
			if o.Height, err = shaft.Simulate(params.Width, params.Spawn, params.Repertoire, params.Impulses, n); err != nil {
				return nil, err
			}
		} else {
			if o.Result, err = ex.Run(n); err != nil {
				return nil, err
			}
			o.Height = o.Result.Height
		}
		o.Duration = sw.Lap("simulate")

		if req.Verify && !req.Direct && n <= VerifyLimit {
			direct, err := shaft.Simulate(params.Width, params.Spawn, params.Repertoire, params.Impulses, n)
			if err != nil {
				return nil, err
			}
			if direct != o.Height {
				return nil, fmt.Errorf("drops=%d: extrapolated %d, direct %d: %w", n, o.Height, direct, ErrVerifyMismatch)
			}
			o.Verified = true
			sw.Lap("verify")
		}

		if r.store != nil {
			run, cycleRows := RunFromOutcome(params, o, paramsJSON)
			run.CreatedAt = r.clock.Now().UnixNano()
			if err := r.store.Insert(run, cycleRows); err != nil {
				return nil, err
			}
			o.RunID = run.RunID
		}
		runnerLogf("drops=%d height=%d direct=%v in %v (run %q)", n, o.Height, o.Direct, sw.Total(), o.RunID)
		out = append(out, o)
	}
	return out, nil
}

// RunFromOutcome maps an outcome onto its persisted form.
func RunFromOutcome(p cycles.Params, o Outcome, paramsJSON json.RawMessage) (*db.Run, []db.RunCycle) {
	run := &db.Run{
		Width:         p.Width,
		SurfaceCap:    p.SurfaceCap,
		PieceCount:    len(p.Repertoire),
		ImpulseCount:  len(p.Impulses),
		Drops:         o.Drops,
		Height:        o.Height,
		DurationNanos: int64(o.Duration),
		ParamsJSON:    paramsJSON,
	}
	res := o.Result
	if res == nil {
		return run, nil
	}
	if res.Loop != nil {
		start, period, gain := res.Loop.StartCycle, res.Loop.Period, res.Loop.Gain
		run.LoopStartCycle, run.LoopPeriod, run.LoopGain = &start, &period, &gain
	}
	run.PrefixCycles = res.PrefixCycles
	run.PeriodsApplied = res.PeriodsApplied
	run.RemainderCycles = res.RemainderCycles
	run.TailPieces = res.TailPieces
	run.SimulatedCycles = res.SimulatedCycles
	run.CacheHits = res.CacheHits

	rows := make([]db.RunCycle, len(res.Records))
	for i, rec := range res.Records {
		rows[i] = db.RunCycle{
			Seq:               i,
			FirstSeenCycle:    rec.FirstSeenCycle,
			HeightAtFirstSeen: rec.HeightAtFirstSeen,
			HeightDelta:       rec.HeightDelta,
			EndDriverPhase:    rec.EndDriverPhase,
			StartHash:         fmt.Sprintf("%016x", rec.Start.Sum64()),
			EndHash:           fmt.Sprintf("%016x", rec.End.Sum64()),
			SurfaceRows:       rec.Start.Rows,
			IsLoopStart:       rec.Loop != nil,
		}
	}
	return run, rows
}
