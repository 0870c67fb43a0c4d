// Package report summarises and renders the cycle history of an
// extrapolation: statistics, PNG plots and interactive HTML charts.
package report

import (
	"github.com/banshee-data/rockfall/internal/cycles"
	"github.com/banshee-data/rockfall/internal/db"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is one simulated cycle.
type Point struct {
	Cycle       uint64
	HeightStart uint64 // cumulative height when the cycle began
	Delta       uint64 // rows gained by the cycle
	LoopStart   bool   // the loop's recurring fingerprint starts this cycle
}

// HeightEnd is the cumulative height after the cycle.
func (p Point) HeightEnd() uint64 { return p.HeightStart + p.Delta }

// PointsFromRecords converts in-memory cache records.
func PointsFromRecords(recs []cycles.RunRecord) []Point {
	out := make([]Point, len(recs))
	for i, r := range recs {
		out[i] = Point{
			Cycle:       r.FirstSeenCycle,
			HeightStart: r.HeightAtFirstSeen,
			Delta:       r.HeightDelta,
			LoopStart:   r.Loop != nil,
		}
	}
	return out
}

// PointsFromCycles converts persisted cycle rows.
func PointsFromCycles(rows []db.RunCycle) []Point {
	out := make([]Point, len(rows))
	for i, r := range rows {
		out[i] = Point{
			Cycle:       r.FirstSeenCycle,
			HeightStart: r.HeightAtFirstSeen,
			Delta:       r.HeightDelta,
			LoopStart:   r.IsLoopStart,
		}
	}
	return out
}

// Summary describes the per-cycle height gain distribution.
type Summary struct {
	Cycles      int     `json:"cycles"`
	MeanDelta   float64 `json:"mean_delta"`
	StdDevDelta float64 `json:"stddev_delta"`
	MinDelta    float64 `json:"min_delta"`
	MaxDelta    float64 `json:"max_delta"`
	// RowsPerCycle is the loop's gain divided by its period, 0 without a loop.
	RowsPerCycle float64 `json:"rows_per_cycle"`
}

// Summarise computes delta statistics over points. loop may be nil.
func Summarise(points []Point, loop *cycles.LoopInfo) Summary {
	s := Summary{Cycles: len(points)}
	if loop != nil && loop.Period > 0 {
		s.RowsPerCycle = float64(loop.Gain) / float64(loop.Period)
	}
	if len(points) == 0 {
		return s
	}
	deltas := make([]float64, len(points))
	for i, p := range points {
		deltas[i] = float64(p.Delta)
	}
	s.MeanDelta, s.StdDevDelta = stat.MeanStdDev(deltas, nil)
	if len(deltas) < 2 {
		s.StdDevDelta = 0
	}
	s.MinDelta = floats.Min(deltas)
	s.MaxDelta = floats.Max(deltas)
	return s
}
