package cycles

import (
	"slices"

	"github.com/banshee-data/rockfall/internal/shaft"
)

// Mismatch is a sample where the extrapolated height disagrees with a
// direct simulation.
type Mismatch struct {
	Drops        uint64
	Extrapolated uint64
	Direct       uint64
}

// CapReport summarises an empirical check of a surface cap.
type CapReport struct {
	Cap        int
	Samples    []uint64
	Mismatches []Mismatch
	Loop       *LoopInfo // loop found for the largest sample, if any
}

// OK reports whether every sample agreed.
func (r *CapReport) OK() bool { return len(r.Mismatches) == 0 }

// VerifyCap compares the extrapolated height with an uncapped direct
// simulation for each sample drop count. The direct run is a single pass up
// to the largest sample, so samples should stay small enough to simulate.
func VerifyCap(p Params, samples []uint64) (*CapReport, error) {
	ex, err := NewExtrapolator(p)
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	report := &CapReport{Cap: p.SurfaceCap, Samples: sorted}
	if len(sorted) == 0 {
		return report, nil
	}

	profile, err := shaft.HeightProfile(p.Width, p.Spawn, p.Repertoire, p.Impulses, sorted[len(sorted)-1])
	if err != nil {
		return nil, err
	}
	for _, n := range sorted {
		res, err := ex.Run(n)
		if err != nil {
			return nil, err
		}
		if res.Height != profile[n] {
			report.Mismatches = append(report.Mismatches, Mismatch{Drops: n, Extrapolated: res.Height, Direct: profile[n]})
		}
		if res.Loop != nil {
			report.Loop = res.Loop
		}
	}
	return report, nil
}
