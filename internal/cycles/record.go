package cycles

import "github.com/banshee-data/rockfall/internal/surface"

// Cursor is the mutable process state advanced by whoever is driving the
// simulation.
type Cursor struct {
	DriverPhase int
	PiecePhase  int
	Height      uint64 // cumulative rows gained
	Dropped     uint64 // cumulative pieces dropped
	Cycle       uint64 // index of the next cycle to run
}

// LoopInfo describes a detected recurrence.
type LoopInfo struct {
	StartCycle uint64 // cycle index where the recurring fingerprint was first seen
	Period     uint64 // cycles per period
	Gain       uint64 // rows gained per period
}

// RunRecord is the cached outcome of one cycle started from Start.
// Everything but Loop is fixed when the record is created.
type RunRecord struct {
	Start             surface.Fingerprint
	End               surface.Fingerprint
	HeightDelta       uint64
	EndDriverPhase    int
	FirstSeenCycle    uint64
	HeightAtFirstSeen uint64

	Loop *LoopInfo
}
