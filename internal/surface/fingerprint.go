// Package surface derives comparable signatures of a shaft's exposed
// surface so recurring process states can be recognised.
package surface

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/banshee-data/rockfall/internal/shaft"
)

// DefaultCap is the number of top rows retained in a fingerprint.
const DefaultCap = 50

// Fingerprint is the capped top-row window of a grid plus the driver
// phase at capture time. It is comparable and used directly as a map key.
// Absolute height and repertoire phase are deliberately absent: captures
// happen only on repertoire-cycle boundaries.
type Fingerprint struct {
	// Surface holds Rows rows bottom-to-top, each packed into
	// ceil(Width/8) bytes, least significant bit = column 0.
	Surface     string
	Width       int
	Rows        int
	DriverPhase int
}

func rowBytes(width int) int { return (width + 7) / 8 }

// Capture fingerprints the top min(height, limit) rows of g.
func Capture(g *shaft.Grid, driverPhase, limit int) (Fingerprint, error) {
	if limit <= 0 {
		return Fingerprint{}, shaft.Invariantf("surface.Capture", "cap must be positive, got %d", limit)
	}
	if driverPhase < 0 {
		return Fingerprint{}, shaft.Invariantf("surface.Capture", "negative driver phase %d", driverPhase)
	}
	width := g.Width()
	rows := min(g.Height(), limit)
	stride := rowBytes(width)
	buf := make([]byte, rows*stride)
	base := g.Height() - rows
	for r := 0; r < rows; r++ {
		for col, filled := range g.Row(base + r) {
			if filled {
				buf[r*stride+col/8] |= 1 << (col % 8)
			}
		}
	}
	return Fingerprint{
		Surface:     string(buf),
		Width:       width,
		Rows:        rows,
		DriverPhase: driverPhase,
	}, nil
}

// Restore empties g and re-seeds it with the fingerprint's window at rows
// 0..Rows-1, so g.Height() == fp.Rows afterwards.
func Restore(g *shaft.Grid, fp Fingerprint) error {
	if g.Width() != fp.Width {
		return shaft.Invariantf("surface.Restore", "grid width %d, fingerprint width %d", g.Width(), fp.Width)
	}
	stride := rowBytes(fp.Width)
	if len(fp.Surface) != fp.Rows*stride {
		return shaft.Invariantf("surface.Restore", "surface holds %d bytes, want %d", len(fp.Surface), fp.Rows*stride)
	}
	g.Reset()
	for r := 0; r < fp.Rows; r++ {
		for col := 0; col < fp.Width; col++ {
			if fp.Surface[r*stride+col/8]&(1<<(col%8)) == 0 {
				continue
			}
			if err := g.Mark(col, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sum64 is an FNV-1a hash of the fingerprint's bytes, for logs and storage.
func (f Fingerprint) Sum64() uint64 {
	h := fnv.New64a()
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:], uint64(f.Width))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(f.Rows))
	binary.LittleEndian.PutUint64(hdr[16:], uint64(f.DriverPhase))
	h.Write(hdr[:])
	h.Write([]byte(f.Surface))
	return h.Sum64()
}

// Occupied reports whether the window cell (col, row) is filled; row 0 is
// the bottom of the window.
func (f Fingerprint) Occupied(col, row int) bool {
	if col < 0 || col >= f.Width || row < 0 || row >= f.Rows {
		return false
	}
	return f.Surface[row*rowBytes(f.Width)+col/8]&(1<<(col%8)) != 0
}
