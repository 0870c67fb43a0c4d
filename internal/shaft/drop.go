package shaft

// Spawn controls where new pieces appear.
type Spawn struct {
	// Gap is the number of empty rows between the top filled row and the
	// new piece's lowest cell.
	Gap int
	// Column is the anchor column. It is clamped to W-pieceWidth so a
	// piece always spawns inside narrow shafts.
	Column int
}

// DefaultSpawn is three empty rows above the stack, two columns from the
// left wall.
var DefaultSpawn = Spawn{Gap: 3, Column: 2}

func (s Spawn) column(g *Grid, p Piece) int {
	col := s.Column
	if limit := g.width - p.width; col > limit {
		col = limit
	}
	if col < 0 {
		col = 0
	}
	return col
}

// fits reports whether p anchored at (col, row) lies inside the shaft and
// overlaps no occupied cell.
func (g *Grid) fits(p Piece, col, row int) bool {
	for _, c := range p.cells {
		x, y := col+c.Col, row+c.Row
		if x < 0 || x >= g.width || y < 0 {
			return false
		}
		if g.occupied(x, y) {
			return false
		}
	}
	return true
}

// Drop resolves one piece's fall from spawn to rest and marks it into g.
// Each step reads the impulse at the current driver phase, advances the
// phase, tries the lateral move, then tries to move down one row; a
// rejected downward move freezes the piece. It returns the driver phase
// after the last consumed impulse and the growth of g.Height().
func Drop(g *Grid, p Piece, spawn Spawn, imp Impulses, phase int) (endPhase, heightDelta int, err error) {
	if len(imp) == 0 {
		return phase, 0, invalidf("impulse sequence is empty")
	}
	if len(p.cells) == 0 {
		return phase, 0, invalidf("piece has no offsets")
	}
	if p.width > g.width {
		return phase, 0, invalidf("piece is %d wide, shaft is %d", p.width, g.width)
	}
	if spawn.Gap < 0 {
		return phase, 0, invalidf("spawn gap must be non-negative, got %d", spawn.Gap)
	}

	phase %= len(imp)
	if phase < 0 {
		phase += len(imp)
	}

	before := g.Height()
	col := spawn.column(g, p)
	row := g.top + 1 + spawn.Gap - p.bottom
	if !g.fits(p, col, row) {
		return phase, 0, Invariantf("shaft.Drop", "spawn position (%d, %d) is blocked", col, row)
	}

	// Every step either lowers the anchor or freezes the piece, and the
	// anchor cannot pass below row -bottom.
	limit := row + p.bottom + 1
	for step := 0; step <= limit; step++ {
		dx := imp.At(phase)
		phase = imp.Next(phase)
		if g.fits(p, col+dx, row) {
			col += dx
		}
		if g.fits(p, col, row-1) {
			row--
			continue
		}
		for _, c := range p.cells {
			if err := g.Mark(col+c.Col, row+c.Row); err != nil {
				return phase, 0, err
			}
		}
		return phase, g.Height() - before, nil
	}
	return phase, 0, Invariantf("shaft.Drop", "piece did not come to rest within %d steps", limit+1)
}

// Simulate drops n pieces one by one into a fresh, uncapped grid and
// returns the final height. It keeps no cache and is meant for small n and
// for verifying the extrapolated path.
func Simulate(width int, spawn Spawn, rep Repertoire, imp Impulses, n uint64) (uint64, error) {
	var height uint64
	err := simulate(width, spawn, rep, imp, n, func(_ uint64, h int) {
		height = uint64(h)
	})
	return height, err
}

// MaxProfileDrops is the largest n HeightProfile accepts.
const MaxProfileDrops = 1 << 20

// HeightProfile returns the stack height after each of the first n drops;
// element 0 is the empty shaft. n is limited to MaxProfileDrops.
func HeightProfile(width int, spawn Spawn, rep Repertoire, imp Impulses, n uint64) ([]uint64, error) {
	if n > MaxProfileDrops {
		return nil, invalidf("height profile limited to %d drops, got %d", MaxProfileDrops, n)
	}
	profile := make([]uint64, 1, n+1)
	err := simulate(width, spawn, rep, imp, n, func(_ uint64, h int) {
		profile = append(profile, uint64(h))
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func simulate(width int, spawn Spawn, rep Repertoire, imp Impulses, n uint64, after func(i uint64, height int)) error {
	if err := rep.Validate(width); err != nil {
		return err
	}
	if err := imp.Validate(); err != nil {
		return err
	}
	g, err := NewGrid(width, int(min(n, 1<<16))*rep.MaxHeight())
	if err != nil {
		return err
	}
	phase := 0
	for i := uint64(0); i < n; i++ {
		phase, _, err = Drop(g, rep.At(int(i%uint64(len(rep)))), spawn, imp, phase)
		if err != nil {
			return err
		}
		after(i, g.Height())
	}
	return nil
}
