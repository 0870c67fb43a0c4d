package shaft

import "sort"

// Cell is an integer (column, row) offset. Row grows upward.
type Cell struct {
	Col int
	Row int
}

// Piece is an immutable shape: a set of offsets relative to its bottom-left
// anchor, plus its bounding box.
type Piece struct {
	cells  []Cell
	width  int
	height int
	bottom int
}

// NewPiece builds a piece from its offsets. Duplicates are dropped; negative
// offsets and empty sets are rejected.
func NewPiece(offsets []Cell) (Piece, error) {
	if len(offsets) == 0 {
		return Piece{}, invalidf("piece has no offsets")
	}
	seen := make(map[Cell]bool, len(offsets))
	cells := make([]Cell, 0, len(offsets))
	p := Piece{bottom: offsets[0].Row}
	for _, c := range offsets {
		if c.Col < 0 || c.Row < 0 {
			return Piece{}, invalidf("piece offset (%d, %d) is negative", c.Col, c.Row)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		cells = append(cells, c)
		if c.Col+1 > p.width {
			p.width = c.Col + 1
		}
		if c.Row+1 > p.height {
			p.height = c.Row + 1
		}
		if c.Row < p.bottom {
			p.bottom = c.Row
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	p.cells = cells
	return p, nil
}

// MustPiece is NewPiece for static shapes; it panics on invalid offsets.
func MustPiece(offsets ...Cell) Piece {
	p, err := NewPiece(offsets)
	if err != nil {
		panic(err)
	}
	return p
}

// Cells returns a copy of the piece's offsets ordered bottom-up, left-right.
func (p Piece) Cells() []Cell {
	out := make([]Cell, len(p.cells))
	copy(out, p.cells)
	return out
}

// Width is the bounding width: one past the largest column offset.
func (p Piece) Width() int { return p.width }

// Height is the bounding height: one past the largest row offset.
func (p Piece) Height() int { return p.height }

// Bottom is the lowest occupied row offset.
func (p Piece) Bottom() int { return p.bottom }

// Size is the number of distinct cells.
func (p Piece) Size() int { return len(p.cells) }

// Repertoire is the ordered set of pieces consumed cyclically.
type Repertoire []Piece

// At returns the piece for a repertoire phase, wrapping by length.
func (r Repertoire) At(phase int) Piece {
	return r[phase%len(r)]
}

// MaxHeight is the tallest bounding height across the repertoire.
func (r Repertoire) MaxHeight() int {
	h := 0
	for _, p := range r {
		if p.height > h {
			h = p.height
		}
	}
	return h
}

// Validate checks the repertoire is non-empty and every piece fits in width.
func (r Repertoire) Validate(width int) error {
	if len(r) == 0 {
		return invalidf("repertoire is empty")
	}
	for i, p := range r {
		if len(p.cells) == 0 {
			return invalidf("piece %d has no offsets", i)
		}
		if p.width > width {
			return invalidf("piece %d is %d wide, shaft is %d", i, p.width, width)
		}
	}
	return nil
}

// StandardRepertoire returns the five classic shapes in drop order:
// horizontal bar, plus, reversed L, vertical bar, square.
func StandardRepertoire() Repertoire {
	return Repertoire{
		MustPiece(Cell{0, 0}, Cell{1, 0}, Cell{2, 0}, Cell{3, 0}),
		MustPiece(Cell{1, 0}, Cell{0, 1}, Cell{1, 1}, Cell{2, 1}, Cell{1, 2}),
		MustPiece(Cell{0, 0}, Cell{1, 0}, Cell{2, 0}, Cell{2, 1}, Cell{2, 2}),
		MustPiece(Cell{0, 0}, Cell{0, 1}, Cell{0, 2}, Cell{0, 3}),
		MustPiece(Cell{0, 0}, Cell{0, 1}, Cell{1, 0}, Cell{1, 1}),
	}
}
