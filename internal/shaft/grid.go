package shaft

import "fmt"

// Floor is the TopFilledRow of an empty grid.
const Floor = -1

// minGridRows is the initial materialised height of a new grid.
const minGridRows = 64

// Grid is a fixed-width occupancy store with a lazily grown height.
// Row 0 is the lowest row. Cells are stored row-major; once marked they are
// only cleared by Reset.
type Grid struct {
	width int
	rows  int
	cells []bool
	top   int
}

// NewGrid allocates an empty grid of the given width with room for at least
// rowsHint rows before the first growth.
func NewGrid(width, rowsHint int) (*Grid, error) {
	if width <= 0 {
		return nil, invalidf("grid width must be positive, got %d", width)
	}
	if rowsHint < minGridRows {
		rowsHint = minGridRows
	}
	return &Grid{
		width: width,
		rows:  rowsHint,
		cells: make([]bool, width*rowsHint),
		top:   Floor,
	}, nil
}

// Width returns the fixed shaft width.
func (g *Grid) Width() int { return g.width }

// TopFilledRow returns the highest row holding any occupied cell, or Floor.
func (g *Grid) TopFilledRow() int { return g.top }

// Height is the number of rows from the floor to the topmost occupied cell.
func (g *Grid) Height() int { return g.top + 1 }

// Occupied reports whether (col, row) is filled. Rows below the floor and
// above the materialised capacity are always empty.
func (g *Grid) Occupied(col, row int) (bool, error) {
	if col < 0 || col >= g.width {
		return false, fmt.Errorf("occupied(%d, %d): %w", col, row, ErrOutOfBounds)
	}
	return g.occupied(col, row), nil
}

// occupied is the unchecked fast path; col must already be within [0, W).
func (g *Grid) occupied(col, row int) bool {
	if row < 0 || row > g.top {
		return false
	}
	return g.cells[row*g.width+col]
}

// Mark fills (col, row). Marking an already occupied cell is a no-op.
func (g *Grid) Mark(col, row int) error {
	if col < 0 || col >= g.width {
		return fmt.Errorf("mark(%d, %d): %w", col, row, ErrOutOfBounds)
	}
	if row < 0 {
		return Invariantf("grid.Mark", "row %d is below the floor", row)
	}
	g.ensureRows(row + 1)
	g.cells[row*g.width+col] = true
	if row > g.top {
		g.top = row
	}
	return nil
}

// Reset empties the grid while keeping its storage.
func (g *Grid) Reset() {
	used := (g.top + 1) * g.width
	for i := 0; i < used; i++ {
		g.cells[i] = false
	}
	g.top = Floor
}

// Row returns a copy of the occupancy of one row.
func (g *Grid) Row(row int) []bool {
	out := make([]bool, g.width)
	if row < 0 || row > g.top {
		return out
	}
	copy(out, g.cells[row*g.width:(row+1)*g.width])
	return out
}

// String draws the grid top-down using '#' and '.', one line per row.
func (g *Grid) String() string {
	buf := make([]byte, 0, (g.top+1)*(g.width+3))
	for row := g.top; row >= 0; row-- {
		buf = append(buf, '|')
		for col := 0; col < g.width; col++ {
			if g.cells[row*g.width+col] {
				buf = append(buf, '#')
			} else {
				buf = append(buf, '.')
			}
		}
		buf = append(buf, '|', '\n')
	}
	return string(buf)
}

func (g *Grid) ensureRows(n int) {
	if n <= g.rows {
		return
	}
	rows := g.rows * 2
	for rows < n {
		rows *= 2
	}
	cells := make([]bool, rows*g.width)
	copy(cells, g.cells)
	g.cells = cells
	g.rows = rows
}
