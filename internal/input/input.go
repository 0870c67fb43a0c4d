// Package input parses the raw text forms of impulse sequences, piece
// drawings and drop-count lists.
package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/rockfall/internal/shaft"
)

// MaxFileSize caps ReadFile, matching the config loader.
const MaxFileSize = 1 * 1024 * 1024

// ReadFile reads a whole input file after checking its size.
func ReadFile(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat input file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("input path %q is a directory", cleanPath)
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("input file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil
}

// ParseImpulses maps '<' to Left and '>' to Right. Whitespace is skipped;
// any other byte is an error naming its offset.
func ParseImpulses(text string) (shaft.Impulses, error) {
	out := make(shaft.Impulses, 0, len(text))
	for i, r := range text {
		switch r {
		case '<':
			out = append(out, shaft.Left)
		case '>':
			out = append(out, shaft.Right)
		case ' ', '\t', '\r', '\n':
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d: %w", r, i, shaft.ErrInvalidInput)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no impulses found: %w", shaft.ErrInvalidInput)
	}
	return out, nil
}

// ParsePiece reads a drawing of '#' (filled) and '.' (empty) cells. The
// first line is the top row. Blank lines are ignored.
func ParsePiece(drawing string) (shaft.Piece, error) {
	var lines []string
	for _, line := range strings.Split(drawing, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	var cells []shaft.Cell
	for i, line := range lines {
		row := len(lines) - 1 - i
		for col, r := range line {
			switch r {
			case '#':
				cells = append(cells, shaft.Cell{Col: col, Row: row})
			case '.':
			default:
				return shaft.Piece{}, fmt.Errorf("line %d: unexpected %q: %w", i+1, r, shaft.ErrInvalidInput)
			}
		}
	}
	return shaft.NewPiece(normalise(cells))
}

// normalise shifts cells so the lowest row and leftmost column are 0.
func normalise(cells []shaft.Cell) []shaft.Cell {
	if len(cells) == 0 {
		return cells
	}
	minCol, minRow := cells[0].Col, cells[0].Row
	for _, c := range cells[1:] {
		minCol = min(minCol, c.Col)
		minRow = min(minRow, c.Row)
	}
	for i := range cells {
		cells[i].Col -= minCol
		cells[i].Row -= minRow
	}
	return cells
}

// SplitDrawings splits text into blocks of non-blank lines, one block per
// piece drawing.
func SplitDrawings(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var blocks [][]string
	var block []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(block) > 0 {
				blocks = append(blocks, block)
				block = nil
			}
			continue
		}
		block = append(block, line)
	}
	if len(block) > 0 {
		blocks = append(blocks, block)
	}
	return blocks
}

// ParseRepertoire reads piece drawings separated by blank lines, in drop
// order.
func ParseRepertoire(text string) (shaft.Repertoire, error) {
	blocks := SplitDrawings(text)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no pieces found: %w", shaft.ErrInvalidInput)
	}
	rep := make(shaft.Repertoire, 0, len(blocks))
	for i, block := range blocks {
		p, err := ParsePiece(strings.Join(block, "\n"))
		if err != nil {
			return nil, fmt.Errorf("piece %d: %w", i, err)
		}
		rep = append(rep, p)
	}
	return rep, nil
}

// ParseCSVUint64s parses a comma-separated list of drop counts.
// Returns nil, nil for empty input strings.
func ParseCSVUint64s(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "_", ""))
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid count '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseCSVInts parses a comma-separated list of int values.
// Returns nil, nil for empty input strings.
func ParseCSVInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
