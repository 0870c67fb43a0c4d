package input

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/rockfall/internal/shaft"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standardDrawings = `####

.#.
###
.#.

..#
..#
###

#
#
#
#

##
##
`

func TestParseImpulses(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  shaft.Impulses
		expectErr bool
	}{
		{"single_left", "<", shaft.Impulses{-1}, false},
		{"mixed", "><<>", shaft.Impulses{1, -1, -1, 1}, false},
		{"trailing_newline", ">>\n", shaft.Impulses{1, 1}, false},
		{"crlf_and_spaces", " < >\r\n", shaft.Impulses{-1, 1}, false},
		{"empty", "", nil, true},
		{"whitespace_only", " \n\t", nil, true},
		{"bad_byte", "<<x>", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseImpulses(tc.input)
			if tc.expectErr {
				if !errors.Is(err, shaft.ErrInvalidInput) {
					t.Errorf("ParseImpulses(%q) err = %v, want ErrInvalidInput", tc.input, err)
				}
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("ParseImpulses(%q) mismatch (-want +got):\n%s", tc.input, diff)
			}
		})
	}
}

func TestParseImpulses_ErrorNamesOffset(t *testing.T) {
	_, err := ParseImpulses("<<x>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 2")
}

func TestParsePiece(t *testing.T) {
	p, err := ParsePiece(".#.\n###\n.#.")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Width())
	assert.Equal(t, 3, p.Height())
	assert.Equal(t, 5, p.Size())
	assert.Equal(t, []shaft.Cell{{Col: 1, Row: 0}, {Col: 0, Row: 1}, {Col: 1, Row: 1}, {Col: 2, Row: 1}, {Col: 1, Row: 2}}, p.Cells())
}

func TestParsePiece_TrimsEmptyMargins(t *testing.T) {
	p, err := ParsePiece("....\n..##\n....")
	require.NoError(t, err)
	assert.Equal(t, []shaft.Cell{{Col: 0, Row: 0}, {Col: 1, Row: 0}}, p.Cells())
}

func TestParsePiece_Invalid(t *testing.T) {
	for _, drawing := range []string{"", "...", "#?#"} {
		_, err := ParsePiece(drawing)
		assert.ErrorIs(t, err, shaft.ErrInvalidInput, "drawing %q", drawing)
	}
}

func TestParseRepertoire_StandardShapes(t *testing.T) {
	rep, err := ParseRepertoire(standardDrawings)
	require.NoError(t, err)
	want := shaft.StandardRepertoire()
	require.Len(t, rep, len(want))
	for i := range want {
		if diff := cmp.Diff(want[i].Cells(), rep[i].Cells()); diff != "" {
			t.Errorf("piece %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestParseRepertoire_Errors(t *testing.T) {
	_, err := ParseRepertoire("\n\n")
	assert.ErrorIs(t, err, shaft.ErrInvalidInput)

	_, err = ParseRepertoire("##\n\n#x")
	require.ErrorIs(t, err, shaft.ErrInvalidInput)
	assert.True(t, strings.HasPrefix(err.Error(), "piece 1:"), err.Error())
}

func TestSplitDrawings(t *testing.T) {
	got := SplitDrawings("\r\n##\r\n.#\r\n\r\n\r\n#\n")
	want := [][]string{{"##", ".#"}, {"#"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitDrawings mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, SplitDrawings(" \n\t\n"))
}

func TestParseCSVUint64s(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  []uint64
		expectErr bool
	}{
		{"empty_string", "", nil, false},
		{"single_value", "2022", []uint64{2022}, false},
		{"multiple_values", "2022,1000000000000", []uint64{2022, 1000000000000}, false},
		{"underscores", "1_000_000", []uint64{1000000}, false},
		{"with_spaces", " 1 , 2 ", []uint64{1, 2}, false},
		{"empty_parts", "1,,3", []uint64{1, 3}, false},
		{"max", "18446744073709551615", []uint64{18446744073709551615}, false},
		{"negative", "-1", nil, true},
		{"overflow", "18446744073709551616", nil, true},
		{"invalid_value", "1,abc", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCSVUint64s(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if diff := cmp.Diff(tc.expected, result); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCSVInts(t *testing.T) {
	result, err := ParseCSVInts("5, 10,50")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 10, 50}, result)

	_, err = ParseCSVInts("5,x")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "jets.txt")
	require.NoError(t, os.WriteFile(path, []byte("<>\n"), 0644))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<>\n", got)

	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxFileSize+1), 0644))
	_, err = ReadFile(big)
	assert.ErrorContains(t, err, "too large")

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = ReadFile(dir)
	assert.ErrorContains(t, err, "directory")
}
