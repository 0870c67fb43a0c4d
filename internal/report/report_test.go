package report

import (
	"bytes"
	"os"
	"testing"

	"github.com/banshee-data/rockfall/internal/cycles"
	"github.com/banshee-data/rockfall/internal/db"
	"github.com/banshee-data/rockfall/internal/shaft"
	"github.com/banshee-data/rockfall/internal/surface"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePoints() []Point {
	return []Point{
		{Cycle: 0, HeightStart: 0, Delta: 2},
		{Cycle: 1, HeightStart: 2, Delta: 4, LoopStart: true},
		{Cycle: 2, HeightStart: 6, Delta: 4},
		{Cycle: 3, HeightStart: 10, Delta: 6},
	}
}

func TestPointsFromRecordsAndCycles(t *testing.T) {
	t.Parallel()

	recs := []cycles.RunRecord{
		{FirstSeenCycle: 0, HeightAtFirstSeen: 0, HeightDelta: 2},
		{FirstSeenCycle: 1, HeightAtFirstSeen: 2, HeightDelta: 4, Loop: &cycles.LoopInfo{StartCycle: 1, Period: 2, Gain: 8}},
	}
	rows := []db.RunCycle{
		{Seq: 0, FirstSeenCycle: 0, HeightAtFirstSeen: 0, HeightDelta: 2},
		{Seq: 1, FirstSeenCycle: 1, HeightAtFirstSeen: 2, HeightDelta: 4, IsLoopStart: true},
	}
	want := samplePoints()[:2]

	if diff := cmp.Diff(PointsFromRecords(recs), want); diff != "" {
		t.Errorf("PointsFromRecords mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(PointsFromCycles(rows), want); diff != "" {
		t.Errorf("PointsFromCycles mismatch (-got +want):\n%s", diff)
	}
}

func TestSummarise(t *testing.T) {
	t.Parallel()

	s := Summarise(samplePoints(), &cycles.LoopInfo{StartCycle: 1, Period: 2, Gain: 8})
	assert.Equal(t, 4, s.Cycles)
	assert.InDelta(t, 4.0, s.MeanDelta, 1e-9)
	assert.InDelta(t, 1.632993, s.StdDevDelta, 1e-6) // sample standard deviation
	assert.Equal(t, 2.0, s.MinDelta)
	assert.Equal(t, 6.0, s.MaxDelta)
	assert.Equal(t, 4.0, s.RowsPerCycle)
}

func TestSummarise_Degenerate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Summary{}, Summarise(nil, nil))

	one := Summarise([]Point{{Delta: 3}}, nil)
	assert.Equal(t, Summary{Cycles: 1, MeanDelta: 3, MinDelta: 3, MaxDelta: 3}, one)
}

func TestWriteHeightPlots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths, err := WriteHeightPlots(dir, "example", samplePoints())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "%s is not a PNG", p)
	}

	_, err = WriteHeightPlots(dir, "empty", nil)
	assert.Error(t, err)
}

func TestRenderRunPage(t *testing.T) {
	t.Parallel()

	g, err := shaft.NewGrid(3, 0)
	require.NoError(t, err)
	require.NoError(t, g.Mark(0, 0))
	require.NoError(t, g.Mark(2, 1))
	fp, err := surface.Capture(g, 5, 10)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderRunPage(&buf, "Run abc", samplePoints(), &fp))
	html := buf.String()
	assert.Contains(t, html, "Run abc")
	assert.Contains(t, html, "Recurring surface")
	assert.Contains(t, html, "loop starts at cycle 1")

	buf.Reset()
	require.NoError(t, RenderRunPage(&buf, "No loop", samplePoints()[:1], nil))
	assert.NotContains(t, buf.String(), "Recurring surface")
}
