package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteHeightPlots saves two PNGs into dir, cumulative height and per-cycle
// gain against cycle index, and returns their paths.
func WriteHeightPlots(dir, label string, points []Point) ([]string, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no cycles to plot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	pHeight := plot.New()
	pHeight.Title.Text = fmt.Sprintf("%s - Cumulative Height", label)
	pHeight.X.Label.Text = "Cycle"
	pHeight.Y.Label.Text = "Rows"

	pDelta := plot.New()
	pDelta.Title.Text = fmt.Sprintf("%s - Rows Gained per Cycle", label)
	pDelta.X.Label.Text = "Cycle"
	pDelta.Y.Label.Text = "Rows"

	heightPts := make(plotter.XYs, 0, len(points))
	deltaPts := make(plotter.XYs, 0, len(points))
	var loopPts plotter.XYs
	for _, p := range points {
		x := float64(p.Cycle)
		heightPts = append(heightPts, plotter.XY{X: x, Y: float64(p.HeightEnd())})
		deltaPts = append(deltaPts, plotter.XY{X: x, Y: float64(p.Delta)})
		if p.LoopStart {
			loopPts = append(loopPts, plotter.XY{X: x, Y: float64(p.HeightStart)})
		}
	}

	heightLine, err := plotter.NewLine(heightPts)
	if err != nil {
		return nil, err
	}
	heightLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	heightLine.Width = vg.Points(1)
	pHeight.Add(heightLine)
	pHeight.Legend.Add("height", heightLine)

	if len(loopPts) > 0 {
		marks, err := plotter.NewScatter(loopPts)
		if err != nil {
			return nil, err
		}
		marks.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		marks.Radius = vg.Points(3)
		pHeight.Add(marks)
		pHeight.Legend.Add("loop start", marks)
	}

	deltaLine, err := plotter.NewLine(deltaPts)
	if err != nil {
		return nil, err
	}
	deltaLine.Color = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	deltaLine.Width = vg.Points(1)
	pDelta.Add(deltaLine)

	for _, p := range []*plot.Plot{pHeight, pDelta} {
		p.Legend.Top = true
		p.Legend.Left = true
		p.Legend.XOffs = 10
		p.Legend.YOffs = -10
	}

	heightFile := filepath.Join(dir, "height.png")
	if err := pHeight.Save(14*vg.Inch, 6*vg.Inch, heightFile); err != nil {
		return nil, fmt.Errorf("save height plot: %w", err)
	}
	deltaFile := filepath.Join(dir, "delta.png")
	if err := pDelta.Save(14*vg.Inch, 6*vg.Inch, deltaFile); err != nil {
		return nil, fmt.Errorf("save delta plot: %w", err)
	}
	return []string{heightFile, deltaFile}, nil
}
