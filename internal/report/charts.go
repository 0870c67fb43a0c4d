package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rockfall/internal/surface"
)

// HeightChart builds a line chart of cumulative height per cycle, with the
// per-cycle gain as a second series.
func HeightChart(title string, points []Point) *charts.Line {
	xs := make([]string, len(points))
	heights := make([]opts.LineData, len(points))
	deltas := make([]opts.LineData, len(points))
	loopAt := ""
	for i, p := range points {
		xs[i] = fmt.Sprintf("%d", p.Cycle)
		heights[i] = opts.LineData{Value: p.HeightEnd()}
		deltas[i] = opts.LineData{Value: p.Delta}
		if p.LoopStart {
			loopAt = xs[i]
		}
	}
	subtitle := fmt.Sprintf("cycles=%d", len(points))
	if loopAt != "" {
		subtitle += " loop starts at cycle " + loopAt
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cycle", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Rows", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(xs).
		AddSeries("height", heights).
		AddSeries("gain", deltas)
	return line
}

// SurfaceChart draws a fingerprint's window as a scatter of filled cells.
func SurfaceChart(title string, fp surface.Fingerprint) *charts.Scatter {
	data := make([]opts.ScatterData, 0, fp.Rows*fp.Width/2+1)
	for row := 0; row < fp.Rows; row++ {
		for col := 0; col < fp.Width; col++ {
			if fp.Occupied(col, row) {
				data = append(data, opts.ScatterData{Value: []interface{}{col, row}})
			}
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "600px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("width=%d rows=%d phase=%d hash=%016x", fp.Width, fp.Rows, fp.DriverPhase, fp.Sum64())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -0.5, Max: float64(fp.Width) - 0.5, Name: "Column", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -0.5, Max: float64(fp.Rows) - 0.5, Name: "Window row", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("filled", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
	return scatter
}

// RenderRunPage writes an HTML page with the height chart and, when the
// run found a loop, the recurring surface.
func RenderRunPage(w io.Writer, title string, points []Point, loopSurface *surface.Fingerprint) error {
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(HeightChart(title, points))
	if loopSurface != nil {
		page.AddCharts(SurfaceChart("Recurring surface", *loopSurface))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render run page: %w", err)
	}
	return nil
}
