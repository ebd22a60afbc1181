// Package export renders static artifacts from dashboard data: chart
// snapshots of a panel's series (SVG or PNG) and CSV dumps of filtered
// drill-down record sets.
package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/stellenberg/opsglass/pkg/analysis"
	"github.com/stellenberg/opsglass/pkg/binding"
	"github.com/stellenberg/opsglass/pkg/metrics"
	"github.com/stellenberg/opsglass/pkg/model"
)

// ChartSnapshotOptions controls chart snapshot export behaviour.
type ChartSnapshotOptions struct {
	Path    string           // Output path; format inferred from extension when Format empty
	Format  string           // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title   string           // Optional title rendered in the header block
	PanelID model.PanelID    // Panel being exported (rendered in the header)
	Rows    []model.PanelRow // Panel rows to chart
	Series  []string         // Series names in positional order
	TrendOf string           // Series to overlay a fitted trend line for (empty = none)
}

// SaveChartSnapshot renders a grouped-bar chart of a panel's series with
// an optional linear trend overlay.
func SaveChartSnapshot(opts ChartSnapshotOptions) error {
	defer metrics.Timer(metrics.ChartRender)()
	if len(opts.Rows) == 0 {
		return fmt.Errorf("no rows to export")
	}
	if len(opts.Series) == 0 {
		return fmt.Errorf("series names are required for snapshot export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildChartLayout(opts)

	switch format {
	case "svg":
		return renderSVG(opts.Path, layout)
	case "png":
		return renderPNG(opts.Path, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type chartBar struct {
	Category string
	Series   string
	Value    float64
	X, Y     float64
	W, H     float64
	Color    color.RGBA
}

type trendSegment struct {
	X1, Y1, X2, Y2 float64
}

type chartLayout struct {
	Bars    []chartBar
	Trend   []trendSegment
	Labels  []chartLabel
	Width   int
	Height  int
	Header  float64
	Title   string
	Sub     string
	Legend  []legendEntry
}

type chartLabel struct {
	Text string
	X, Y float64
}

type legendEntry struct {
	Label string
	Color color.RGBA
}

func buildChartLayout(opts ChartSnapshotOptions) chartLayout {
	const (
		padding      = 36.0
		headerHeight = 80.0
		plotHeight   = 320.0
		barWidth     = 22.0
		barGap       = 6.0
		groupGap     = 34.0
	)

	points := binding.Expand(opts.Rows, opts.Series)

	// Value range across all series, zero-anchored so bar heights are
	// comparable, with a little headroom.
	maxVal := 0.0
	for _, p := range points {
		maxVal = math.Max(maxVal, p.Value)
	}
	if maxVal <= 0 {
		maxVal = 1
	}
	maxVal *= 1.1

	groupW := float64(len(opts.Series))*(barWidth+barGap) + groupGap
	plotTop := padding + headerHeight
	baseline := plotTop + plotHeight

	layout := chartLayout{
		Header: headerHeight,
		Title:  opts.Title,
		Sub:    fmt.Sprintf("panel: %s  rows: %d  series: %s", opts.PanelID, len(opts.Rows), strings.Join(opts.Series, ", ")),
	}
	if strings.TrimSpace(layout.Title) == "" {
		layout.Title = "Chart Snapshot"
	}

	for i, p := range points {
		row := i / len(opts.Series)
		ser := i % len(opts.Series)
		h := (p.Value / maxVal) * plotHeight
		x := padding + float64(row)*groupW + float64(ser)*(barWidth+barGap)
		layout.Bars = append(layout.Bars, chartBar{
			Category: p.Category,
			Series:   p.Series,
			Value:    p.Value,
			X:        x,
			Y:        baseline - h,
			W:        barWidth,
			H:        h,
			Color:    seriesColor(ser),
		})
	}

	// One category label under each group.
	for i, row := range opts.Rows {
		x := padding + float64(i)*groupW
		layout.Labels = append(layout.Labels, chartLabel{
			Text: truncate(row.Category, 12),
			X:    x,
			Y:    baseline + 18,
		})
	}

	// Optional trend overlay over the fitted series.
	if opts.TrendOf != "" {
		values := binding.SeriesValues(opts.Rows, opts.Series, opts.TrendOf)
		if len(values) >= 2 {
			tr := analysis.Fit(values)
			for i := 0; i < len(values)-1; i++ {
				x1 := padding + float64(i)*groupW + groupW/2
				x2 := padding + float64(i+1)*groupW + groupW/2
				y1 := baseline - (tr.At(float64(i))/maxVal)*plotHeight
				y2 := baseline - (tr.At(float64(i+1))/maxVal)*plotHeight
				layout.Trend = append(layout.Trend, trendSegment{X1: x1, Y1: y1, X2: x2, Y2: y2})
			}
			layout.Sub += fmt.Sprintf("  trend(%s): %s %.4f/step", opts.TrendOf, tr.Arrow(), tr.Slope)
		}
	}

	for i, name := range opts.Series {
		layout.Legend = append(layout.Legend, legendEntry{Label: name, Color: seriesColor(i)})
	}

	width := int(padding*2 + float64(len(opts.Rows))*groupW)
	if width < 640 {
		width = 640
	}
	layout.Width = width
	layout.Height = int(padding*2 + headerHeight + plotHeight + 40)

	return layout
}

// --- rendering -------------------------------------------------------------

var (
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorTrend    = color.RGBA{0xd3, 0x2f, 0x2f, 0xff}

	seriesPalette = []color.RGBA{
		{0x42, 0x85, 0xf4, 0xff}, // blue
		{0xfb, 0xbc, 0x05, 0xff}, // amber
		{0x34, 0xa8, 0x53, 0xff}, // green
		{0xa1, 0x42, 0xf4, 0xff}, // purple
		{0x00, 0xac, 0xc1, 0xff}, // teal
	}
)

func seriesColor(i int) color.RGBA {
	return seriesPalette[i%len(seriesPalette)]
}

func renderPNG(path string, layout chartLayout) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(layout.Sub, 32, 60, 0, 0.5)

	for _, b := range layout.Bars {
		dc.SetColor(b.Color)
		dc.DrawRectangle(b.X, b.Y, b.W, b.H)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(0.8)
		dc.DrawRectangle(b.X, b.Y, b.W, b.H)
		dc.Stroke()
	}

	dc.SetColor(colorSubtle)
	for _, l := range layout.Labels {
		dc.DrawStringAnchored(l.Text, l.X, l.Y, 0, 0.5)
	}

	dc.SetColor(colorTrend)
	dc.SetLineWidth(2)
	for _, s := range layout.Trend {
		dc.DrawLine(s.X1, s.Y1, s.X2, s.Y2)
		dc.Stroke()
	}

	drawLegendPNG(dc, layout)

	return dc.SavePNG(path)
}

func drawLegendPNG(dc *gg.Context, layout chartLayout) {
	x := float64(layout.Width) - 170
	y := 28.0
	for _, e := range layout.Legend {
		dc.SetColor(e.Color)
		dc.DrawRectangle(x, y-7, 12, 12)
		dc.Fill()
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(e.Label, x+18, y, 0, 0.5)
		y += 16
	}
}

func renderSVG(path string, layout chartLayout) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSVGToWriter(file, layout)
}

func renderSVGToWriter(w io.Writer, layout chartLayout) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	canvas.Text(32, 44, layout.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 62, layout.Sub, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	for _, b := range layout.Bars {
		canvas.Rect(int(b.X), int(b.Y), int(b.W), int(b.H),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:0.8", css(b.Color), css(colorStroke)))
	}

	for _, l := range layout.Labels {
		canvas.Text(int(l.X), int(l.Y), l.Text,
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	}

	for _, s := range layout.Trend {
		canvas.Line(int(s.X1), int(s.Y1), int(s.X2), int(s.Y2),
			fmt.Sprintf("stroke:%s;stroke-width:2", css(colorTrend)))
	}

	x := layout.Width - 170
	y := 32
	for _, e := range layout.Legend {
		canvas.Rect(x, y-10, 12, 12, fmt.Sprintf("fill:%s", css(e.Color)))
		canvas.Text(x+18, y, e.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
		y += 16
	}

	canvas.End()
	return nil
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
