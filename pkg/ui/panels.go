package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stellenberg/opsglass/pkg/analysis"
	"github.com/stellenberg/opsglass/pkg/model"
)

// Panel geometry in design units. The dashboard is authored against a
// fixed canvas (1920x1080 by default) laid out as a full-width banner,
// three metric columns, and a full-width scrolling strip at the bottom;
// everything is projected to terminal cells through the scale adapter.
const (
	designBannerH = 60
	designColW    = 640
	designPanelH  = 300
	designStripH  = 120
)

// listPanelThreshold is the row count past which a panel renders as an
// auto-scrolling list instead of a bar chart.
const listPanelThreshold = 6

// defaultSeriesNames names the positional value columns of a panel row.
// The aggregate payload is positional; these mirror the upstream chart
// legends (actual value, target, indicator score).
var defaultSeriesNames = []string{"actual", "target", "indicator", "extra"}

// seriesNames returns per-column names sized to the widest row.
func seriesNames(rows []model.PanelRow) []string {
	width := 0
	for _, r := range rows {
		if len(r.Values) > width {
			width = len(r.Values)
		}
	}
	if width == 0 {
		width = 1
	}
	names := make([]string, width)
	for i := range names {
		if i < len(defaultSeriesNames) {
			names[i] = defaultSeriesNames[i]
		} else {
			names[i] = fmt.Sprintf("series %d", i+1)
		}
	}
	return names
}

// queryFromCategory derives a drill-down filter from a chart category:
// month categories ("1月" or a bare month number) filter by month,
// four-digit numbers by year, everything else is a location substring.
func queryFromCategory(category string) model.DrillDownQuery {
	trimmed := strings.TrimSuffix(strings.TrimSpace(category), "月")
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1000 {
			return model.DrillDownQuery{Year: trimmed}
		}
		return model.DrillDownQuery{Month: trimmed}
	}
	return model.DrillDownQuery{Location: strings.TrimSpace(category)}
}

// isListPanel reports whether a panel renders as an auto-scrolling list.
func (m Model) isListPanel(id model.PanelID, rows []model.PanelRow) bool {
	return len(rows) > listPanelThreshold
}

// formatListRows renders panel rows into fixed single-line list entries.
// Each entry must stay one terminal row tall; the carousel's reset math
// depends on the rendered list height matching the row count.
func formatListRows(rows []model.PanelRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		var b strings.Builder
		b.WriteString(padRight(truncate(r.Category, 16), 16))
		for _, v := range r.Values {
			b.WriteString("  ")
			b.WriteString(formatValue(v))
		}
		out[i] = b.String()
	}
	return out
}

// visiblePanels lists the panels the payload actually carries, in layout
// order. Pages legitimately omit panels; absent panels simply don't
// render and can't be selected.
func (m Model) visiblePanels() []model.PanelID {
	out := make([]model.PanelID, 0, len(model.KnownPanels))
	for _, id := range model.KnownPanels {
		if m.payload.Rows(id) != nil {
			out = append(out, id)
		}
	}
	return out
}

// layoutPanels recomputes each visible panel's rectangle in terminal
// cells from the current scale, for rendering and mouse hit-testing.
func (m *Model) layoutPanels() {
	m.canvasW = m.scale.Project(m.cfg.Design.Width)
	m.canvasH = m.scale.Project(m.cfg.Design.Height)
	if m.canvasW > m.width {
		m.canvasW = m.width
	}
	if m.canvasH > m.height {
		m.canvasH = m.height
	}
	offX, offY := m.scale.Letterbox(m.width, m.height)

	bannerH := m.scale.Project(designBannerH)
	panelW := m.scale.Project(designColW)
	panelH := m.scale.Project(designPanelH)
	stripH := m.scale.Project(designStripH)

	m.regions = m.regions[:0]
	columns := [][]model.PanelID{
		{model.PanelLeftTop, model.PanelLeftMiddle, model.PanelLeftBottom},
		{model.PanelCenterTop, model.PanelCenterMiddle},
		{model.PanelRightTop, model.PanelRightMiddle, model.PanelRightBottom},
	}

	if m.payload.Rows(model.PanelTop) != nil {
		m.regions = append(m.regions, panelRegion{
			ID: model.PanelTop, X: offX, Y: offY, W: m.canvasW, H: bannerH,
		})
	}
	for col, ids := range columns {
		y := offY + bannerH
		for _, id := range ids {
			if m.payload.Rows(id) == nil {
				continue
			}
			m.regions = append(m.regions, panelRegion{
				ID: id,
				X:  offX + col*panelW,
				Y:  y,
				W:  panelW,
				H:  panelH,
			})
			y += panelH
		}
	}
	if m.payload.Rows(model.PanelBottom) != nil {
		m.regions = append(m.regions, panelRegion{
			ID: model.PanelBottom,
			X:  offX, Y: offY + m.canvasH - stripH,
			W: m.canvasW, H: stripH,
		})
	}
}

// viewDashboard renders the scaled panel grid with the footer.
func (m Model) viewDashboard() string {
	if m.payloadErr != nil {
		msg := m.theme.ErrorText.Render("data source error: "+m.payloadErr.Error()) +
			"\n\n" + m.theme.MutedText.Render("r retry · q quit")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
	}
	if m.loading {
		msg := m.spinner.View() + " loading dashboard…"
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
	}

	panels := m.visiblePanels()
	if len(panels) == 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.theme.EmptyText.Render("no panel data"))
	}

	columns := [][]model.PanelID{
		{model.PanelLeftTop, model.PanelLeftMiddle, model.PanelLeftBottom},
		{model.PanelCenterTop, model.PanelCenterMiddle},
		{model.PanelRightTop, model.PanelRightMiddle, model.PanelRightBottom},
	}

	panelW := m.scale.Project(designColW)
	panelH := m.scale.Project(designPanelH)

	var header string
	if rows := m.payload.Rows(model.PanelTop); rows != nil {
		header = m.renderBanner(rows, m.canvasW)
	}

	rendered := make([]string, 0, 3)
	for _, ids := range columns {
		cells := make([]string, 0, len(ids))
		for _, id := range ids {
			rows := m.payload.Rows(id)
			if rows == nil {
				continue
			}
			cells = append(cells, m.renderPanel(id, rows, panelW, panelH))
		}
		if len(cells) > 0 {
			rendered = append(rendered, lipgloss.JoinVertical(lipgloss.Left, cells...))
		}
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	var strip string
	if rows := m.payload.Rows(model.PanelBottom); rows != nil {
		strip = m.renderPanel(model.PanelBottom, rows, m.canvasW, m.scale.Project(designStripH))
	}

	sections := make([]string, 0, 4)
	if header != "" {
		sections = append(sections, header)
	}
	sections = append(sections, body)
	if strip != "" {
		sections = append(sections, strip)
	}
	canvas := lipgloss.JoinVertical(lipgloss.Left, sections...)

	footer := m.renderFooter()
	placed := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, canvas)
	return placed + "\n" + footer
}

// renderBanner renders the full-width top panel as a single metric line.
func (m Model) renderBanner(rows []model.PanelRow, width int) string {
	parts := make([]string, 0, len(rows))
	for i, r := range rows {
		val := ""
		if len(r.Values) > 0 {
			val = formatValue(r.Values[0])
		}
		style := m.theme.Renderer.NewStyle().Foreground(m.theme.SeriesColor(i)).Bold(true)
		parts = append(parts, m.theme.SecondaryText.Render(r.Category+" ")+style.Render(val))
	}
	line := strings.Join(parts, m.theme.MutedText.Render("  │  "))
	return m.theme.Header.Width(width).Render(truncate(line, width))
}

// renderPanel renders one panel cell: scrolling list panels show the
// carousel window, chart panels show horizontal value bars.
func (m Model) renderPanel(id model.PanelID, rows []model.PanelRow, w, h int) string {
	innerW := w - 4 // panel border + padding
	innerH := h - 3 // border rows + title line
	if innerW < 8 {
		innerW = 8
	}
	if innerH < 1 {
		innerH = 1
	}

	selected := false
	if panels := m.visiblePanels(); m.selPanel < len(panels) && panels[m.selPanel] == id {
		selected = true
	}

	var body string
	if m.isListPanel(id, rows) {
		body = m.renderListBody(id, innerW, innerH)
	} else {
		body = m.renderChartBody(id, rows, innerW, innerH, selected)
	}

	title := m.theme.PanelTitle.Render(panelTitle(id))
	content := title + "\n" + body

	panel := m.theme.Panel
	if selected {
		panel = panel.BorderForeground(m.theme.Primary)
	}
	return panel.Width(w - 2).Height(h - 2).Render(content)
}

// renderListBody shows the carousel window for a list panel.
func (m Model) renderListBody(id model.PanelID, w, h int) string {
	window := m.carousel.Window(id, h)
	if len(window) == 0 {
		// Carousel not started (degenerate list); show the raw rows.
		window = formatListRows(m.payload.Rows(id))
		if len(window) > h {
			window = window[:h]
		}
	}
	lines := make([]string, len(window))
	for i, row := range window {
		lines[i] = truncate(row, w)
	}
	return strings.Join(lines, "\n")
}

// renderChartBody shows horizontal bars for the first series of each row
// with the remaining series as numbers, the row cursor highlighted.
func (m Model) renderChartBody(id model.PanelID, rows []model.PanelRow, w, h int, selected bool) string {
	maxVal := 0.0
	for _, r := range rows {
		if len(r.Values) > 0 && r.Values[0] > maxVal {
			maxVal = r.Values[0]
		}
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	labelW := 10
	barW := w - labelW - 10
	if barW < 4 {
		barW = 4
	}

	lines := make([]string, 0, len(rows)+1)
	for i, r := range rows {
		if i >= h {
			break
		}
		val := 0.0
		if len(r.Values) > 0 {
			val = r.Values[0]
		}
		filled := int(float64(barW) * val / maxVal)
		if filled > barW {
			filled = barW
		}
		barStyle := m.theme.Renderer.NewStyle().Foreground(m.theme.SeriesColor(0))
		bar := barStyle.Render(strings.Repeat("█", filled)) +
			m.theme.MutedText.Render(strings.Repeat("░", barW-filled))

		// With a target in the second column, grade the actual against
		// it: at target is good, 10% over is bad (PUE semantics, lower
		// is better).
		valText := formatValue(val)
		if len(r.Values) >= 2 && r.Values[1] > 0 {
			target := r.Values[1]
			c := m.theme.MetricColor(val, target, target*1.1)
			valText = m.theme.Renderer.NewStyle().Foreground(c).Render(valText)
		}

		label := padRight(truncate(r.Category, labelW), labelW)
		line := fmt.Sprintf("%s %s %s", label, bar, valText)
		if selected && i == m.selRow {
			line = m.theme.Selected.Render(line)
		}
		lines = append(lines, line)
	}

	// Trend footer when there's room below the bars.
	if len(rows) >= 2 && len(lines) < h {
		values := make([]float64, 0, len(rows))
		for _, r := range rows {
			if len(r.Values) > 0 {
				values = append(values, r.Values[0])
			}
		}
		tr := analysis.Fit(values)
		lines = append(lines, m.theme.MutedText.Render(
			fmt.Sprintf("%s avg %s", tr.Arrow(), formatValue(tr.Mean))))
	}
	return strings.Join(lines, "\n")
}

// panelTitle maps panel identifiers to display titles.
func panelTitle(id model.PanelID) string {
	switch id {
	case model.PanelTop:
		return "Overview"
	case model.PanelLeftTop:
		return "PUE Trend"
	case model.PanelLeftMiddle:
		return "Power Usage"
	case model.PanelLeftBottom:
		return "Cooling Load"
	case model.PanelCenterTop:
		return "Site Status"
	case model.PanelCenterMiddle:
		return "Capacity"
	case model.PanelRightTop:
		return "Alarms"
	case model.PanelRightMiddle:
		return "Work Orders"
	case model.PanelRightBottom:
		return "Inspections"
	case model.PanelBottom:
		return "Activity"
	default:
		return string(id)
	}
}

// renderFooter renders the one-line key help and status bar.
func (m Model) renderFooter() string {
	help := "↑↓←→ select · enter drill down · f filter · e export · r reload · q quit"
	left := m.theme.MutedText.Render(help)
	right := ""
	if m.statusMsg != "" {
		right = m.theme.SecondaryText.Render(m.statusMsg)
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return truncate(left, m.width)
	}
	return left + strings.Repeat(" ", gap) + right
}
