package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/stellenberg/opsglass/internal/datasource"
	"github.com/stellenberg/opsglass/pkg/debug"
	"github.com/stellenberg/opsglass/pkg/model"
)

// DrillDownResultMsg carries one completed drill-down query back into the
// event loop. Gen identifies which request issued it; results from
// superseded requests are dropped so the overlay always shows the answer
// to the user's latest click, never an earlier slow response landing late.
type DrillDownResultMsg struct {
	Gen    uint64
	Query  model.DrillDownQuery
	Result model.DrillDownResult
	Err    error
}

// queryDrillDownCmd runs one drill-down query off the event loop.
func queryDrillDownCmd(src datasource.Source, q model.DrillDownQuery, gen uint64) tea.Cmd {
	return func() tea.Msg {
		if src == nil {
			return DrillDownResultMsg{Gen: gen, Query: q, Err: datasource.ErrNoSource}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		started := time.Now()
		result, err := src.QueryDrillDown(ctx, q)
		debug.LogTiming("drill-down "+q.String(), time.Since(started))
		return DrillDownResultMsg{Gen: gen, Query: q, Result: result, Err: err}
	}
}

// openDrillDown opens a loading overlay and issues the query under a
// fresh generation, superseding any request still in flight. Only the
// record-detail layer ever stacks; a new list query replaces the whole
// drill-down stack, so a superseded query can't leave an orphaned layer
// stuck loading underneath the new one.
func (m *Model) openDrillDown(q model.DrillDownQuery) tea.Cmd {
	m.drillGen++
	ov := NewDrillDownOverlay(m.theme, q)
	ov.SetSize(m.width, m.height)
	ov.gen = m.drillGen
	m.overlays = []*DrillDownOverlay{&ov}
	m.focused = focusOverlay
	m.statusMsg = ""
	return tea.Batch(queryDrillDownCmd(m.source, q, m.drillGen), m.spinner.Tick)
}

// handleDrillDownResult applies a completed query to its overlay, or
// drops it when a newer request has superseded it.
func (m Model) handleDrillDownResult(msg DrillDownResultMsg) (tea.Model, tea.Cmd) {
	if msg.Gen != m.drillGen {
		debug.Log("dropping stale drill-down result gen=%d (latest %d)", msg.Gen, m.drillGen)
		return m, nil
	}
	for i := len(m.overlays) - 1; i >= 0; i-- {
		if m.overlays[i].gen == msg.Gen {
			m.overlays[i].Apply(msg)
			break
		}
	}
	return m, nil
}

// overlayState is the drill-down overlay's display state.
type overlayState int

const (
	overlayLoading overlayState = iota
	overlayError
	overlayEmpty
	overlayList
	overlayDetail
)

// DrillDownOverlay is one layer of the drill-down stack: either a record
// list for a query, or a single record's detail. Layers stack —
// inspecting a record from a list pushes a detail layer, and closing it
// resumes the list exactly where it was.
type DrillDownOverlay struct {
	theme  Theme
	query  model.DrillDownQuery
	state  overlayState
	result model.DrillDownResult
	err    error

	selected int
	vp       viewport.Model

	detail model.WorkRecord
	md     string

	width  int
	height int
	gen    uint64
}

// NewDrillDownOverlay returns a loading overlay for the query.
func NewDrillDownOverlay(theme Theme, q model.DrillDownQuery) DrillDownOverlay {
	return DrillDownOverlay{
		theme: theme,
		query: q,
		state: overlayLoading,
		vp:    viewport.New(60, 20),
	}
}

// Query returns the filter this overlay answers.
func (o *DrillDownOverlay) Query() model.DrillDownQuery { return o.query }

// Loading reports whether the overlay is awaiting its query.
func (o *DrillDownOverlay) Loading() bool { return o.state == overlayLoading }

// Err returns the query error, if the overlay is in the error state.
func (o *DrillDownOverlay) Err() error { return o.err }

// Result returns the applied query result.
func (o *DrillDownOverlay) Result() model.DrillDownResult { return o.result }

// SetSize resizes the overlay to the viewport.
func (o *DrillDownOverlay) SetSize(w, h int) {
	o.width = w
	o.height = h
	innerW := w - 12
	if innerW < 40 {
		innerW = 40
	}
	innerH := h - 10
	if innerH < 5 {
		innerH = 5
	}
	o.vp.Width = innerW
	o.vp.Height = innerH
	o.refreshContent()
}

// Apply installs a completed query result, moving the overlay out of the
// loading state.
func (o *DrillDownOverlay) Apply(msg DrillDownResultMsg) {
	o.err = msg.Err
	switch {
	case msg.Err != nil:
		o.state = overlayError
	case msg.Result.Empty():
		o.state = overlayEmpty
	default:
		o.state = overlayList
		o.result = msg.Result
		o.selected = 0
	}
	o.refreshContent()
}

// ShowRecord switches the overlay to single-record detail.
func (o *DrillDownOverlay) ShowRecord(rec model.WorkRecord) {
	o.state = overlayDetail
	o.detail = rec
	o.md = renderRecordMarkdown(rec, o.vp.Width)
	o.refreshContent()
}

// SelectedRecord returns the record under the cursor in the list state,
// or the shown record in the detail state.
func (o *DrillDownOverlay) SelectedRecord() (model.WorkRecord, bool) {
	switch o.state {
	case overlayList:
		if o.selected < len(o.result.Records) {
			return o.result.Records[o.selected], true
		}
	case overlayDetail:
		return o.detail, true
	}
	return model.WorkRecord{}, false
}

// UpdateKeys handles navigation inside the overlay.
func (o DrillDownOverlay) UpdateKeys(msg tea.KeyMsg) (DrillDownOverlay, tea.Cmd) {
	switch msg.String() {
	case "down", "j":
		if o.state == overlayList && o.selected < len(o.result.Records)-1 {
			o.selected++
			o.refreshContent()
			return o, nil
		}
	case "up", "k":
		if o.state == overlayList && o.selected > 0 {
			o.selected--
			o.refreshContent()
			return o, nil
		}
	case "g", "home":
		if o.state == overlayList {
			o.selected = 0
			o.refreshContent()
			return o, nil
		}
		o.vp.GotoTop()
		return o, nil
	case "G", "end":
		if o.state == overlayList && len(o.result.Records) > 0 {
			o.selected = len(o.result.Records) - 1
			o.refreshContent()
			return o, nil
		}
		o.vp.GotoBottom()
		return o, nil
	}

	var cmd tea.Cmd
	o.vp, cmd = o.vp.Update(msg)
	return o, cmd
}

// refreshContent rebuilds the viewport content for the current state and
// keeps the cursor visible.
func (o *DrillDownOverlay) refreshContent() {
	switch o.state {
	case overlayList:
		o.vp.SetContent(o.renderList())
		// Keep the selected row inside the viewport window.
		if o.selected < o.vp.YOffset {
			o.vp.SetYOffset(o.selected)
		} else if o.selected >= o.vp.YOffset+o.vp.Height {
			o.vp.SetYOffset(o.selected - o.vp.Height + 1)
		}
	case overlayDetail:
		o.vp.SetContent(o.md)
		o.vp.GotoTop()
	}
}

// renderList renders one line per record.
func (o *DrillDownOverlay) renderList() string {
	lines := make([]string, 0, len(o.result.Records))
	for i, rec := range o.result.Records {
		line := fmt.Sprintf("%s %s %s %s %s",
			padRight(truncate(rec.SequenceNo, 5), 5),
			padRight(truncate(rec.Location, 20), 20),
			padRight(truncate(rec.WorkType, 12), 12),
			padRight(truncate(rec.ExecutionStatus, 10), 10),
			truncate(rec.Executor, 10),
		)
		line = truncate(line, o.vp.Width-2)
		if i == o.selected {
			line = o.theme.Selected.Render(line)
		} else {
			line = " " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// View renders the overlay centered over a blank backdrop.
func (o *DrillDownOverlay) View() string {
	var title string
	switch o.state {
	case overlayDetail:
		title = fmt.Sprintf("Record %s — %s", o.detail.SequenceNo, o.detail.Location)
	default:
		title = "Drill-down: " + o.query.String()
	}

	var body string
	switch o.state {
	case overlayLoading:
		body = o.theme.MutedText.Render("loading records…")
	case overlayError:
		body = o.theme.ErrorText.Render("query failed") + "\n\n" +
			o.theme.MutedText.Render(o.err.Error()) + "\n\n" +
			o.theme.MutedText.Render("r retry · esc close")
	case overlayEmpty:
		body = o.theme.EmptyText.Render("no records match "+o.query.String()) + "\n\n" +
			o.theme.MutedText.Render("f adjust filter · esc close")
	case overlayList:
		header := o.theme.SecondaryText.Render(
			fmt.Sprintf(" %s %s %s %s %s",
				padRight("seq", 5), padRight("location", 20),
				padRight("type", 12), padRight("status", 10), "executor"))
		count := o.theme.MutedText.Render(
			fmt.Sprintf("%d of %d records", len(o.result.Records), o.result.Total))
		body = header + "\n" + o.vp.View() + "\n" + count
	case overlayDetail:
		body = o.vp.View()
	}

	help := "enter detail · c copy · f filter · esc close"
	if o.state == overlayDetail {
		help = "c copy · esc back"
	}

	content := o.theme.PrimaryBold.Render(title) + "\n\n" + body + "\n\n" +
		o.theme.MutedText.Render(help)

	box := o.theme.OverlayBox.
		MaxWidth(o.width - 4).
		Render(content)

	return lipgloss.Place(o.width, o.height, lipgloss.Center, lipgloss.Center, box)
}

// renderRecordMarkdown renders one work record as glamour markdown for
// the detail layer, falling back to plain text when the renderer cannot
// be constructed (unusual terminals).
func renderRecordMarkdown(rec model.WorkRecord, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Work record %s\n\n", rec.SequenceNo)
	for _, f := range rec.Fields() {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(&b, "**%s:** %s\n\n", f.Label, f.Value)
	}

	if width < 20 {
		width = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return recordText(rec)
	}
	out, err := renderer.Render(b.String())
	if err != nil {
		return recordText(rec)
	}
	return out
}

// recordText renders a record as plain "label: value" lines, used for
// clipboard copies and as the markdown fallback.
func recordText(rec model.WorkRecord) string {
	var b strings.Builder
	for _, f := range rec.Fields() {
		if f.Value == "" {
			continue
		}
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	return b.String()
}
