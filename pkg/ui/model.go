// Package ui implements the opsglass terminal dashboard: a fixed-design
// metrics canvas scaled to the live viewport, auto-scrolling list panels,
// and a drill-down overlay over the per-location work records behind each
// aggregate data point.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stellenberg/opsglass/internal/datasource"
	"github.com/stellenberg/opsglass/pkg/carousel"
	"github.com/stellenberg/opsglass/pkg/config"
	"github.com/stellenberg/opsglass/pkg/debug"
	"github.com/stellenberg/opsglass/pkg/export"
	"github.com/stellenberg/opsglass/pkg/metrics"
	"github.com/stellenberg/opsglass/pkg/model"
	"github.com/stellenberg/opsglass/pkg/scale"
	"github.com/stellenberg/opsglass/pkg/watcher"
)

// focusArea tracks which surface receives key input.
type focusArea int

const (
	focusDashboard focusArea = iota
	focusOverlay
	focusFilter
)

// PayloadMsg carries the aggregate payload (or the fetch error) back into
// the event loop.
type PayloadMsg struct {
	Payload model.AggregatePayload
	Err     error
}

// FileChangedMsg is sent when the fixture file changes on disk.
type FileChangedMsg struct{}

// ReadyTimeoutMsg is sent after a short delay to ensure the UI becomes
// ready even if the terminal doesn't send WindowSizeMsg promptly (common
// in tmux, SSH, some terminal emulators).
type ReadyTimeoutMsg struct{}

// resizeDebounceTickMsg fires after the resize quiescence window. The
// generation identifies which burst of resize events scheduled it; a
// stale generation means further resizes arrived and a newer tick is
// already in flight.
type resizeDebounceTickMsg struct {
	Gen uint64
}

// carouselTickMsg advances one list panel's scroll. The token must match
// the panel's live carousel timer or the tick is dropped without
// rescheduling.
type carouselTickMsg struct {
	ID    model.PanelID
	Token uint64
}

// panelRegion is a panel's rendered rectangle in terminal cells, used for
// mouse hit-testing.
type panelRegion struct {
	ID   model.PanelID
	X, Y int
	W, H int
}

// Model is the root bubbletea model for the dashboard.
type Model struct {
	theme  Theme
	cfg    config.Config
	source datasource.Source
	fw     *watcher.Watcher

	width  int
	height int
	ready  bool

	// Fixed-design scaling. Resize events are coalesced: each
	// WindowSizeMsg bumps resizeGen and schedules a debounce tick; only
	// the tick carrying the latest generation reapplies the scale.
	scale      *scale.State
	resizeGen  uint64
	pendingW   int
	pendingH   int
	canvasW    int
	canvasH    int
	regions    []panelRegion

	carousel *carousel.Engine
	tokens   map[model.PanelID]uint64

	payload    model.AggregatePayload
	payloadErr error
	loading    bool
	spinner    spinner.Model

	// Dashboard selection: which panel and which row within it.
	selPanel int
	selRow   int

	overlays []*DrillDownOverlay
	drillGen uint64

	filter *FilterModal

	focused   focusArea
	statusMsg string
	err       error
}

// Options configures NewModel.
type Options struct {
	Config config.Config
	Source datasource.Source
	// Watcher is optional; when set the model listens for fixture change
	// notifications and reloads the payload.
	Watcher *watcher.Watcher
}

// NewModel builds the root model. The source must be non-nil.
func NewModel(opts Options) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.PrimaryBold

	return Model{
		theme:    theme,
		cfg:      opts.Config,
		source:   opts.Source,
		fw:       opts.Watcher,
		scale:    scale.NewState(opts.Config.Design.Width, opts.Config.Design.Height),
		carousel: carousel.NewEngine(),
		tokens:   make(map[model.PanelID]uint64),
		spinner:  sp,
		loading:  true,
	}
}

// Init fetches the aggregate payload and arms the ready timeout.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		fetchPayloadCmd(m.source),
		m.spinner.Tick,
		readyTimeoutCmd(),
	}
	if m.fw != nil {
		cmds = append(cmds, watchFileCmd(m.fw))
	}
	return tea.Batch(cmds...)
}

// fetchPayloadCmd loads the aggregate payload off the event loop.
func fetchPayloadCmd(src datasource.Source) tea.Cmd {
	return func() tea.Msg {
		if src == nil {
			return PayloadMsg{Err: datasource.ErrNoSource}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		payload, err := src.FetchAggregate(ctx)
		return PayloadMsg{Payload: payload, Err: err}
	}
}

func readyTimeoutCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return ReadyTimeoutMsg{}
	})
}

// watchFileCmd waits for one fixture change notification.
func watchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// resizeDebounceCmd schedules the scale reapplication after the
// quiescence window.
func resizeDebounceCmd(gen uint64, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return resizeDebounceTickMsg{Gen: gen}
	})
}

// carouselTickCmd schedules one panel's next scroll step.
func carouselTickCmd(id model.PanelID, token uint64, interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return carouselTickMsg{ID: id, Token: token}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The filter form is handled before the type switch so it sees keys
	// and its own internal messages first. Timer and result messages
	// bypass it entirely: an open form must not stall carousel ticks,
	// a pending resize commit, or an in-flight query result.
	if m.focused == focusFilter && m.filter != nil {
		switch msg.(type) {
		case PayloadMsg, FileChangedMsg, ReadyTimeoutMsg,
			resizeDebounceTickMsg, carouselTickMsg,
			DrillDownResultMsg, statusMsgMsg, spinner.TickMsg:
			// fall through to the main switch

		default:
			done, query, cmd := m.filter.Update(msg)
			cmds = append(cmds, cmd)
			if done {
				m.filter = nil
				if len(m.overlays) > 0 {
					m.focused = focusOverlay
				} else {
					m.focused = focusDashboard
				}
				if query != nil {
					cmds = append(cmds, m.openDrillDown(*query))
				}
				return m, tea.Batch(cmds...)
			}
			// Resize still has to reach the main sizing path below.
			if _, isResize := msg.(tea.WindowSizeMsg); !isResize {
				return m, tea.Batch(cmds...)
			}
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.pendingW = msg.Width
		m.pendingH = msg.Height
		m.ready = true
		// First size applies immediately so startup doesn't show a
		// letterboxed guess; later sizes are coalesced.
		if m.width == 0 {
			m.width = msg.Width
			m.height = msg.Height
			m.applyScale()
			return m, tea.Batch(cmds...)
		}
		m.resizeGen++
		cmds = append(cmds, resizeDebounceCmd(m.resizeGen, m.cfg.UI.ResizeDebounce()))
		return m, tea.Batch(cmds...)

	case resizeDebounceTickMsg:
		// Only the newest burst's tick wins; earlier ticks are stale.
		if msg.Gen != m.resizeGen {
			return m, nil
		}
		m.width = m.pendingW
		m.height = m.pendingH
		m.applyScale()
		return m, nil

	case ReadyTimeoutMsg:
		if !m.ready {
			m.ready = true
			m.width = 80
			m.height = 24
			m.applyScale()
		}
		return m, nil

	case PayloadMsg:
		m.loading = false
		if msg.Err != nil {
			m.payloadErr = msg.Err
			debug.Log("payload fetch failed: %v", msg.Err)
			return m, nil
		}
		m.payloadErr = nil
		m.payload = msg.Payload
		m.clampSelection()
		m.layoutPanels()
		return m, m.startCarousels()

	case FileChangedMsg:
		debug.Log("fixture changed, reloading payload")
		m.statusMsg = "reloading…"
		cmds = append(cmds, fetchPayloadCmd(m.source))
		if m.fw != nil {
			cmds = append(cmds, watchFileCmd(m.fw))
		}
		return m, tea.Batch(cmds...)

	case carouselTickMsg:
		res, ok := m.carousel.Tick(msg.ID, msg.Token, m.loopHeight(msg.ID))
		if !ok {
			// Stale token: a newer timer owns this panel now.
			return m, nil
		}
		p := m.carousel.Panel(msg.ID)
		interval := p.StepInterval
		if res.Instant {
			// The snap must land before the next eased step renders.
			interval = 10 * time.Millisecond
		}
		return m, carouselTickCmd(msg.ID, msg.Token, interval)

	case DrillDownResultMsg:
		return m.handleDrillDownResult(msg)

	case statusMsgMsg:
		m.statusMsg = msg.text
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading || m.anyOverlayLoading() {
			return m, cmd
		}
		return m, nil
	}

	return m, tea.Batch(cmds...)
}

// applyScale recomputes the scale factor from the committed viewport and
// rebuilds the panel layout regions.
func (m *Model) applyScale() {
	s := m.scale.Apply(m.width, m.height)
	debug.Log("scale applied: %dx%d -> %.4f", m.width, m.height, s)
	m.layoutPanels()
	for _, ov := range m.overlays {
		ov.SetSize(m.width, m.height)
	}
	if m.filter != nil {
		m.filter.SetSize(m.width, m.height)
	}
}

// startCarousels (re)starts the scroll timer for every list panel in the
// payload. Panels that stopped being list panels keep their last offset
// but get no new timer.
func (m *Model) startCarousels() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range model.KnownPanels {
		rows := m.payload.Rows(id)
		if rows == nil || !m.isListPanel(id, rows) {
			m.carousel.Stop(id)
			continue
		}
		pc := m.cfg.Panel(string(id))
		token := m.carousel.Start(id, formatListRows(rows), pc.StepDistance, pc.Interval(), pc.Transition())
		m.tokens[id] = token
		p := m.carousel.Panel(id)
		cmds = append(cmds, carouselTickCmd(id, token, p.StepInterval))
	}
	return tea.Batch(cmds...)
}

// loopHeight measures the realized height of a panel's rendered loop
// list. Row content is truncated to the panel width before rendering, so
// each loop row occupies exactly one terminal row; measuring the joined
// render keeps the reset math honest if that ever changes.
func (m Model) loopHeight(id model.PanelID) int {
	p := m.carousel.Panel(id)
	if p == nil || len(p.LoopRows) == 0 {
		return 0
	}
	return lipgloss.Height(strings.Join(p.LoopRows, "\n"))
}

func (m Model) anyOverlayLoading() bool {
	for _, ov := range m.overlays {
		if ov.Loading() {
			return true
		}
	}
	return false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys work from any focus.
	switch key {
	case "ctrl+c":
		m.teardown()
		return m, tea.Quit
	}

	switch m.focused {
	case focusOverlay:
		return m.handleOverlayKeys(msg)
	case focusDashboard:
		return m.handleDashboardKeys(msg)
	}
	return m, nil
}

func (m Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.teardown()
		return m, tea.Quit

	case "r":
		m.loading = true
		m.statusMsg = "reloading…"
		return m, tea.Batch(fetchPayloadCmd(m.source), m.spinner.Tick)

	case "tab", "right", "l":
		m.moveSelection(1, 0)
		return m, nil

	case "shift+tab", "left", "h":
		m.moveSelection(-1, 0)
		return m, nil

	case "down", "j":
		m.moveSelection(0, 1)
		return m, nil

	case "up", "k":
		m.moveSelection(0, -1)
		return m, nil

	case "enter":
		if q, ok := m.queryForSelection(); ok {
			return m, m.openDrillDown(q)
		}
		return m, nil

	case "f":
		f := NewFilterModal(m.theme)
		f.SetSize(m.width, m.height)
		m.filter = &f
		m.focused = focusFilter
		return m, f.Init()

	case "e":
		return m, m.exportSelectedPanel()
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.cfg.UI.MouseEnabled != nil && !*m.cfg.UI.MouseEnabled {
		return m, nil
	}
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	if m.focused != focusDashboard {
		return m, nil
	}
	for i, region := range m.regions {
		if msg.X >= region.X && msg.X < region.X+region.W &&
			msg.Y >= region.Y && msg.Y < region.Y+region.H {
			m.selPanel = i
			m.selRow = 0
			if q, ok := m.queryForSelection(); ok {
				return m, m.openDrillDown(q)
			}
			return m, nil
		}
	}
	return m, nil
}

// moveSelection shifts the panel/row cursor, clamping to what the payload
// actually carries.
func (m *Model) moveSelection(dPanel, dRow int) {
	panels := m.visiblePanels()
	if len(panels) == 0 {
		return
	}
	if dPanel != 0 {
		m.selPanel = (m.selPanel + dPanel + len(panels)) % len(panels)
		m.selRow = 0
		return
	}
	rows := m.payload.Rows(panels[m.selPanel])
	if len(rows) == 0 {
		return
	}
	m.selRow += dRow
	if m.selRow < 0 {
		m.selRow = 0
	}
	if m.selRow >= len(rows) {
		m.selRow = len(rows) - 1
	}
}

func (m *Model) clampSelection() {
	panels := m.visiblePanels()
	if m.selPanel >= len(panels) {
		m.selPanel = 0
	}
	m.selRow = 0
}

// queryForSelection derives a drill-down query from the selected chart
// data point.
func (m Model) queryForSelection() (model.DrillDownQuery, bool) {
	panels := m.visiblePanels()
	if m.selPanel >= len(panels) {
		return model.DrillDownQuery{}, false
	}
	rows := m.payload.Rows(panels[m.selPanel])
	if m.selRow >= len(rows) {
		return model.DrillDownQuery{}, false
	}
	return queryFromCategory(rows[m.selRow].Category), true
}

// exportSelectedPanel writes an SVG snapshot of the selected panel's
// chart to the data directory.
func (m Model) exportSelectedPanel() tea.Cmd {
	panels := m.visiblePanels()
	if m.selPanel >= len(panels) {
		return nil
	}
	id := panels[m.selPanel]
	rows := m.payload.Rows(id)
	if len(rows) == 0 {
		return nil
	}
	series := seriesNames(rows)
	path := filepath.Join(config.DataDir(), "exports",
		fmt.Sprintf("%s-%s.svg", id, time.Now().Format("20060102-150405")))

	return func() tea.Msg {
		err := export.SaveChartSnapshot(export.ChartSnapshotOptions{
			Path:    path,
			Title:   fmt.Sprintf("opsglass %s", id),
			PanelID: id,
			Rows:    rows,
			Series:  series,
			TrendOf: series[0],
		})
		if err != nil {
			return statusMsgMsg{text: fmt.Sprintf("export failed: %v", err)}
		}
		return statusMsgMsg{text: "exported " + path}
	}
}

// statusMsgMsg sets the footer status line.
type statusMsgMsg struct{ text string }

func (m Model) handleOverlayKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.overlays) == 0 {
		m.focused = focusDashboard
		return m, nil
	}
	top := m.overlays[len(m.overlays)-1]

	switch msg.String() {
	case "q", "esc":
		// Close topmost only; the overlay underneath resumes untouched.
		m.overlays = m.overlays[:len(m.overlays)-1]
		if len(m.overlays) == 0 {
			m.focused = focusDashboard
		}
		return m, nil

	case "enter", "d":
		if rec, ok := top.SelectedRecord(); ok {
			nested := NewDrillDownOverlay(m.theme, top.Query())
			nested.SetSize(m.width, m.height)
			nested.ShowRecord(rec)
			m.overlays = append(m.overlays, &nested)
		}
		return m, nil

	case "f":
		f := NewFilterModal(m.theme)
		f.Prefill(top.Query())
		f.SetSize(m.width, m.height)
		m.filter = &f
		m.focused = focusFilter
		return m, f.Init()

	case "c":
		if rec, ok := top.SelectedRecord(); ok {
			if err := clipboard.WriteAll(recordText(rec)); err != nil {
				m.statusMsg = "clipboard unavailable"
			} else {
				m.statusMsg = "record copied"
			}
		}
		return m, nil

	case "r":
		if top.Err() != nil {
			// Retry replaces the failed layer with a fresh query.
			q := top.Query()
			m.overlays = m.overlays[:len(m.overlays)-1]
			return m, m.openDrillDown(q)
		}
	}

	var cmd tea.Cmd
	*top, cmd = top.UpdateKeys(msg)
	return m, cmd
}

// teardown releases resources on the way out.
func (m *Model) teardown() {
	if m.fw != nil {
		m.fw.Stop()
	}
	if m.source != nil {
		m.source.Close()
	}
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()
	if !m.ready {
		return "\n  Initializing…"
	}

	// Modal priority: filter form, then topmost overlay, then dashboard.
	if m.focused == focusFilter && m.filter != nil {
		return m.filter.View()
	}
	if len(m.overlays) > 0 {
		return m.overlays[len(m.overlays)-1].View()
	}
	return m.viewDashboard()
}
