// Package carousel drives the continuous vertical scrolling of dashboard
// list panels. Each panel owns an independent state bucket and an
// independent timer; the engine itself is pure state — scheduling is the
// caller's job (in the TUI, a tea.Tick per panel), which keeps every
// timing edge case unit-testable without sleeping.
//
// The looping illusion comes from rendering the source rows replicated
// four times and snapping the scroll offset back to zero once it has
// traversed past the midpoint of the replicated list. One copy would show
// blank space at the wrap point, two is marginal; four leaves margin for
// panels taller than one row-set.
package carousel

import (
	"time"

	"github.com/stellenberg/opsglass/pkg/model"
)

// LoopCopies is the replication factor for the scrolled row list.
const LoopCopies = 4

// Default timing, overridable per panel via Start.
const (
	DefaultStepDistance = 1
	DefaultStepInterval = 2 * time.Second
	DefaultTransition   = 500 * time.Millisecond
)

// PanelState is the per-panel scroll state. Fields are exported for
// rendering and tests; mutation goes through the Engine so the
// one-timer-per-panel invariant holds.
type PanelState struct {
	SourceRows []string // fixed row content for this panel
	LoopRows   []string // SourceRows replicated LoopCopies times

	OffsetIndex  int           // monotonically increasing until reset
	StepDistance int           // rows of travel per offset unit
	StepInterval time.Duration // tick cadence
	Transition   time.Duration // eased scroll duration for a normal tick

	// InstantTick is true for exactly the tick that snapped the offset
	// back to zero: the renderer must not ease that movement or the loop
	// seam becomes visible. The next tick clears it.
	InstantTick bool

	generation uint64 // active timer token; 0 when stopped
}

// Traveled returns the current scroll translation in rows.
func (p *PanelState) Traveled() int {
	return p.OffsetIndex * p.StepDistance
}

// Active reports whether the panel has a live timer.
func (p *PanelState) Active() bool { return p.generation != 0 }

// TickResult describes what the renderer should do after one tick.
type TickResult struct {
	Traveled int  // translation to apply, in rows
	Instant  bool // suppress the eased transition for this tick only
}

// Engine owns every panel's carousel state, addressed by panel identifier.
// Not safe for concurrent use; the TUI event loop serializes all access.
type Engine struct {
	panels  map[model.PanelID]*PanelState
	nextGen uint64
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{panels: make(map[model.PanelID]*PanelState)}
}

// Start (re)initializes the carousel for a panel and returns the timer
// token the caller must present on every subsequent Tick. If a timer is
// already active for the panel it is cancelled first: its token becomes
// stale and any tick still in flight for it is dropped. Other panels are
// untouched.
func (e *Engine) Start(id model.PanelID, rows []string, distance int, interval, transition time.Duration) uint64 {
	if distance <= 0 {
		distance = DefaultStepDistance
	}
	if interval <= 0 {
		interval = DefaultStepInterval
	}
	if transition <= 0 {
		transition = DefaultTransition
	}

	loop := make([]string, 0, len(rows)*LoopCopies)
	for i := 0; i < LoopCopies; i++ {
		loop = append(loop, rows...)
	}

	e.nextGen++
	e.panels[id] = &PanelState{
		SourceRows:   rows,
		LoopRows:     loop,
		StepDistance: distance,
		StepInterval: interval,
		Transition:   transition,
		generation:   e.nextGen,
	}
	return e.nextGen
}

// Stop cancels the panel's timer if one is active. The visual offset is
// left as-is; a later Start resets it.
func (e *Engine) Stop(id model.PanelID) {
	if p, ok := e.panels[id]; ok {
		p.generation = 0
	}
}

// Panel returns the state bucket for a panel, or nil if Start has never
// run for it.
func (e *Engine) Panel(id model.PanelID) *PanelState {
	return e.panels[id]
}

// Tick advances one panel by one step. The token must match the panel's
// live timer; stale tokens (from a timer superseded by Start or cancelled
// by Stop) return ok=false and the caller must not reschedule.
//
// renderedHeight is the realized row count of the rendered loop list,
// measured from live output rather than computed, because row content may
// wrap. The offset snaps back to zero once the travel passes the midpoint
// of the replicated list plus one step, which is always reached before
// the list's rendered extent — no blank frame is ever shown.
func (e *Engine) Tick(id model.PanelID, token uint64, renderedHeight int) (TickResult, bool) {
	p, ok := e.panels[id]
	if !ok || token == 0 || p.generation != token {
		return TickResult{}, false
	}

	// Degenerate lists never move: a single row (or none) has nothing to
	// scroll past, and the reset math needs no special casing for it.
	if len(p.SourceRows) <= 1 {
		p.InstantTick = false
		return TickResult{Traveled: 0}, true
	}

	traveled := p.Traveled()
	if renderedHeight > 0 && traveled >= renderedHeight/2+p.StepDistance {
		p.OffsetIndex = 0
		p.InstantTick = true
	} else {
		p.OffsetIndex++
		p.InstantTick = false
	}
	return TickResult{Traveled: p.Traveled(), Instant: p.InstantTick}, true
}

// Window returns the count rows of the loop list visible at the current
// offset, clamped to the list's end. Rendering layers call this each
// frame; the replication factor guarantees the window is backed by real
// rows on both sides of the wrap point.
func (e *Engine) Window(id model.PanelID, count int) []string {
	p, ok := e.panels[id]
	if !ok || count <= 0 || len(p.LoopRows) == 0 {
		return nil
	}
	start := p.Traveled()
	if start >= len(p.LoopRows) {
		start = len(p.LoopRows) - 1
	}
	end := start + count
	if end > len(p.LoopRows) {
		end = len(p.LoopRows)
	}
	return p.LoopRows[start:end]
}
