package carousel

import (
	"fmt"
	"testing"
	"time"

	"github.com/stellenberg/opsglass/pkg/model"
)

func testRows(n int) []string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf("row %d", i)
	}
	return rows
}

func TestStartBuildsQuadruplicatedLoop(t *testing.T) {
	e := NewEngine()
	rows := testRows(5)
	e.Start(model.PanelLeftTop, rows, 1, time.Second, 500*time.Millisecond)

	p := e.Panel(model.PanelLeftTop)
	if p == nil {
		t.Fatal("panel state missing after Start")
	}
	if len(p.LoopRows) != len(rows)*LoopCopies {
		t.Fatalf("loop rows = %d, want %d", len(p.LoopRows), len(rows)*LoopCopies)
	}
	if p.OffsetIndex != 0 {
		t.Errorf("offset = %d, want 0", p.OffsetIndex)
	}
	if !p.Active() {
		t.Error("panel should have an active timer after Start")
	}
	// Replication preserves content and order.
	for i, row := range p.LoopRows {
		if row != rows[i%len(rows)] {
			t.Fatalf("loop row %d = %q, want %q", i, row, rows[i%len(rows)])
		}
	}
}

func TestRestartCancelsPreviousTimer(t *testing.T) {
	e := NewEngine()
	gen1 := e.Start(model.PanelLeftTop, testRows(5), 1, time.Second, time.Second)
	gen2 := e.Start(model.PanelLeftTop, testRows(3), 1, time.Second, time.Second)

	if gen1 == gen2 {
		t.Fatal("restart must issue a fresh timer token")
	}
	if _, ok := e.Tick(model.PanelLeftTop, gen1, 100); ok {
		t.Error("tick with superseded token must be dropped")
	}
	if _, ok := e.Tick(model.PanelLeftTop, gen2, 100); !ok {
		t.Error("tick with live token must advance")
	}
}

func TestTickAdvancesAndResetsAtMidpoint(t *testing.T) {
	e := NewEngine()
	rows := testRows(10)
	gen := e.Start(model.PanelLeftTop, rows, 1, time.Second, time.Second)

	// 40 loop rows rendered at one line each.
	renderedHeight := len(rows) * LoopCopies
	resetAt := renderedHeight/2 + 1 // distance 1

	var sawInstant bool
	prevTraveled := 0
	for i := 0; i < resetAt*2; i++ {
		res, ok := e.Tick(model.PanelLeftTop, gen, renderedHeight)
		if !ok {
			t.Fatal("tick rejected for live token")
		}
		if res.Instant {
			sawInstant = true
			if res.Traveled != 0 {
				t.Fatalf("reset tick traveled %d, want 0", res.Traveled)
			}
			if prevTraveled < resetAt {
				t.Fatalf("reset fired at traveled=%d, before threshold %d", prevTraveled, resetAt)
			}
			// The following tick must ease again.
			next, _ := e.Tick(model.PanelLeftTop, gen, renderedHeight)
			if next.Instant {
				t.Fatal("tick after reset must restore eased transition")
			}
			if next.Traveled != 1 {
				t.Fatalf("tick after reset traveled %d, want 1", next.Traveled)
			}
			return
		}
		if res.Traveled >= renderedHeight {
			t.Fatalf("traveled %d reached rendered extent %d without reset (blank frame)", res.Traveled, renderedHeight)
		}
		prevTraveled = res.Traveled
	}
	if !sawInstant {
		t.Fatal("carousel never reset")
	}
}

func TestTickResetWithLargerStepDistance(t *testing.T) {
	e := NewEngine()
	rows := testRows(6)
	distance := 3
	gen := e.Start(model.PanelRightTop, rows, distance, time.Second, time.Second)

	renderedHeight := len(rows) * LoopCopies // 24
	threshold := renderedHeight/2 + distance // 15

	for i := 0; i < 50; i++ {
		res, ok := e.Tick(model.PanelRightTop, gen, renderedHeight)
		if !ok {
			t.Fatal("tick rejected")
		}
		if res.Instant {
			if res.Traveled != 0 {
				t.Fatalf("reset tick traveled %d", res.Traveled)
			}
			return
		}
		if res.Traveled >= renderedHeight {
			t.Fatalf("traveled %d exceeded rendered extent before reset (threshold %d)", res.Traveled, threshold)
		}
	}
	t.Fatal("carousel never reset")
}

func TestPanelsAreIndependent(t *testing.T) {
	e := NewEngine()
	genA := e.Start(model.PanelLeftTop, testRows(5), 1, time.Second, time.Second)
	e.Tick(model.PanelLeftTop, genA, 20)
	e.Tick(model.PanelLeftTop, genA, 20)

	// Starting B must not cancel or alter A.
	genB := e.Start(model.PanelRightTop, testRows(4), 1, time.Second, time.Second)

	a := e.Panel(model.PanelLeftTop)
	if a.OffsetIndex != 2 {
		t.Errorf("panel A offset = %d after starting B, want 2", a.OffsetIndex)
	}
	if _, ok := e.Tick(model.PanelLeftTop, genA, 20); !ok {
		t.Error("panel A timer cancelled by starting panel B")
	}
	if _, ok := e.Tick(model.PanelRightTop, genB, 16); !ok {
		t.Error("panel B timer not live")
	}
}

func TestStopLeavesOffsetInPlace(t *testing.T) {
	e := NewEngine()
	gen := e.Start(model.PanelBottom, testRows(5), 1, time.Second, time.Second)
	e.Tick(model.PanelBottom, gen, 20)
	e.Tick(model.PanelBottom, gen, 20)

	e.Stop(model.PanelBottom)

	p := e.Panel(model.PanelBottom)
	if p.OffsetIndex != 2 {
		t.Errorf("offset after stop = %d, want 2 (no reset on stop)", p.OffsetIndex)
	}
	if p.Active() {
		t.Error("panel still reports an active timer after Stop")
	}
	if _, ok := e.Tick(model.PanelBottom, gen, 20); ok {
		t.Error("tick after Stop must be dropped")
	}
	// Stopping an unknown panel is a no-op.
	e.Stop(model.PanelID("never-started"))
}

func TestDegenerateRowLists(t *testing.T) {
	e := NewEngine()

	genEmpty := e.Start(model.PanelLeftMiddle, nil, 1, time.Second, time.Second)
	res, ok := e.Tick(model.PanelLeftMiddle, genEmpty, 0)
	if !ok || res.Traveled != 0 || res.Instant {
		t.Errorf("empty list tick = %+v ok=%v, want no motion", res, ok)
	}

	genOne := e.Start(model.PanelRightMiddle, testRows(1), 1, time.Second, time.Second)
	for i := 0; i < 10; i++ {
		res, ok := e.Tick(model.PanelRightMiddle, genOne, 4)
		if !ok || res.Traveled != 0 {
			t.Fatalf("single-row list moved: %+v ok=%v", res, ok)
		}
	}
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	e := NewEngine()
	e.Start(model.PanelTop, testRows(3), 0, 0, 0)
	p := e.Panel(model.PanelTop)
	if p.StepDistance != DefaultStepDistance {
		t.Errorf("distance = %d, want default %d", p.StepDistance, DefaultStepDistance)
	}
	if p.StepInterval != DefaultStepInterval {
		t.Errorf("interval = %v, want default %v", p.StepInterval, DefaultStepInterval)
	}
	if p.Transition != DefaultTransition {
		t.Errorf("transition = %v, want default %v", p.Transition, DefaultTransition)
	}
}

func TestWindow(t *testing.T) {
	e := NewEngine()
	rows := testRows(5)
	gen := e.Start(model.PanelLeftTop, rows, 1, time.Second, time.Second)

	win := e.Window(model.PanelLeftTop, 3)
	if len(win) != 3 || win[0] != "row 0" {
		t.Fatalf("window at offset 0 = %v", win)
	}

	e.Tick(model.PanelLeftTop, gen, 20)
	win = e.Window(model.PanelLeftTop, 3)
	if len(win) != 3 || win[0] != "row 1" {
		t.Fatalf("window after one tick = %v", win)
	}

	if win := e.Window(model.PanelLeftTop, 0); win != nil {
		t.Errorf("zero-count window = %v", win)
	}
	if win := e.Window(model.PanelID("missing"), 3); win != nil {
		t.Errorf("window for unknown panel = %v", win)
	}
}
