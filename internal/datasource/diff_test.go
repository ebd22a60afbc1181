package datasource

import (
	"strings"
	"testing"

	"github.com/stellenberg/opsglass/pkg/model"
)

func diffPayload(rows ...model.PanelRow) model.AggregatePayload {
	return model.AggregatePayload{model.PanelLeftTop: rows}
}

func TestDiffPayloads_NoChanges(t *testing.T) {
	p := diffPayload(model.PanelRow{Category: "1月", Values: []float64{1.42}})

	d := DiffPayloads(p, p)
	if d.HasChanges() {
		t.Errorf("identical payloads reported changes: %s", d.Summary())
	}
	if d.Summary() != "no panel changes" {
		t.Errorf("Summary = %q", d.Summary())
	}
}

func TestDiffPayloads_AddedAndRemoved(t *testing.T) {
	prev := model.AggregatePayload{
		model.PanelLeftTop: {{Category: "1月", Values: []float64{1.42}}},
	}
	next := model.AggregatePayload{
		model.PanelBottom: {{Category: "巡检", Values: []float64{3}}},
	}

	d := DiffPayloads(prev, next)
	if len(d.PanelsAdded) != 1 || d.PanelsAdded[0] != model.PanelBottom {
		t.Errorf("PanelsAdded = %v", d.PanelsAdded)
	}
	if len(d.PanelsRemoved) != 1 || d.PanelsRemoved[0] != model.PanelLeftTop {
		t.Errorf("PanelsRemoved = %v", d.PanelsRemoved)
	}
}

func TestDiffPayloads_RowCountChange(t *testing.T) {
	prev := diffPayload(model.PanelRow{Category: "1月", Values: []float64{1.42}})
	next := diffPayload(
		model.PanelRow{Category: "1月", Values: []float64{1.42}},
		model.PanelRow{Category: "2月", Values: []float64{1.45}},
	)

	d := DiffPayloads(prev, next)
	if len(d.RowCountChanges) != 1 {
		t.Fatalf("RowCountChanges = %v", d.RowCountChanges)
	}
	c := d.RowCountChanges[0]
	if c.Old != 1 || c.New != 2 {
		t.Errorf("rows %d->%d, want 1->2", c.Old, c.New)
	}
	if !strings.Contains(d.Summary(), "rows 1->2") {
		t.Errorf("Summary = %q", d.Summary())
	}
}

func TestDiffPayloads_ValueChange(t *testing.T) {
	prev := diffPayload(model.PanelRow{Category: "1月", Values: []float64{1.42}})
	next := diffPayload(model.PanelRow{Category: "1月", Values: []float64{1.48}})

	d := DiffPayloads(prev, next)
	if len(d.ValueChanges) != 1 || d.ValueChanges[0] != model.PanelLeftTop {
		t.Errorf("ValueChanges = %v", d.ValueChanges)
	}
	if len(d.RowCountChanges) != 0 {
		t.Errorf("unexpected RowCountChanges: %v", d.RowCountChanges)
	}
}

func TestDiffPayloads_CategoryRenameIsValueChange(t *testing.T) {
	prev := diffPayload(model.PanelRow{Category: "1月", Values: []float64{1.42}})
	next := diffPayload(model.PanelRow{Category: "2月", Values: []float64{1.42}})

	d := DiffPayloads(prev, next)
	if len(d.ValueChanges) != 1 {
		t.Errorf("ValueChanges = %v", d.ValueChanges)
	}
}
