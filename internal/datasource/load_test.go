package datasource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stellenberg/opsglass/pkg/model"
)

const fixtureJSON = `{
  "leftTopData": [["1月", 1.45, 1.40, 1.42], ["2月", 1.45, 1.40, 1.38]],
  "rightTopData": [["1月", 99.5, 99.9, 99.7]],
  "centerTopTopData": [["PUE", 1]],
  "badPanelData": [["ok", 1.0], ["broken", "not-a-number"]],
  "note": "exported 2025-01-31",
  "drillDown": {
    "success": true,
    "data": [
      {"id": 1, "location": "深圳宝安区宝城", "month": "1", "year": "2025", "work_type": "巡检", "executor": "张三"},
      {"id": 2, "location": "深圳宝安区宝城", "month": "2", "year": "2025", "work_type": "维护", "executor": "李四"},
      {"id": 3, "location": "东莞松山湖", "month": "1", "year": "2025", "work_type": "巡检", "executor": "王五"}
    ],
    "total": 3
  }
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bi_data.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFixtureSource_FetchAggregate(t *testing.T) {
	src, err := NewFixtureSource(writeFixture(t, fixtureJSON))
	if err != nil {
		t.Fatalf("NewFixtureSource: %v", err)
	}
	defer src.Close()

	payload, err := src.FetchAggregate(context.Background())
	if err != nil {
		t.Fatalf("FetchAggregate: %v", err)
	}

	left := payload.Rows(model.PanelLeftTop)
	if len(left) != 2 {
		t.Fatalf("leftTop rows = %d, want 2", len(left))
	}
	if left[0].Category != "1月" || left[0].Values[2] != 1.42 {
		t.Errorf("leftTop row 0 = %+v", left[0])
	}

	// The malformed panel is dropped; other panels are unaffected.
	if rows := payload.Rows(model.PanelID("badPanel")); rows != nil {
		t.Errorf("malformed panel should not initialize, got %v", rows)
	}
	if rows := payload.Rows(model.PanelRightTop); len(rows) != 1 {
		t.Errorf("rightTop unaffected by sibling failure, got %d rows", len(rows))
	}
}

func TestFixtureSource_QueryDrillDown(t *testing.T) {
	src, err := NewFixtureSource(writeFixture(t, fixtureJSON))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	ctx := context.Background()

	// Full key set narrows to one record.
	res, err := src.QueryDrillDown(ctx, model.DrillDownQuery{
		Location: "深圳宝安区宝城", Month: "1", Year: "2025",
	})
	if err != nil {
		t.Fatalf("QueryDrillDown: %v", err)
	}
	if res.Total != 1 || len(res.Records) != 1 || res.Records[0].Executor != "张三" {
		t.Errorf("filtered result = %+v", res)
	}

	// Omitting keys broadens the filter.
	res, err = src.QueryDrillDown(ctx, model.DrillDownQuery{Month: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Errorf("month-only query total = %d, want 2", res.Total)
	}

	// Location is a substring match.
	res, err = src.QueryDrillDown(ctx, model.DrillDownQuery{Location: "宝安"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Errorf("substring location query total = %d, want 2", res.Total)
	}

	// Zero query matches everything.
	res, err = src.QueryDrillDown(ctx, model.DrillDownQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 {
		t.Errorf("zero query total = %d, want 3", res.Total)
	}

	// No matches is an empty result, not an error.
	res, err = src.QueryDrillDown(ctx, model.DrillDownQuery{Year: "1999"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() || res.Total != 0 {
		t.Errorf("no-match query = %+v, want empty result", res)
	}
}

func TestFixtureSource_Reload(t *testing.T) {
	path := writeFixture(t, fixtureJSON)
	src, err := NewFixtureSource(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	updated := `{"leftTopData": [["3月", 1.36, 1.40, 1.35]], "drillDown": {"success": true, "data": [], "total": 0}}`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := src.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	payload, _ := src.FetchAggregate(context.Background())
	rows := payload.Rows(model.PanelLeftTop)
	if len(rows) != 1 || rows[0].Category != "3月" {
		t.Errorf("payload after reload = %+v", rows)
	}
}

func TestFixtureSource_ReloadKeepsPayloadOnError(t *testing.T) {
	path := writeFixture(t, fixtureJSON)
	src, err := NewFixtureSource(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := src.Reload(); err == nil {
		t.Fatal("expected reload error for corrupt fixture")
	}

	// Previous payload survives the failed reload.
	payload, err := src.FetchAggregate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.Rows(model.PanelLeftTop)) != 2 {
		t.Error("payload lost after failed reload")
	}
}

func TestFixtureSource_MissingFile(t *testing.T) {
	if _, err := NewFixtureSource(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing fixture")
	}
}
