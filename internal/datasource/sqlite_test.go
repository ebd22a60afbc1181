package datasource

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stellenberg/opsglass/pkg/model"
)

func createSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	schema := `
	CREATE TABLE panel_rows (
		panel TEXT NOT NULL,
		position INTEGER NOT NULL,
		category TEXT NOT NULL,
		series_values TEXT NOT NULL
	);
	CREATE TABLE drill_down (
		id INTEGER PRIMARY KEY,
		location TEXT, month TEXT, year TEXT,
		sequence_no TEXT, work_type TEXT, work_category TEXT,
		work_object TEXT, check_item TEXT, operation_method TEXT,
		benchmark_value TEXT, execution_standard TEXT, execution_status TEXT,
		detailed_situation TEXT, quantification_standard TEXT,
		last_month_standard TEXT, quantification_unit TEXT, executor TEXT
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}

	panelRows := []struct {
		panel    string
		position int
		category string
		values   string
	}{
		{"leftTop", 0, "1月", "[1.45, 1.40, 1.42]"},
		{"leftTop", 1, "2月", "[1.45, 1.40, 1.38]"},
		{"rightTop", 0, "1月", "[99.5, 99.9, 99.7]"},
		{"brokenPanel", 0, "1月", "not json"},
	}
	for _, r := range panelRows {
		if _, err := db.Exec(
			`INSERT INTO panel_rows (panel, position, category, series_values) VALUES (?, ?, ?, ?)`,
			r.panel, r.position, r.category, r.values,
		); err != nil {
			t.Fatal(err)
		}
	}

	records := []struct {
		location, month, year, workType, executor string
	}{
		{"深圳宝安区宝城", "1", "2025", "巡检", "张三"},
		{"深圳宝安区宝城", "2", "2025", "维护", "李四"},
		{"东莞松山湖", "1", "2025", "巡检", "王五"},
	}
	for _, r := range records {
		if _, err := db.Exec(
			`INSERT INTO drill_down (location, month, year, work_type, sequence_no, work_category,
			 work_object, check_item, operation_method, benchmark_value, execution_standard,
			 execution_status, detailed_situation, quantification_standard, last_month_standard,
			 quantification_unit, executor)
			 VALUES (?, ?, ?, ?, '', '', '', '', '', '', '', '', '', '', '', '', ?)`,
			r.location, r.month, r.year, r.workType, r.executor,
		); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

func TestSQLiteSource_FetchAggregate(t *testing.T) {
	src, err := NewSQLiteSource(createSnapshot(t))
	if err != nil {
		t.Fatalf("NewSQLiteSource: %v", err)
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
	if left[1].Category != "2月" || left[1].Values[2] != 1.38 {
		t.Errorf("leftTop row 1 = %+v", left[1])
	}

	// A panel with a malformed tuple is dropped; siblings survive.
	if rows := payload.Rows(model.PanelID("brokenPanel")); rows != nil {
		t.Errorf("broken panel should be dropped, got %v", rows)
	}
	if rows := payload.Rows(model.PanelRightTop); len(rows) != 1 {
		t.Errorf("rightTop rows = %d, want 1", len(rows))
	}
}

func TestSQLiteSource_QueryDrillDown(t *testing.T) {
	src, err := NewSQLiteSource(createSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	ctx := context.Background()

	res, err := src.QueryDrillDown(ctx, model.DrillDownQuery{
		Location: "宝安", Month: "1", Year: "2025",
	})
	if err != nil {
		t.Fatalf("QueryDrillDown: %v", err)
	}
	if res.Total != 1 || res.Records[0].Executor != "张三" {
		t.Errorf("filtered result = %+v", res)
	}

	res, err = src.QueryDrillDown(ctx, model.DrillDownQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 {
		t.Errorf("unfiltered total = %d, want 3", res.Total)
	}

	res, err = src.QueryDrillDown(ctx, model.DrillDownQuery{Year: "2020"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() {
		t.Errorf("no-match query = %+v, want empty", res)
	}
}
