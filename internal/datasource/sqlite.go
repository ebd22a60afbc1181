package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/stellenberg/opsglass/pkg/debug"
	"github.com/stellenberg/opsglass/pkg/metrics"
	"github.com/stellenberg/opsglass/pkg/model"
)

// SQLiteSource reads a local snapshot database exported from the metrics
// service. Two tables:
//
//	panel_rows(panel TEXT, position INTEGER, category TEXT, series_values TEXT)
//	drill_down(location, month, year, sequence_no, work_type, ... , executor)
//
// series_values holds the row's numeric tuple as a JSON array, keeping
// the positional encoding intact across the export.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// NewSQLiteSource opens a snapshot database read-only.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open snapshot database: %w", err)
	}

	// Read-tuned pragmas; failures are non-fatal.
	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("snapshot pragma failed: %v", err)
		}
	}

	return &SQLiteSource{db: db, path: path}, nil
}

// Describe returns the database path for status lines.
func (s *SQLiteSource) Describe() string { return s.path }

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// FetchAggregate loads every panel's rows in stored order.
func (s *SQLiteSource) FetchAggregate(ctx context.Context) (model.AggregatePayload, error) {
	defer metrics.Timer(metrics.AggregateFetch)()
	rows, err := s.db.QueryContext(ctx,
		`SELECT panel, category, series_values FROM panel_rows ORDER BY panel, position`)
	if err != nil {
		return nil, fmt.Errorf("querying panel rows: %w", err)
	}
	defer rows.Close()

	payload := make(model.AggregatePayload)
	dropped := make(map[model.PanelID]bool)
	for rows.Next() {
		var panel, category, valuesJSON string
		if err := rows.Scan(&panel, &category, &valuesJSON); err != nil {
			return nil, fmt.Errorf("scanning panel row: %w", err)
		}
		id := model.PanelIDFromKey(panel)
		if dropped[id] {
			continue
		}
		var values []float64
		if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
			// Malformed rows poison only their own panel.
			debug.Log("snapshot: dropping panel %s: bad series tuple: %v", id, err)
			delete(payload, id)
			dropped[id] = true
			continue
		}
		payload[id] = append(payload[id], model.PanelRow{Category: category, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading panel rows: %w", err)
	}
	return payload, nil
}

// QueryDrillDown filters the snapshot's work records. Semantics match
// the live endpoint: location is a LIKE substring match, month and year
// are exact, empty keys broaden.
func (s *SQLiteSource) QueryDrillDown(ctx context.Context, q model.DrillDownQuery) (model.DrillDownResult, error) {
	defer metrics.Timer(metrics.DrillDownQuery)()
	var (
		conds []string
		args  []any
	)
	if q.Location != "" {
		conds = append(conds, "location LIKE ?")
		args = append(args, "%"+q.Location+"%")
	}
	if q.Month != "" {
		conds = append(conds, "month = ?")
		args = append(args, q.Month)
	}
	if q.Year != "" {
		conds = append(conds, "year = ?")
		args = append(args, q.Year)
	}

	query := `SELECT id, location, month, year, sequence_no, work_type, work_category,
		work_object, check_item, operation_method, benchmark_value, execution_standard,
		execution_status, detailed_situation, quantification_standard, last_month_standard,
		quantification_unit, executor
		FROM drill_down`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.DrillDownResult{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var records []model.WorkRecord
	for rows.Next() {
		var r model.WorkRecord
		if err := rows.Scan(
			&r.ID, &r.Location, &r.Month, &r.Year, &r.SequenceNo, &r.WorkType,
			&r.WorkCategory, &r.WorkObject, &r.CheckItem, &r.OperationMethod,
			&r.BenchmarkValue, &r.ExecutionStandard, &r.ExecutionStatus,
			&r.DetailedSituation, &r.QuantificationStandard, &r.LastMonthStandard,
			&r.QuantificationUnit, &r.Executor,
		); err != nil {
			return model.DrillDownResult{}, fmt.Errorf("%w: scanning record: %v", ErrQueryFailed, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return model.DrillDownResult{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	return model.DrillDownResult{Records: records, Total: len(records)}, nil
}
