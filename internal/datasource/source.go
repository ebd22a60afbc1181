// Package datasource provides the dashboard's data backends: the live
// metrics API over HTTP, a local JSON fixture for offline viewing, and a
// SQLite snapshot database. All three serve the same two operations the
// presentation layer needs — one aggregate payload per session, and
// filtered drill-down queries on demand.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellenberg/opsglass/pkg/model"
)

// Common errors.
var (
	// ErrQueryFailed covers both transport failures and an explicit
	// success=false from the endpoint; the overlay treats them
	// identically as one recoverable error state.
	ErrQueryFailed = errors.New("drill-down query failed")
	// ErrNoSource is returned when no backend is configured.
	ErrNoSource = errors.New("no data source configured")
)

// Source is a dashboard data backend.
type Source interface {
	// FetchAggregate returns the full panel payload. Called once per
	// session (and again on live reload); the payload is immutable
	// between fetches.
	FetchAggregate(ctx context.Context) (model.AggregatePayload, error)

	// QueryDrillDown returns the work records matching the query.
	// Empty filter keys broaden the match. An empty result is not an
	// error.
	QueryDrillDown(ctx context.Context, q model.DrillDownQuery) (model.DrillDownResult, error)

	// Describe returns a short human-readable label for status lines.
	Describe() string

	// Close releases backend resources.
	Close() error
}

// drillDownEnvelope is the wire shape of the drill-down endpoint and the
// fixture's record block: {"success": bool, "data": [...], "total": n}.
type drillDownEnvelope struct {
	Success bool               `json:"success"`
	Data    []model.WorkRecord `json:"data"`
	Total   int                `json:"total"`
}

// matchRecord applies the drill-down filter semantics shared by the
// fixture and snapshot backends: location is a substring match (the
// upstream endpoint uses LIKE %location%), month and year are exact.
func matchRecord(r model.WorkRecord, q model.DrillDownQuery) bool {
	if q.Location != "" && !strings.Contains(r.Location, q.Location) {
		return false
	}
	if q.Month != "" && r.Month != q.Month {
		return false
	}
	if q.Year != "" && r.Year != q.Year {
		return false
	}
	return true
}

// filterRecords returns the records matching q, preserving input order.
func filterRecords(records []model.WorkRecord, q model.DrillDownQuery) model.DrillDownResult {
	out := make([]model.WorkRecord, 0, len(records))
	for _, r := range records {
		if matchRecord(r, q) {
			out = append(out, r)
		}
	}
	return model.DrillDownResult{Records: out, Total: len(out)}
}

// payloadFromTuples converts the decoded wire payload (panel key ->
// tuples) into the typed aggregate payload. A panel whose rows fail to
// parse is dropped rather than failing the whole payload: panel failures
// are isolated, the rest of the dashboard still initializes.
func payloadFromTuples(raw map[string][][]any, warn func(panel string, err error)) model.AggregatePayload {
	payload := make(model.AggregatePayload, len(raw))
	for key, tuples := range raw {
		id := model.PanelIDFromKey(key)
		rows := make([]model.PanelRow, 0, len(tuples))
		bad := false
		for _, tuple := range tuples {
			row, err := model.RowFromTuple(tuple)
			if err != nil {
				if warn != nil {
					warn(string(id), fmt.Errorf("panel %s: %w", id, err))
				}
				bad = true
				break
			}
			rows = append(rows, row)
		}
		if !bad {
			payload[id] = rows
		}
	}
	return payload
}
