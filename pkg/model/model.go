// Package model defines the core data types shared across opsglass: the
// aggregate dashboard payload, per-panel row tuples, and drill-down work
// records. All types here are plain data; behavior lives in the packages
// that consume them.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PanelID names one visually distinct dashboard region. The identifiers
// mirror the upstream aggregate endpoint's payload keys (minus the "Data"
// suffix), so a payload key like "leftTopData" maps to PanelLeftTop.
type PanelID string

const (
	PanelTop          PanelID = "top"
	PanelLeftTop      PanelID = "leftTop"
	PanelLeftMiddle   PanelID = "leftMiddle"
	PanelLeftBottom   PanelID = "leftBottom"
	PanelCenterTop    PanelID = "centerTop"
	PanelCenterMiddle PanelID = "centerMiddle"
	PanelRightTop     PanelID = "rightTop"
	PanelRightMiddle  PanelID = "rightMiddle"
	PanelRightBottom  PanelID = "rightBottom"
	PanelBottom       PanelID = "bottom"
)

// KnownPanels lists every panel identifier the dashboard may render, in
// layout order (top row first, then left column top-to-bottom, etc.).
// Pages legitimately omit panels; absence of a key is not an error.
var KnownPanels = []PanelID{
	PanelTop,
	PanelLeftTop, PanelLeftMiddle, PanelLeftBottom,
	PanelCenterTop, PanelCenterMiddle,
	PanelRightTop, PanelRightMiddle, PanelRightBottom,
	PanelBottom,
}

// PanelIDFromKey converts an aggregate payload key ("leftTopData") to its
// PanelID ("leftTop"). Keys without the Data suffix pass through unchanged.
func PanelIDFromKey(key string) PanelID {
	return PanelID(strings.TrimSuffix(key, "Data"))
}

// PayloadKey returns the aggregate endpoint's JSON key for this panel.
func (p PanelID) PayloadKey() string { return string(p) + "Data" }

// PanelRow is one positionally encoded tuple from the aggregate payload:
// a leading category key (typically a month like "1月" or an indicator
// name) followed by the numeric series values in fixed order, e.g.
// [month, baseline, challenge, indicator].
type PanelRow struct {
	Category string
	Values   []float64
}

// RowFromTuple coerces a decoded JSON tuple into a PanelRow. The first
// element is the category (stringified if numeric); remaining elements
// must be numbers or numeric strings. Null values become 0 so a row with
// a missing measurement still lines up positionally with its series.
func RowFromTuple(tuple []any) (PanelRow, error) {
	if len(tuple) == 0 {
		return PanelRow{}, fmt.Errorf("empty row tuple")
	}
	row := PanelRow{Values: make([]float64, 0, len(tuple)-1)}
	switch v := tuple[0].(type) {
	case string:
		row.Category = v
	case float64:
		row.Category = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return PanelRow{}, fmt.Errorf("row category has unsupported type %T", tuple[0])
	}
	for i, cell := range tuple[1:] {
		switch v := cell.(type) {
		case float64:
			row.Values = append(row.Values, v)
		case nil:
			row.Values = append(row.Values, 0)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return PanelRow{}, fmt.Errorf("row value %d (%q) is not numeric", i+1, v)
			}
			row.Values = append(row.Values, f)
		default:
			return PanelRow{}, fmt.Errorf("row value %d has unsupported type %T", i+1, cell)
		}
	}
	return row, nil
}

// AggregatePayload maps panel identifiers to their ordered row tuples.
// Produced once per session by the aggregate endpoint and immutable for
// the session's lifetime.
type AggregatePayload map[PanelID][]PanelRow

// Rows returns the rows for a panel, or nil when the payload does not
// carry that panel (the caller treats nil as "panel not initialized").
func (a AggregatePayload) Rows(id PanelID) []PanelRow {
	if a == nil {
		return nil
	}
	return a[id]
}

// DrillDownQuery filters the drill-down endpoint. Every key is optional;
// an empty key broadens the filter instead of erroring.
type DrillDownQuery struct {
	Location string
	Month    string
	Year     string
}

// IsZero reports whether no filter key is set.
func (q DrillDownQuery) IsZero() bool {
	return q.Location == "" && q.Month == "" && q.Year == ""
}

// String renders the query for status lines and debug logs.
func (q DrillDownQuery) String() string {
	parts := make([]string, 0, 3)
	if q.Location != "" {
		parts = append(parts, "location="+q.Location)
	}
	if q.Year != "" {
		parts = append(parts, "year="+q.Year)
	}
	if q.Month != "" {
		parts = append(parts, "month="+q.Month)
	}
	if len(parts) == 0 {
		return "all records"
	}
	return strings.Join(parts, " ")
}

// WorkRecord is one fine-grained operations work record underlying an
// aggregate chart data point. Field names mirror the drill-down endpoint.
type WorkRecord struct {
	ID                     int64  `json:"id"`
	Location               string `json:"location"`
	Month                  string `json:"month"`
	Year                   string `json:"year"`
	SequenceNo             string `json:"sequence_no"`
	WorkType               string `json:"work_type"`
	WorkCategory           string `json:"work_category"`
	WorkObject             string `json:"work_object"`
	CheckItem              string `json:"check_item"`
	OperationMethod        string `json:"operation_method"`
	BenchmarkValue         string `json:"benchmark_value"`
	ExecutionStandard      string `json:"execution_standard"`
	ExecutionStatus        string `json:"execution_status"`
	DetailedSituation      string `json:"detailed_situation"`
	QuantificationStandard string `json:"quantification_standard"`
	LastMonthStandard      string `json:"last_month_standard"`
	QuantificationUnit     string `json:"quantification_unit"`
	Executor               string `json:"executor"`
}

// Field is a labeled record field for detail rendering and export.
type Field struct {
	Label string
	Value string
}

// Fields returns the record's full field set in display order.
func (r WorkRecord) Fields() []Field {
	return []Field{
		{"Sequence", r.SequenceNo},
		{"Location", r.Location},
		{"Period", periodLabel(r.Year, r.Month)},
		{"Work type", r.WorkType},
		{"Work category", r.WorkCategory},
		{"Work object", r.WorkObject},
		{"Check item", r.CheckItem},
		{"Operation method", r.OperationMethod},
		{"Benchmark", r.BenchmarkValue},
		{"Execution standard", r.ExecutionStandard},
		{"Execution status", r.ExecutionStatus},
		{"Quantification standard", r.QuantificationStandard},
		{"Quantification unit", r.QuantificationUnit},
		{"Last month standard", r.LastMonthStandard},
		{"Executor", r.Executor},
		{"Details", r.DetailedSituation},
	}
}

func periodLabel(year, month string) string {
	switch {
	case year == "" && month == "":
		return ""
	case year == "":
		return "month " + month
	case month == "":
		return year
	default:
		return year + "-" + month
	}
}

// DrillDownResult is the ordered record set returned by one drill-down
// query. Constructed per query, discarded when the overlay closes; results
// are never cached across queries.
type DrillDownResult struct {
	Records []WorkRecord
	Total   int
}

// Empty reports whether the query matched no records. An empty result is
// not an error; the overlay renders an explicit empty state for it.
func (r DrillDownResult) Empty() bool {
	return len(r.Records) == 0
}
