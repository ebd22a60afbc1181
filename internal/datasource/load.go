package datasource

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/stellenberg/opsglass/pkg/debug"
	"github.com/stellenberg/opsglass/pkg/metrics"
	"github.com/stellenberg/opsglass/pkg/model"
)

// FixtureSource serves dashboard data from a local JSON file: the
// aggregate payload keys at the top level plus an optional "drillDown"
// envelope with work records. Used for offline viewing, demos, and as
// the live-reload target of the file watcher.
type FixtureSource struct {
	path string

	mu      sync.RWMutex
	payload model.AggregatePayload
	records []model.WorkRecord
}

// fixtureFile is the on-disk shape. Panel keys are free-form ("*Data");
// everything that isn't the drillDown block is treated as a panel.
type fixtureFile struct {
	DrillDown *drillDownEnvelope `json:"drillDown"`
}

// NewFixtureSource loads the fixture at path.
func NewFixtureSource(path string) (*FixtureSource, error) {
	s := &FixtureSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the fixture from disk. Called by the file watcher's
// change handler; on error the previous payload stays in place.
func (s *FixtureSource) Reload() error {
	defer metrics.Timer(metrics.FixtureReload)()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}

	var file fixtureFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}
	tuples := make(map[string][][]any, len(raw))
	for key, msg := range raw {
		if key == "drillDown" {
			continue
		}
		var panelTuples [][]any
		if err := json.Unmarshal(msg, &panelTuples); err != nil {
			// Non-panel metadata keys are allowed in fixtures.
			debug.Log("fixture key %s is not a panel row list: %v", key, err)
			continue
		}
		tuples[key] = panelTuples
	}

	payload := payloadFromTuples(tuples, func(panel string, err error) {
		debug.Log("fixture: dropping malformed panel %s: %v", panel, err)
	})

	var records []model.WorkRecord
	if file.DrillDown != nil {
		records = file.DrillDown.Data
	}

	s.mu.Lock()
	prev := s.payload
	s.payload = payload
	s.records = records
	s.mu.Unlock()

	if debug.Enabled() && prev != nil {
		debug.Log("fixture reloaded: %s", DiffPayloads(prev, payload).Summary())
	}
	debug.Log("fixture reloaded: %d panels, %d drill-down records", len(payload), len(records))
	return nil
}

// Describe returns the fixture path for status lines.
func (s *FixtureSource) Describe() string { return s.path }

// Close is a no-op for fixtures.
func (s *FixtureSource) Close() error { return nil }

// FetchAggregate returns the loaded payload.
func (s *FixtureSource) FetchAggregate(_ context.Context) (model.AggregatePayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return nil, ErrNoSource
	}
	return s.payload, nil
}

// QueryDrillDown filters the fixture's record set in memory.
func (s *FixtureSource) QueryDrillDown(_ context.Context, q model.DrillDownQuery) (model.DrillDownResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRecords(s.records, q), nil
}
