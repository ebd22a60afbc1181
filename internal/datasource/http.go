package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/stellenberg/opsglass/pkg/debug"
	"github.com/stellenberg/opsglass/pkg/metrics"
	"github.com/stellenberg/opsglass/pkg/model"
)

// Endpoint paths on the metrics API.
const (
	aggregatePath = "/api/bi_data"
	drillDownPath = "/pue_drill_down_data"
)

// HTTPSource fetches dashboard data from the live metrics API.
type HTTPSource struct {
	base   string
	client *http.Client
}

// NewHTTPSource returns a source against the given base URL, e.g.
// "http://127.0.0.1:8000".
func NewHTTPSource(base string) (*HTTPSource, error) {
	base = strings.TrimRight(base, "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", base, err)
	}
	return &HTTPSource{
		base: base,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Describe returns the endpoint for status lines.
func (s *HTTPSource) Describe() string { return s.base }

// Close is a no-op; the HTTP client holds no per-source resources.
func (s *HTTPSource) Close() error { return nil }

// Ping probes the aggregate and drill-down endpoints concurrently so the
// CLI can report connectivity before entering the alternate screen.
func (s *HTTPSource) Ping(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, path := range []string{aggregatePath, drillDownPath} {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.base+path, nil)
			if err != nil {
				return err
			}
			resp, err := s.client.Do(req)
			if err != nil {
				return fmt.Errorf("probing %s: %w", path, err)
			}
			resp.Body.Close()
			// HEAD may be unimplemented upstream; any response at all
			// means the endpoint is reachable.
			return nil
		})
	}
	return g.Wait()
}

// FetchAggregate requests the aggregate payload once.
func (s *HTTPSource) FetchAggregate(ctx context.Context) (model.AggregatePayload, error) {
	defer metrics.Timer(metrics.AggregateFetch)()
	start := time.Now()
	body, err := s.get(ctx, s.base+aggregatePath)
	if err != nil {
		return nil, fmt.Errorf("fetching aggregate payload: %w", err)
	}

	var raw map[string][][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding aggregate payload: %w", err)
	}

	payload := payloadFromTuples(raw, func(panel string, err error) {
		debug.Log("dropping malformed panel %s: %v", panel, err)
	})
	debug.LogTiming("FetchAggregate", time.Since(start))
	return payload, nil
}

// QueryDrillDown runs one filtered drill-down query. A success=false
// envelope and a transport failure surface as the same error state.
func (s *HTTPSource) QueryDrillDown(ctx context.Context, q model.DrillDownQuery) (model.DrillDownResult, error) {
	defer metrics.Timer(metrics.DrillDownQuery)()
	u, _ := url.Parse(s.base + drillDownPath)
	params := u.Query()
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.Month != "" {
		params.Set("month", q.Month)
	}
	if q.Year != "" {
		params.Set("year", q.Year)
	}
	u.RawQuery = params.Encode()

	body, err := s.get(ctx, u.String())
	if err != nil {
		return model.DrillDownResult{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	var envelope drillDownEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.DrillDownResult{}, fmt.Errorf("%w: decoding response: %v", ErrQueryFailed, err)
	}
	if !envelope.Success {
		return model.DrillDownResult{}, fmt.Errorf("%w: endpoint reported failure", ErrQueryFailed)
	}

	total := envelope.Total
	if total == 0 {
		total = len(envelope.Data)
	}
	return model.DrillDownResult{Records: envelope.Data, Total: total}, nil
}

func (s *HTTPSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
