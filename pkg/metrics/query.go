// Package metrics provides services for querying and aggregating metrics data.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// KindCount is the number of commands of one kind, split by where they were resolved.
type KindCount struct {
	Kind     string `json:"kind"`
	Local    int64  `json:"local"`
	Upstream int64  `json:"upstream"`
	Total    int64  `json:"total"`
}

// Summary aggregates the pipeline's counters over a window.
type Summary struct {
	Window              time.Duration    `json:"window"`
	Kinds               []KindCount      `json:"kinds"`
	Outcomes            map[string]int64 `json:"outcomes"`
	UpstreamByStatus    map[string]int64 `json:"upstream_by_status"`
	AdmissionRejections int64            `json:"admission_rejections"`
	BreakerOpen         bool             `json:"breaker_open"`
}

// querier is the slice of the Prometheus HTTP API the service uses.
type querier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	queryAPI querier
	now      func() time.Time
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		queryAPI: v1.NewAPI(client),
		now:      time.Now,
	}, nil
}

// CommandCounts returns per-kind command counts over window, busiest kind first.
func (q *QueryService) CommandCounts(ctx context.Context, window time.Duration) ([]KindCount, error) {
	query := fmt.Sprintf(`sum by (kind, source) (increase(assistant_commands_total{outcome="dispatched"}[%s]))`,
		model.Duration(window))
	vector, err := q.vector(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query command counts: %w", err)
	}

	byKind := make(map[string]*KindCount)
	for _, sample := range vector {
		kind := string(sample.Metric["kind"])
		kc, ok := byKind[kind]
		if !ok {
			kc = &KindCount{Kind: kind}
			byKind[kind] = kc
		}
		n := int64(sample.Value)
		switch string(sample.Metric["source"]) {
		case "local":
			kc.Local += n
		case "upstream":
			kc.Upstream += n
		}
		kc.Total += n
	}

	counts := make([]KindCount, 0, len(byKind))
	for _, kc := range byKind {
		counts = append(counts, *kc)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Total != counts[j].Total {
			return counts[i].Total > counts[j].Total
		}
		return counts[i].Kind < counts[j].Kind
	})
	return counts, nil
}

// Summarize gathers command counts, outcomes, upstream statuses, rejections, and breaker state.
func (q *QueryService) Summarize(ctx context.Context, window time.Duration) (*Summary, error) {
	kinds, err := q.CommandCounts(ctx, window)
	if err != nil {
		return nil, err
	}
	s := &Summary{Window: window, Kinds: kinds}
	rng := model.Duration(window)

	if s.Outcomes, err = q.sumBy(ctx, fmt.Sprintf(`sum by (outcome) (increase(assistant_commands_total[%s]))`, rng), "outcome"); err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	if s.UpstreamByStatus, err = q.sumBy(ctx, fmt.Sprintf(`sum by (status) (increase(assistant_upstream_requests_total[%s]))`, rng), "status"); err != nil {
		return nil, fmt.Errorf("failed to query upstream requests: %w", err)
	}

	rejections, err := q.scalar(ctx, fmt.Sprintf(`sum(increase(assistant_admission_rejections_total[%s]))`, rng))
	if err != nil {
		return nil, fmt.Errorf("failed to query admission rejections: %w", err)
	}
	s.AdmissionRejections = int64(rejections)

	open, err := q.scalar(ctx, `max(assistant_breaker_open)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaker state: %w", err)
	}
	s.BreakerOpen = open > 0
	return s, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, err
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s", result.Type())
	}
	return vector, nil
}

func (q *QueryService) sumBy(ctx context.Context, query, label string) (map[string]int64, error) {
	vector, err := q.vector(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(vector))
	for _, sample := range vector {
		out[string(sample.Metric[model.LabelName(label)])] += int64(sample.Value)
	}
	return out, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	vector, err := q.vector(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(vector) == 0 {
		return 0, nil
	}
	return float64(vector[0].Value), nil
}
