package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SkillMetrics is the aggregated view of one skill's routing and tool
// activity, pulled from a Prometheus server holding this runtime's
// metrics (the runtime keeps them in orchestrator.Facade.Registry and
// serves no /metrics HTTP endpoint of its own).
type SkillMetrics struct {
	Skill           string  `json:"skill"`
	RouteDecisions  int64   `json:"route_decisions"`
	ToolInvocations int64   `json:"tool_invocations"`
	ToolFailures    int64   `json:"tool_failures"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

// QueryService queries a remote Prometheus server for the runtime's own
// metrics, for operators who run colonyctl in a different process than
// the runtime that recorded them. Grounded on the teacher's
// pkg/metrics.QueryService, generalized from its per-story token/cost
// aggregation to this runtime's per-skill routing/tool-invocation
// aggregation.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService builds a QueryService against the Prometheus server at
// prometheusURL (e.g. "http://localhost:9090").
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("metrics: create prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// GetSkillMetrics aggregates colony_route_decisions_total,
// colony_tool_invocations_total and colony_route_confidence for one
// skill name via instant queries.
func (q *QueryService) GetSkillMetrics(ctx context.Context, skill string) (*SkillMetrics, error) {
	out := &SkillMetrics{Skill: skill}

	decisions, err := q.scalar(ctx, fmt.Sprintf(`sum(colony_route_decisions_total{skill=%q})`, skill))
	if err != nil {
		return nil, fmt.Errorf("query route decisions: %w", err)
	}
	out.RouteDecisions = int64(decisions)

	invocations, err := q.scalar(ctx, fmt.Sprintf(`sum(colony_tool_invocations_total{tool=%q})`, skill))
	if err != nil {
		return nil, fmt.Errorf("query tool invocations: %w", err)
	}
	out.ToolInvocations = int64(invocations)

	failures, err := q.scalar(ctx, fmt.Sprintf(`sum(colony_tool_invocations_total{tool=%q, status="failed"})`, skill))
	if err != nil {
		return nil, fmt.Errorf("query tool failures: %w", err)
	}
	out.ToolFailures = int64(failures)

	confidence, err := q.scalar(ctx, fmt.Sprintf(`avg(colony_route_confidence_sum{skill=%q}) / avg(colony_route_confidence_count{skill=%q})`, skill, skill))
	if err != nil {
		return nil, fmt.Errorf("query average confidence: %w", err)
	}
	out.AvgConfidence = confidence

	return out, nil
}

// scalar runs an instant vector query and returns its first sample's
// value, or 0 if the query returned no series.
func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	vector, ok := result.(model.Vector)
	if !ok || len(vector) == 0 {
		return 0, nil
	}
	return float64(vector[0].Value), nil
}
