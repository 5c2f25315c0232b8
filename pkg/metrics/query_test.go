package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueryAPI embeds v1.API so it satisfies the interface without
// implementing every method; only Query is exercised by QueryService.
type fakeQueryAPI struct {
	v1.API
	results map[string]model.Value
	err     error
}

func (f *fakeQueryAPI) Query(_ context.Context, query string, _ time.Time, _ ...v1.Option) (model.Value, v1.Warnings, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	v, ok := f.results[query]
	if !ok {
		return model.Vector{}, nil, nil
	}
	return v, nil, nil
}

func vectorOf(value float64) model.Vector {
	return model.Vector{&model.Sample{Value: model.SampleValue(value)}}
}

func TestGetSkillMetricsAggregatesAllFourQueries(t *testing.T) {
	fake := &fakeQueryAPI{results: map[string]model.Value{
		`sum(colony_route_decisions_total{skill="price-check"})`:                vectorOf(42),
		`sum(colony_tool_invocations_total{tool="price-check"})`:                vectorOf(40),
		`sum(colony_tool_invocations_total{tool="price-check", status="error"})`: vectorOf(2),
		`avg(colony_route_confidence_sum{skill="price-check"}) / avg(colony_route_confidence_count{skill="price-check"})`: vectorOf(0.87),
	}}
	q := &QueryService{queryAPI: fake}

	got, err := q.GetSkillMetrics(context.Background(), "price-check")
	require.NoError(t, err)
	assert.Equal(t, "price-check", got.Skill)
	assert.Equal(t, int64(42), got.RouteDecisions)
	assert.Equal(t, int64(40), got.ToolInvocations)
	assert.Equal(t, int64(2), got.ToolFailures)
	assert.InDelta(t, 0.87, got.AvgConfidence, 0.0001)
}

func TestGetSkillMetricsReturnsZeroForEmptyVector(t *testing.T) {
	q := &QueryService{queryAPI: &fakeQueryAPI{results: map[string]model.Value{}}}

	got, err := q.GetSkillMetrics(context.Background(), "unknown-skill")
	require.NoError(t, err)
	assert.Zero(t, got.RouteDecisions)
	assert.Zero(t, got.ToolInvocations)
	assert.Zero(t, got.AvgConfidence)
}

func TestGetSkillMetricsPropagatesQueryError(t *testing.T) {
	q := &QueryService{queryAPI: &fakeQueryAPI{err: errors.New("connection refused")}}

	_, err := q.GetSkillMetrics(context.Background(), "price-check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query route decisions")
}

func TestNewQueryServiceRejectsInvalidAddress(t *testing.T) {
	_, err := NewQueryService("not a url\x7f")
	require.Error(t, err)
}

func TestNewQueryServiceAcceptsWellFormedAddress(t *testing.T) {
	q, err := NewQueryService("http://localhost:9090")
	require.NoError(t, err)
	assert.NotNil(t, q)
}
