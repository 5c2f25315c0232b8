package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countersFor(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() == name {
			return fam.GetMetric()
		}
	}
	return nil
}

func TestRecordAgentRestartIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordAgentRestart("scout", "ok")
	r.RecordAgentRestart("scout", "ok")

	metrics := countersFor(t, reg, "colony_agent_restarts_total")
	require.Len(t, metrics, 1)
	assert.Equal(t, float64(2), metrics[0].GetCounter().GetValue())
}

func TestRecordDispatchOnlyObservesLatencyOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordDispatch("get_price", "all_failed", "", 0)
	r.RecordDispatch("get_price", "success", "binance", 50*time.Millisecond)

	outcomes := countersFor(t, reg, "colony_dispatch_outcomes_total")
	require.Len(t, outcomes, 2)

	latencies := countersFor(t, reg, "colony_dispatch_latency_seconds")
	require.Len(t, latencies, 1)
	assert.Equal(t, uint64(1), latencies[0].GetHistogram().GetSampleCount())
}

func TestRecordScheduleLagAndRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordScheduleLag("whale_report")
	r.RecordScheduleRun("whale_report", "ok", 10*time.Millisecond)

	lag := countersFor(t, reg, "colony_schedule_lag_total")
	require.Len(t, lag, 1)
	assert.Equal(t, float64(1), lag[0].GetCounter().GetValue())

	runs := countersFor(t, reg, "colony_schedule_runs_total")
	require.Len(t, runs, 1)
}

func TestRecordRouteTracksConfidenceHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordRoute("arbitrage-live", 0.82)

	confidence := countersFor(t, reg, "colony_route_confidence")
	require.Len(t, confidence, 1)
	assert.Equal(t, uint64(1), confidence[0].GetHistogram().GetSampleCount())
}

func TestRecordToolInvocation(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordToolInvocation("get_price", "succeeded", 5*time.Millisecond)

	invocations := countersFor(t, reg, "colony_tool_invocations_total")
	require.Len(t, invocations, 1)
	assert.Equal(t, float64(1), invocations[0].GetCounter().GetValue())
}
