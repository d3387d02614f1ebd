package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/metrics"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.Submitted("annual")
	m.Submitted("annual")
	m.Conflict("store_clash")
	m.Transition("pending", "approved")
	m.QuotaConsumed(3)
	m.AssistantCall("rejection", 20*time.Millisecond)
	m.AssistantFallback("rejection", "no_key")
	m.ReportGenerated(time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsSubmitted.WithLabelValues("annual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationConflicts.WithLabelValues("store_clash")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("pending", "approved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QuotaConsumedDays))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssistantFallbacks.WithLabelValues("rejection", "no_key")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Submitted("annual")
		m.Conflict("duration_cap")
		m.Transition("pending", "rejected")
		m.QuotaConsumed(1)
		m.AssistantCall("analysis", time.Second)
		m.AssistantFallback("analysis", "error")
		m.ReportGenerated(time.Second)
	})
}
