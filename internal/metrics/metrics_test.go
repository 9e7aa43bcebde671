package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mailworker/internal/metrics"
)

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Delivery("redis", "ack")
	m.Delivery("redis", "ack")
	m.Delivery("redis", "requeue")
	m.TransportSend("smtp", "sent")
	m.StatusReport("Sent", "ok")
	m.BrokerError("kafka", "fetch", "timeout")
	m.DuplicateSkipped()
	m.ObserveProcessing("", 10*time.Millisecond)
	m.ObserveProcessing("Email.SendFailed", 20*time.Millisecond)

	expected := `
# HELP mailworker_deliveries_total Broker deliveries by broker and acknowledgement decision (ack, requeue).
# TYPE mailworker_deliveries_total counter
mailworker_deliveries_total{broker="redis",decision="ack"} 2
mailworker_deliveries_total{broker="redis",decision="requeue"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mailworker_deliveries_total"))

	count, err := testutil.GatherAndCount(reg, "mailworker_processing_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "mailworker_duplicates_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventsDroppedGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RegisterEventsDropped(reg, func() uint64 { return 7 })

	expected := `
# HELP mailworker_events_dropped Lifecycle events discarded by the in-memory event bus.
# TYPE mailworker_events_dropped gauge
mailworker_events_dropped 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mailworker_events_dropped"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Delivery("redis", "ack")
		m.ObserveProcessing("x", time.Second)
		m.TransportSend("smtp", "sent")
		m.StatusReport("Sent", "ok")
		m.BrokerError("redis", "read", "other")
		m.DuplicateSkipped()
		m.RegisterEventsDropped(prometheus.NewRegistry(), func() uint64 { return 0 })
	})
}
