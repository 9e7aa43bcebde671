// Package metrics defines the Prometheus collectors for the email worker:
// broker deliveries, handling outcomes, transport sends, status reports and
// broker errors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailworker"

// Metrics holds the worker's collectors. All methods are safe on a nil
// receiver so components can run without instrumentation.
type Metrics struct {
	deliveries         *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
	transportSends     *prometheus.CounterVec
	statusReports      *prometheus.CounterVec
	brokerErrors       *prometheus.CounterVec
	duplicatesSkipped  prometheus.Counter
	eventsDropped      prometheus.GaugeFunc
}

// New registers the collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Broker deliveries by broker and acknowledgement decision (ack, requeue).",
		}, []string{"broker", "decision"}),
		processingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time spent handling one email command, by result code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code"}),
		transportSends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_sends_total",
			Help:      "Outbound transport calls by transport and outcome (sent, rejected, error).",
		}, []string{"transport", "outcome"}),
		statusReports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_reports_total",
			Help:      "Status report attempts by status and outcome (ok, retry, exhausted).",
		}, []string{"status", "outcome"}),
		brokerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_errors_total",
			Help:      "Broker client errors by broker, operation and error kind.",
		}, []string{"broker", "op", "kind"}),
		duplicatesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Commands skipped because the correlation id was already sent.",
		}),
	}
}

// RegisterEventsDropped exposes the event bus drop counter as a gauge.
func (m *Metrics) RegisterEventsDropped(reg prometheus.Registerer, dropped func() uint64) {
	if m == nil {
		return
	}
	m.eventsDropped = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_dropped",
		Help:      "Lifecycle events discarded by the in-memory event bus.",
	}, func() float64 { return float64(dropped()) })
}

func (m *Metrics) Delivery(broker, decision string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(broker, decision).Inc()
}

func (m *Metrics) ObserveProcessing(code string, d time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.processingDuration.WithLabelValues(code).Observe(d.Seconds())
}

func (m *Metrics) TransportSend(transport, outcome string) {
	if m == nil {
		return
	}
	m.transportSends.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) StatusReport(status, outcome string) {
	if m == nil {
		return
	}
	m.statusReports.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) BrokerError(broker, op, kind string) {
	if m == nil {
		return
	}
	m.brokerErrors.WithLabelValues(broker, op, kind).Inc()
}

func (m *Metrics) DuplicateSkipped() {
	if m == nil {
		return
	}
	m.duplicatesSkipped.Inc()
}
