package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements Collector backed by Prometheus. Metrics are
// registered lazily on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	gatherer  prometheus.Gatherer
	namespace string
	once      sync.Once

	operations         *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
	assignments        *prometheus.CounterVec
	capacityRejections prometheus.Counter
	queueSize          *prometheus.GaugeVec
	queueInSync        *prometheus.GaugeVec
	deadLetters        *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus registers into reg, or a fresh registry when reg is nil.
// namespace defaults to "leadqueue".
func NewPrometheus(reg *prometheus.Registry, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "leadqueue"
	}
	return &PrometheusCollector{reg: reg, gatherer: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "operations_total",
			Help:      "Coordinator operations by name and result.",
		}, []string{"op", "result"})

		p.operationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "operation_duration_seconds",
			Help:      "Coordinator operation latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"op"})

		p.assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "assignments_total",
			Help:      "Leads assigned to counselors by mode.",
		}, []string{"mode"})

		p.capacityRejections = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "capacity",
			Name:      "rejections_total",
			Help:      "Assignments refused because the counselor was unavailable.",
		})

		p.queueSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "size",
			Help:      "Leads waiting in each institution queue.",
		}, []string{"institution"})

		p.queueInSync = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "in_sync",
			Help:      "Last queue health check result (1=in sync, 0=mismatch).",
		}, []string{"institution"})

		p.deadLetters = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "kafka",
			Name:      "dead_letters_total",
			Help:      "Kafka messages that could not be published or handled.",
		}, []string{"topic"})

		p.reg.MustRegister(p.operations)
		p.reg.MustRegister(p.operationLatency)
		p.reg.MustRegister(p.assignments)
		p.reg.MustRegister(p.capacityRejections)
		p.reg.MustRegister(p.queueSize)
		p.reg.MustRegister(p.queueInSync)
		p.reg.MustRegister(p.deadLetters)
	})
}

func (p *PrometheusCollector) ObserveOperation(op, result string, seconds float64) {
	p.ensureRegistered()
	p.operations.WithLabelValues(op, result).Inc()
	p.operationLatency.WithLabelValues(op).Observe(seconds)
}

func (p *PrometheusCollector) IncAssignment(mode string) {
	p.ensureRegistered()
	p.assignments.WithLabelValues(mode).Inc()
}

func (p *PrometheusCollector) IncCapacityRejection() {
	p.ensureRegistered()
	p.capacityRejections.Inc()
}

func (p *PrometheusCollector) SetQueueSize(institutionID string, size int) {
	p.ensureRegistered()
	p.queueSize.WithLabelValues(institutionID).Set(float64(size))
}

func (p *PrometheusCollector) SetQueueInSync(institutionID string, inSync bool) {
	p.ensureRegistered()
	v := 0.0
	if inSync {
		v = 1
	}
	p.queueInSync.WithLabelValues(institutionID).Set(v)
}

func (p *PrometheusCollector) IncDeadLetter(topic string) {
	p.ensureRegistered()
	p.deadLetters.WithLabelValues(topic).Inc()
}

// Handler serves the collector's registry in the Prometheus text format.
func (p *PrometheusCollector) Handler() http.Handler {
	p.ensureRegistered()
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
