package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every exported metric.
const Namespace = "assistant"

// CommandsMetric is the fully qualified name of the per-kind outcome counter.
const CommandsMetric = Namespace + "_commands_total"

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal       *prometheus.CounterVec
	tokensTotal         *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	throttleTotal       *prometheus.CounterVec
	queueWaitTime       *prometheus.HistogramVec
	commandsTotal       *prometheus.CounterVec
	admissionRejections prometheus.Counter
	breakerOpen         prometheus.Gauge
}

// NewPrometheusRecorder registers the assistant metrics on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream model requests by model, status, and error type",
			},
			[]string{"model", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_tokens_total",
				Help:      "Estimated tokens sent to and received from the upstream model",
			},
			[]string{"model", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of upstream model requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		throttleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_throttle_total",
				Help:      "Total number of upstream throttling events",
			},
			[]string{"model", "reason"},
		),
		queueWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "upstream_queue_wait_duration_seconds",
				Help:      "Time spent waiting for rate limit availability",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "commands_total",
				Help:      "Resolved commands by kind, resolution source, and outcome",
			},
			[]string{"kind", "source", "outcome"},
		),
		admissionRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "admission_rejections_total",
				Help:      "Requests rejected by per-caller admission control",
			},
		),
		breakerOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "breaker_open",
				Help:      "1 while the upstream circuit breaker is open",
			},
		),
	}
}

// NewRegistry returns a registry with the Go, process and build-info collectors installed.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector(Namespace),
	)
	return reg
}

func (p *PrometheusRecorder) ObserveRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	p.requestsTotal.WithLabelValues(model, status, errorType).Inc()
	if success {
		p.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncThrottle(model, reason string) {
	p.throttleTotal.WithLabelValues(model, reason).Inc()
}

func (p *PrometheusRecorder) ObserveQueueWait(model string, duration time.Duration) {
	p.queueWaitTime.WithLabelValues(model).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveCommand(kind, source, outcome string) {
	p.commandsTotal.WithLabelValues(kind, source, outcome).Inc()
}

func (p *PrometheusRecorder) IncAdmissionRejection() {
	p.admissionRejections.Inc()
}

func (p *PrometheusRecorder) SetBreakerOpen(open bool) {
	if open {
		p.breakerOpen.Set(1)
		return
	}
	p.breakerOpen.Set(0)
}
