// Package metrics records upstream and pipeline metrics.
package metrics

import "time"

// Recorder defines the interface for recording assistant metrics.
type Recorder interface {
	// ObserveRequest records one upstream call as seen by the metrics middleware.
	ObserveRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration)

	// IncThrottle increments the throttle counter for rate limiting events.
	IncThrottle(model, reason string)

	// ObserveQueueWait records time spent waiting for rate limit availability.
	ObserveQueueWait(model string, duration time.Duration)

	// ObserveCommand records one pipeline outcome.
	ObserveCommand(kind, source, outcome string)

	// IncAdmissionRejection counts requests turned away by admission control.
	IncAdmissionRejection()

	// SetBreakerOpen exports the breaker state as a gauge.
	SetBreakerOpen(open bool)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveRequest(_ string, _, _ int, _ bool, _ string, _ time.Duration) {}

func (n *NoopRecorder) IncThrottle(_, _ string) {}

func (n *NoopRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

func (n *NoopRecorder) ObserveCommand(_, _, _ string) {}

func (n *NoopRecorder) IncAdmissionRejection() {}

func (n *NoopRecorder) SetBreakerOpen(_ bool) {}
