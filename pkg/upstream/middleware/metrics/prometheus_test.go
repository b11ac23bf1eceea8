package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveCommand("app-open", "local", "ok")
	rec.ObserveCommand("app-open", "local", "ok")
	rec.ObserveCommand("search", "upstream", "error")
	rec.IncAdmissionRejection()
	rec.SetBreakerOpen(true)

	if got := testutil.ToFloat64(rec.commandsTotal.WithLabelValues("app-open", "local", "ok")); got != 2 {
		t.Errorf("Expected 2 app-open commands, got %v", got)
	}
	if got := testutil.ToFloat64(rec.admissionRejections); got != 1 {
		t.Errorf("Expected 1 rejection, got %v", got)
	}
	if got := testutil.ToFloat64(rec.breakerOpen); got != 1 {
		t.Errorf("Expected breaker gauge 1, got %v", got)
	}
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	// promauto.With must not collide across registries.
	_ = NewPrometheusRecorder(prometheus.NewRegistry())
	_ = NewPrometheusRecorder(prometheus.NewRegistry())
	_ = NewRegistry()
}

type stubClient struct{ err error }

func (s stubClient) Complete(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
	return llm.CompletionResponse{Content: "{\"type\":\"general\"}"}, s.err
}

func (s stubClient) GetModelName() string { return "stub" }

func TestMiddlewareRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	ok := llm.Chain(stubClient{}, Middleware(rec, nil, nil))
	bad := llm.Chain(stubClient{err: llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeTransient, 503, "down")}, Middleware(rec, nil, nil))

	_, _ = ok.Complete(context.Background(), llm.NewPromptRequest("hello"))
	_, err := bad.Complete(context.Background(), llm.NewPromptRequest("hello"))
	if err == nil {
		t.Fatal("Expected error to pass through")
	}

	if got := testutil.ToFloat64(rec.requestsTotal.WithLabelValues("stub", "success", "")); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(rec.requestsTotal.WithLabelValues("stub", "error", "transient")); got != 1 {
		t.Errorf("Expected 1 transient error, got %v", got)
	}
	if got := testutil.ToFloat64(rec.tokensTotal.WithLabelValues("stub", "prompt")); got <= 0 {
		t.Errorf("Expected prompt tokens recorded, got %v", got)
	}
}

func TestNopRecorder(t *testing.T) {
	rec := Nop()
	rec.ObserveRequest("m", 1, 1, true, "", time.Second)
	rec.ObserveCommand("general", "local", "ok")
	rec.SetBreakerOpen(false)
}
