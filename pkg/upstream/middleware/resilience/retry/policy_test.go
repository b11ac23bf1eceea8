package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
	"assistant/pkg/upstream/middleware/resilience/circuit"
)

func TestShouldRetry_NilError(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("Expected false for nil error")
	}
}

func TestShouldRetry_ContextErrors(t *testing.T) {
	for _, err := range []error{
		context.Canceled,
		fmt.Errorf("attempt: %w", context.DeadlineExceeded),
		llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTimeout, context.DeadlineExceeded, "timed out"),
	} {
		if ShouldRetry(err) {
			t.Errorf("Expected false for %v", err)
		}
	}
}

func TestShouldRetry_Statuses(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true}, {500, true}, {502, true}, {503, true}, {504, true},
		{400, false}, {401, false}, {403, false}, {404, false}, {501, false},
	}

	for _, tt := range tests {
		err := llmerrors.NewErrorWithStatus(llmerrors.TypeForStatus(tt.status), tt.status, "status")
		if got := ShouldRetry(err); got != tt.want {
			t.Errorf("ShouldRetry(status %d) = %v, expected %v", tt.status, got, tt.want)
		}
	}
}

func TestShouldRetry_RateLimitWithoutStatus(t *testing.T) {
	err := &llmerrors.Error{Type: llmerrors.ErrorTypeRateLimit, Message: "quota exceeded"}
	if !ShouldRetry(err) {
		t.Error("Expected true for rate limit error")
	}
}

func TestShouldRetry_UnclassifiedStrings(t *testing.T) {
	if !ShouldRetry(errors.New("HTTP 503 Service Unavailable")) {
		t.Error("Expected true for unclassified 503")
	}
	if ShouldRetry(errors.New("HTTP 401 Unauthorized")) {
		t.Error("Expected false for unclassified 401")
	}
	if ShouldRetry(errors.New("something odd")) {
		t.Error("Expected false for unknown error")
	}
}

func TestShouldRetry_CircuitError(t *testing.T) {
	if ShouldRetry(&circuit.Error{State: circuit.Open}) {
		t.Error("Expected false for circuit breaker error")
	}
}

func noJitter(time.Duration) time.Duration { return 0 }

func TestCalculateDelay(t *testing.T) {
	p := NewPolicy(DefaultConfig, nil, WithJitter(noJitter))

	want := map[int]time.Duration{
		1:  0,
		2:  2 * time.Second,
		3:  4 * time.Second,
		4:  8 * time.Second,
		5:  16 * time.Second,
		6:  32 * time.Second,
		7:  60 * time.Second,
		50: 60 * time.Second,
	}
	for attempt, expected := range want {
		if got := p.CalculateDelay(attempt); got != expected {
			t.Errorf("CalculateDelay(%d) = %v, expected %v", attempt, got, expected)
		}
	}
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	p := NewPolicy(DefaultConfig, nil)

	for i := 0; i < 200; i++ {
		d := p.CalculateDelay(3)
		if d < 4*time.Second || d >= 5*time.Second {
			t.Fatalf("Expected delay in [4s, 5s), got %v", d)
		}
	}
	if d := p.CalculateDelay(8); d != 60*time.Second {
		t.Errorf("Expected capped delay of 60s, got %v", d)
	}
}

type scriptedClient struct {
	errs  []error
	calls int
}

func (s *scriptedClient) Complete(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return llm.CompletionResponse{}, s.errs[s.calls-1]
	}
	return llm.CompletionResponse{Content: "ok"}, nil
}

func (s *scriptedClient) GetModelName() string { return "scripted" }

type sleepRecorder struct{ waits []time.Duration }

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func status(code int) error {
	return llmerrors.NewErrorWithStatus(llmerrors.TypeForStatus(code), code, "scripted failure")
}

func TestMiddlewareRetriesUntilSuccess(t *testing.T) {
	rec := &sleepRecorder{}
	base := &scriptedClient{errs: []error{status(503), status(503), status(503)}}
	client := llm.Chain(base, Middleware(NewPolicy(DefaultConfig, nil, WithSleeper(rec.Sleep), WithJitter(noJitter))))

	resp, err := client.Complete(context.Background(), llm.NewPromptRequest("hi"))
	if err != nil {
		t.Fatalf("Expected success on 4th attempt, got %v", err)
	}
	if resp.Content != "ok" || base.calls != 4 {
		t.Errorf("Expected 4 calls ending in ok, got %d calls (%q)", base.calls, resp.Content)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(rec.waits) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), rec.waits)
	}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Errorf("Wait %d: expected %v, got %v", i, want[i], rec.waits[i])
		}
	}
}

func TestMiddlewareBoundsAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = status(429)
	}
	base := &scriptedClient{errs: errs}
	client := llm.Chain(base, Middleware(NewPolicy(DefaultConfig, nil, WithSleeper(rec.Sleep))))

	_, err := client.Complete(context.Background(), llm.NewPromptRequest("hi"))

	var upErr *llmerrors.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Expected *UpstreamError, got %v", err)
	}
	if base.calls != 5 {
		t.Errorf("Expected exactly 5 attempts, got %d", base.calls)
	}
	if upErr.Attempt != 5 || upErr.Status != 429 {
		t.Errorf("Expected attempt 5 status 429, got attempt %d status %d", upErr.Attempt, upErr.Status)
	}
}

func TestMiddlewareNonRetryableFailsFast(t *testing.T) {
	rec := &sleepRecorder{}
	base := &scriptedClient{errs: []error{status(400)}}
	client := llm.Chain(base, Middleware(NewPolicy(DefaultConfig, nil, WithSleeper(rec.Sleep))))

	_, err := client.Complete(context.Background(), llm.NewPromptRequest("hi"))
	if err == nil {
		t.Fatal("Expected error")
	}
	if base.calls != 1 || len(rec.waits) != 0 {
		t.Errorf("Expected one attempt and no waits, got %d calls, %d waits", base.calls, len(rec.waits))
	}
}

func TestMiddlewareStopsOnCancelledSleep(t *testing.T) {
	base := &scriptedClient{errs: []error{status(503), status(503)}}
	cancelled := func(context.Context, time.Duration) error { return context.Canceled }
	client := llm.Chain(base, Middleware(NewPolicy(DefaultConfig, nil, WithSleeper(cancelled))))

	_, err := client.Complete(context.Background(), llm.NewPromptRequest("hi"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation, got %v", err)
	}
	if base.calls != 1 {
		t.Errorf("Expected no attempt after cancelled wait, got %d calls", base.calls)
	}
}

func TestContextSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := ContextSleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected ContextSleep to return promptly")
	}
}
