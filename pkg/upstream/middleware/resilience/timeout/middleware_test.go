package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"assistant/pkg/upstream/llm"
)

type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	<-ctx.Done()
	return llm.CompletionResponse{}, ctx.Err()
}

func (blockingClient) GetModelName() string { return "blocking" }

func TestMiddlewareAppliesDeadline(t *testing.T) {
	client := llm.Chain(blockingClient{}, Middleware(20*time.Millisecond))

	start := time.Now()
	_, err := client.Complete(context.Background(), llm.NewPromptRequest("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected the attempt to be cut short")
	}
}
