package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

func TestBuildInput(t *testing.T) {
	got := buildInput([]llm.CompletionMessage{
		llm.NewSystemMessage("Resolve commands"),
		llm.NewUserMessage("what time is it"),
	})
	want := "System: Resolve commands\n\nwhat time is it"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestGetModelName(t *testing.T) {
	client := NewClientWithModel("test-key", "gpt-4o-mini")
	if client.GetModelName() != "gpt-4o-mini" {
		t.Errorf("Expected gpt-4o-mini, got %s", client.GetModelName())
	}
}

func TestCompleteClassifiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad prompt","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewClientWithModel("test-key", "gpt-4o-mini",
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	_, err := client.Complete(context.Background(), llm.NewPromptRequest("hello"))
	if err == nil {
		t.Fatal("Expected error from 400 response")
	}
	if got := llmerrors.StatusOf(err); got != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d (%v)", got, err)
	}
	if !llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt) {
		t.Errorf("Expected bad prompt classification, got %v", llmerrors.TypeOf(err))
	}
}
