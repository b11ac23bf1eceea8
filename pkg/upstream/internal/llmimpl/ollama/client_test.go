package ollama

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

func TestNewOllamaClientWithModel(t *testing.T) {
	tests := []struct {
		name    string
		hostURL string
		model   string
	}{
		{name: "valid host and model", hostURL: "http://localhost:11434", model: "phi4:latest"},
		{name: "custom host", hostURL: "http://192.168.1.100:11434", model: "llama3.1:8b"},
		{name: "invalid URL falls back to default", hostURL: "not-a-valid-url", model: "mistral:7b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewOllamaClientWithModel(tt.hostURL, tt.model)
			require.NotNil(t, client)
			assert.Equal(t, tt.model, client.GetModelName())
		})
	}
}

func TestCompleteEmptyMessages(t *testing.T) {
	client := NewOllamaClientWithModel(DefaultHost, "phi4")
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}

func TestGetStopReason(t *testing.T) {
	assert.Equal(t, "incomplete", getStopReason(&api.ChatResponse{}))
	assert.Equal(t, "end_turn", getStopReason(&api.ChatResponse{Done: true, DoneReason: "stop"}))
	assert.Equal(t, "max_tokens", getStopReason(&api.ChatResponse{Done: true, DoneReason: "length"}))
}

func TestClassifyError(t *testing.T) {
	err := classifyError(api.StatusError{StatusCode: 503, ErrorMessage: "busy"})
	assert.Equal(t, 503, llmerrors.StatusOf(err))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeTransient))

	err = classifyError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, http.StatusServiceUnavailable, llmerrors.StatusOf(err))

	err = classifyError(errors.New("model \"x\" not found"))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}
