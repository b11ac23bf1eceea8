// Package ollama provides the Ollama client for local model runtimes.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

// DefaultHost is used when the configured host cannot be parsed.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client to implement llm.Client.
type Client struct {
	client *api.Client
	model  string
}

// NewOllamaClientWithModel creates a new Ollama client. hostURL is the server URL, e.g. "http://localhost:11434".
func NewOllamaClientWithModel(hostURL, model string) llm.Client {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		parsedURL, _ = url.Parse(DefaultHost)
	}

	return &Client{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Complete implements the llm.Client interface.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		messages = append(messages, api.Message{
			Role:    string(in.Messages[i].Role),
			Content: in.Messages[i].Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	return llm.CompletionResponse{
		Content:    response.Message.Content,
		StopReason: getStopReason(&response),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

func getStopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}
	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

// classifyError converts Ollama errors to our error types.
func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llmerrors.NewErrorWithStatus(llmerrors.TypeForStatus(statusErr.StatusCode), statusErr.StatusCode,
			fmt.Sprintf("Ollama API error: %s", statusErr.ErrorMessage))
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeTransient, http.StatusServiceUnavailable,
			fmt.Sprintf("Ollama server not reachable: %v", err))
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeBadPrompt, http.StatusNotFound,
			fmt.Sprintf("Ollama model not found: %v", err))
	default:
		return llmerrors.Classify("Ollama", err)
	}
}
