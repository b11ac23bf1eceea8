// Package openai provides the OpenAI client using the official OpenAI Go package.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

const providerName = "OpenAI"

// Client wraps the official OpenAI client to implement llm.Client.
//
//nolint:govet // Simple struct, field alignment not critical
type Client struct {
	client openai.Client
	model  string
}

// NewClientWithModel creates a new OpenAI client (raw client, middleware applied at higher level).
func NewClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: openai.NewClient(all...),
		model:  model,
	}
}

// Complete implements llm.Client using the Responses API.
//
//nolint:gocritic // 80 bytes is reasonable for interface compliance
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	params := responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(buildInput(in.Messages))},
	}
	if in.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(in.MaxTokens))
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(providerName, err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	return llm.CompletionResponse{
		Content:    resp.OutputText(),
		StopReason: string(resp.Status),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

// buildInput flattens messages into the single input string the Responses API takes.
func buildInput(messages []llm.CompletionMessage) string {
	var sb strings.Builder
	for i := range messages {
		msg := &messages[i]
		if msg.Role == llm.RoleSystem {
			fmt.Fprintf(&sb, "System: %s\n\n", msg.Content)
			continue
		}
		sb.WriteString(msg.Content)
	}
	return sb.String()
}
