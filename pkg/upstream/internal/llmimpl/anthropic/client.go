// Package anthropic provides the Claude client for command resolution.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

const providerName = "Anthropic"

// ClaudeClient wraps the Anthropic API client to implement llm.Client.
//
//nolint:govet // Simple client struct, logical grouping preferred
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClientWithModel creates a new Claude client (raw client, middleware applied at higher level).
func NewClaudeClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeClient{
		client: anthropic.NewClient(all...),
		model:  anthropic.Model(model),
	}
}

// Complete implements the llm.Client interface.
//
//nolint:gocritic // CompletionRequest is 80 bytes but passing by value matches interface
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, userText := splitSystem(in.Messages)
	if userText == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "must have at least one user message")
	}

	maxTokens := int64(in.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userText))},
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(providerName, err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var sb strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return llm.CompletionResponse{
		Content:    sb.String(),
		StopReason: string(resp.StopReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// splitSystem moves system messages to the top-level system parameter and merges the rest into one user turn.
func splitSystem(messages []llm.CompletionMessage) (system, user string) {
	var systemParts, userParts []string
	for i := range messages {
		msg := &messages[i]
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		userParts = append(userParts, msg.Content)
	}
	return strings.Join(systemParts, "\n\n"), strings.Join(userParts, "\n\n")
}
