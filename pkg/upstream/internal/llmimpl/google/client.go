// Package google provides the Gemini client for command resolution.
package google

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

const providerName = "Gemini"

// GeminiClient wraps the Google GenAI client to implement llm.Client.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
	mu     sync.Mutex
}

// NewGeminiClientWithModel creates a new Gemini client (raw client, middleware applied at higher level).
func NewGeminiClientWithModel(apiKey, model string) llm.Client {
	// Client creation requires a context, so it is deferred to the first Complete.
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
	}
}

func (g *GeminiClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, fmt.Sprintf("failed to create Gemini client: %v", err))
	}
	g.client = client
	return client, nil
}

// Complete implements the llm.Client interface.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (g *GeminiClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return llm.CompletionResponse{}, err
	}

	contents, systemInstruction, err := convertMessagesToGemini(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	//nolint:gosec // MaxTokens validated at config load
	config := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: int32(in.MaxTokens),
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(providerName, err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	return llm.CompletionResponse{
		Content:    result.Text(),
		StopReason: getStopReason(result),
	}, nil
}

// GetModelName returns the model name for this client.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

// convertMessagesToGemini splits system messages into the system instruction.
func convertMessagesToGemini(messages []llm.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	var systemInstruction string
	var contents []*genai.Content
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
		case llm.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}
	if len(contents) == 0 {
		return nil, "", fmt.Errorf("must have at least one user message")
	}
	return contents, systemInstruction, nil
}

func getStopReason(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) == 0 || result.Candidates[0] == nil {
		return "unknown"
	}
	switch result.Candidates[0].FinishReason {
	case genai.FinishReasonMaxTokens:
		return "max_tokens"
	case genai.FinishReasonStop, "":
		return "end_turn"
	default:
		return string(result.Candidates[0].FinishReason)
	}
}
