package upstream

import (
	"context"
	"encoding/json"
	"strings"

	"assistant/pkg/upstream/llm"
)

const offlineModel = "offline"

const offlineReply = "I'm running in offline mode, so I can only handle built-in commands right now."

type offlineClient struct{}

// NewOfflineClient answers every prompt with a general command. Used by the mock provider.
func NewOfflineClient() llm.Client {
	return offlineClient{}
}

func (offlineClient) Complete(_ context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	text := in.Text()
	if idx := strings.LastIndex(text, "User input:"); idx >= 0 {
		text = strings.TrimSpace(text[idx+len("User input:"):])
	}
	body, err := json.Marshal(map[string]string{
		"type":      "general",
		"userInput": text,
		"response":  offlineReply,
	})
	if err != nil {
		return llm.CompletionResponse{}, err //nolint:wrapcheck // marshal of a string map cannot fail
	}
	return llm.CompletionResponse{Content: string(body), StopReason: "end_turn"}, nil
}

func (offlineClient) GetModelName() string {
	return offlineModel
}
