// Package llm provides the provider-neutral language model client interface and middleware chaining.
package llm

import (
	"context"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	RoleSystem CompletionRole = "system"
	RoleUser   CompletionRole = "user"
)

// Generation defaults for command resolution.
const (
	DefaultMaxTokens   = 1024
	TemperatureDefault = 0.2
)

// CompletionMessage is one message of a completion request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest is a single upstream model invocation.
type CompletionRequest struct {
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is the model's free text reply.
type CompletionResponse struct {
	Content    string
	StopReason string
}

// Client defines the interface for language model interactions.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}

// NewPromptRequest builds a single-user-message request with default limits.
func NewPromptRequest(prompt string) CompletionRequest {
	return CompletionRequest{
		Messages:    []CompletionMessage{NewUserMessage(prompt)},
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// Text concatenates the request messages, system first, for providers that take a single prompt.
func (r CompletionRequest) Text() string {
	var system, user string
	for _, m := range r.Messages {
		switch m.Role {
		case RoleSystem:
			system += m.Content + "\n\n"
		default:
			user += m.Content
		}
	}
	return system + user
}

// Config carries the settings shared by provider clients.
type Config struct {
	APIKey    string
	ModelName string
	MaxTokens int
	BaseURL   string
}

func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	return nil
}
