// Package utils provides token counting and JSON value helpers.
package utils

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts prompt tokens. Every provider is approximated with the GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. The model name is only used in errors.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

func sharedCounter() *TokenCounter {
	defaultCounterOnce.Do(func() {
		c, err := NewTokenCounter("default")
		if err != nil {
			c = &TokenCounter{}
		}
		defaultCounter = c
	})
	return defaultCounter
}

// CountTokens returns the number of tokens in text, or len/4 when no codec is available.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountTokensSimple counts with a shared GPT-4 codec.
func CountTokensSimple(text string) int {
	return sharedCounter().CountTokens(text)
}

// TruncateToTokenLimit shortens text proportionally until it is within limit.
// The cut lands on a rune boundary and is marked with "...".
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	current := tc.CountTokens(text)
	if current <= limit {
		return text
	}

	ratio := float64(limit) / float64(current)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	for charLimit > 0 && !utf8.RuneStart(text[charLimit]) {
		charLimit--
	}
	if charLimit >= len(text) {
		return text
	}
	return text[:charLimit] + "..."
}

// TruncateTokensSimple truncates with the shared codec.
func TruncateTokensSimple(text string, limit int) string {
	return sharedCounter().TruncateToTokenLimit(text, limit)
}
