package mocks

import (
	"context"
	"sync"

	"assistant/pkg/imagegen"
)

// ImageClient implements imagegen.Client with a fixed output or error.
type ImageClient struct {
	mu      sync.Mutex
	prompts []string

	Output imagegen.Output
	Err    error
}

// Generate records description and returns the scripted result.
func (c *ImageClient) Generate(_ context.Context, description string) (imagegen.Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, description)
	if c.Err != nil {
		return imagegen.Output{}, c.Err
	}
	return c.Output, nil
}

// Prompts returns the descriptions passed to Generate.
func (c *ImageClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}
