// Package imagegen generates images from a text description with Gemini.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"assistant/pkg/command"
	"assistant/pkg/logx"
	"assistant/pkg/upstream/llmerrors"
	"assistant/pkg/upstream/middleware/resilience/circuit"
)

// Defaults used when Options fields are zero.
const (
	DefaultModel   = "gemini-2.0-flash-preview-image-generation"
	DefaultTimeout = 60 * time.Second
)

const promptPrefix = "Generate a high-quality image based on this description: "

// ErrNoContent is returned when the response carries neither an image nor text.
var ErrNoContent = errors.New("no image or text in response")

// Output is what a generation produced. Image is nil when the model only answered in text.
type Output struct {
	Image *command.Image
	Text  string
}

// Client generates an image for a description.
type Client interface {
	Generate(ctx context.Context, description string) (Output, error)
}

// Options configures a GeminiClient.
type Options struct {
	Model   string
	Timeout time.Duration
	Breaker circuit.Breaker
	Limiter *rate.Limiter
}

type generateFunc func(ctx context.Context, model, prompt string) (*genai.GenerateContentResponse, error)

// GeminiClient implements Client on the Gemini API with TEXT and IMAGE response modalities.
type GeminiClient struct {
	apiKey   string
	opts     Options
	generate generateFunc
	logger   *logx.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a client. Calls share opts.Breaker with the command pipeline;
// a nil breaker uses circuit.Shared().
func NewGeminiClient(apiKey string, opts Options) *GeminiClient {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Breaker == nil {
		opts.Breaker = circuit.Shared()
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	c := &GeminiClient{apiKey: apiKey, opts: opts, logger: logx.NewLogger("imagegen")}
	c.generate = c.callGemini
	return c
}

func (c *GeminiClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, fmt.Sprintf("failed to create Gemini client: %v", err))
	}
	c.client = client
	return client, nil
}

func (c *GeminiClient) callGemini(ctx context.Context, model, prompt string) (*genai.GenerateContentResponse, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return nil, llmerrors.Classify("Gemini", err)
	}
	return resp, nil
}

// Generate implements Client. An open breaker fails with *circuit.Error before any call.
func (c *GeminiClient) Generate(ctx context.Context, description string) (Output, error) {
	if err := c.opts.Limiter.Wait(ctx); err != nil {
		return Output{}, fmt.Errorf("image rate limiter wait: %w", err)
	}
	if !c.opts.Breaker.Allow() {
		return Output{}, &circuit.Error{State: c.opts.Breaker.GetState()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.generate(ctx, c.opts.Model, promptPrefix+description)
	if err != nil {
		c.opts.Breaker.RecordFailure()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Output{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTimeout, err,
				fmt.Sprintf("image generation timed out after %v", c.opts.Timeout))
		}
		return Output{}, err
	}
	c.opts.Breaker.RecordSuccess()

	out, err := extractOutput(resp)
	if err != nil {
		return Output{}, err
	}
	c.logger.Info("generated %s in %v", describe(out), time.Since(start))
	return out, nil
}

// extractOutput takes the first inline image, otherwise the first text part.
func extractOutput(resp *genai.GenerateContentResponse) (Output, error) {
	if resp == nil {
		return Output{}, ErrNoContent
	}
	var text string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return Output{Image: &command.Image{
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				}, Text: text}, nil
			}
			if text == "" && part.Text != "" {
				text = part.Text
			}
		}
	}
	if text == "" {
		return Output{}, ErrNoContent
	}
	return Output{Text: text}, nil
}

func describe(out Output) string {
	if out.Image != nil {
		return fmt.Sprintf("%s image (%d bytes)", out.Image.MIMEType, len(out.Image.Data))
	}
	return "text-only answer"
}
