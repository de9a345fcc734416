// Package llm wraps the Gemini API behind a non-throwing completion client.
//
// Reply never returns an error: transient failures are retried, and anything
// that still fails resolves to a fixed fallback string so a model outage
// degrades the chat experience instead of breaking it.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spurhq/spurbot/internal/conversation"
	"github.com/spurhq/spurbot/internal/log"
)

// FallbackReply is returned whenever the model cannot produce a usable
// answer. Its wording is part of the product surface; do not edit casually.
const FallbackReply = "I apologize, but I'm currently experiencing a momentary system delay. Please try your question again in a few seconds."

// Generator is the slice of the genai SDK the client depends on.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config contains the parameters for a completion client.
type Config struct {
	APIKey      string
	ModelName   string
	Temperature float32
	MaxTokens   int32
	Timeout     time.Duration // Per-call deadline covering all retry attempts

	Retry       RetryConfig   // Zero-value uses DefaultRetryConfig
	RateLimiter *rate.Limiter // Optional; nil uses a default limiter
	Logger      log.Logger
}

// Client generates support replies from conversation history.
type Client struct {
	models      Generator
	modelName   string
	temperature float32
	maxTokens   int32
	timeout     time.Duration

	retry   RetryConfig
	limiter *rate.Limiter
	logger  log.Logger
}

// NewClient creates a completion client backed by the Gemini API.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return New(gc.Models, cfg), nil
}

// New creates a completion client on an existing generator. Tests use this
// to substitute a fake for the Gemini API.
func New(models Generator, cfg Config) *Client {
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		// 10 req/s sustained, burst of 20
		limiter = rate.NewLimiter(10, 20)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		models:      models,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		retry:       retry,
		limiter:     limiter,
		logger:      logger,
	}
}

// Reply generates the assistant's answer to message given the prior turns.
//
// The boolean reports degraded mode: true means the returned text is
// FallbackReply rather than a model answer. Reply never returns an error;
// callers persist the result either way.
func (c *Client) Reply(ctx context.Context, history []conversation.Message, message string) (string, bool) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Sender == conversation.SenderAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.generateWithRetry(ctx, contents, config)
	if err != nil {
		c.logger.Error("completion failed, serving fallback", "error", err)
		return FallbackReply, true
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.logger.Warn("model returned empty response, serving fallback")
		return FallbackReply, true
	}
	return text, false
}

// generateWithRetry calls the model with exponential backoff. Each attempt
// passes through the rate limiter, retries included.
func (c *Client) generateWithRetry(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := c.models.GenerateContent(ctx, c.modelName, contents, config)
		if err == nil {
			c.logger.Debug("completion succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generate content: %w", err)
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after transient error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate content after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}
