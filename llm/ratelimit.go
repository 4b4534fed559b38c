package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTextInterval   = 2 * time.Second
	defaultVisionInterval = 3 * time.Second
	defaultMaxRetries     = 3
	defaultRetryBackoff   = 2 * time.Second
	defaultRateBackoff    = 5 * time.Second
)

// RateLimitedClient wraps a Client with a minimum inter-call interval and a
// single retry/backoff policy. Transient failures (429, timeouts, connection
// errors) are retried with increasing delay; anything else, and retry
// exhaustion, degrades to a synthesized assistant message so the caller
// always has a well-formed reply to reason over.
type RateLimitedClient struct {
	inner        Client
	text         *rate.Limiter
	vision       *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
	rateBackoff  time.Duration
	logger       *zap.Logger
}

// RateLimitOption configures a RateLimitedClient
type RateLimitOption func(*RateLimitedClient)

// WithTextInterval sets the minimum spacing between text calls
func WithTextInterval(d time.Duration) RateLimitOption {
	return func(c *RateLimitedClient) {
		c.text = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithVisionInterval sets the minimum spacing between vision calls
func WithVisionInterval(d time.Duration) RateLimitOption {
	return func(c *RateLimitedClient) {
		c.vision = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRetries sets the maximum retry count for transient failures
func WithRetries(n int) RateLimitOption {
	return func(c *RateLimitedClient) {
		c.maxRetries = n
	}
}

// WithBackoff sets the base delays for transient and 429 retries
func WithBackoff(retry, rateLimited time.Duration) RateLimitOption {
	return func(c *RateLimitedClient) {
		c.retryBackoff = retry
		c.rateBackoff = rateLimited
	}
}

// WithLogger sets the logger used for retry/backoff diagnostics
func WithLogger(logger *zap.Logger) RateLimitOption {
	return func(c *RateLimitedClient) {
		c.logger = logger
	}
}

// NewRateLimited wraps client with rate limiting and retries
func NewRateLimited(client Client, opts ...RateLimitOption) *RateLimitedClient {
	c := &RateLimitedClient{
		inner:        client,
		text:         rate.NewLimiter(rate.Every(defaultTextInterval), 1),
		vision:       rate.NewLimiter(rate.Every(defaultVisionInterval), 1),
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
		rateBackoff:  defaultRateBackoff,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat sends a text request through the limiter and retry policy
func (c *RateLimitedClient) Chat(ctx context.Context, request *ChatRequest) (*ChatResponse, error) {
	return c.call(ctx, c.text, "text", func() (*ChatResponse, error) {
		return c.inner.Chat(ctx, request)
	})
}

// ChatVision sends a vision request; vision calls get wider spacing
func (c *RateLimitedClient) ChatVision(ctx context.Context, request *VisionRequest) (*ChatResponse, error) {
	return c.call(ctx, c.vision, "vision", func() (*ChatResponse, error) {
		return c.inner.ChatVision(ctx, request)
	})
}

// SupportsVision defers to the wrapped client
func (c *RateLimitedClient) SupportsVision() bool {
	return c.inner.SupportsVision()
}

// Close closes the wrapped client
func (c *RateLimitedClient) Close() error {
	return c.inner.Close()
}

func (c *RateLimitedClient) call(ctx context.Context, limiter *rate.Limiter, kind string, do func() (*ChatResponse, error)) (*ChatResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := do()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		switch {
		case IsRateLimited(err):
			delay := c.rateBackoff * time.Duration(attempt+1)
			c.logger.Warn("rate limited, backing off",
				zap.String("kind", kind),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if !sleepCtx(ctx, delay) {
				return nil, ctx.Err()
			}
		case IsTransient(err):
			delay := c.retryBackoff * time.Duration(attempt+1)
			c.logger.Warn("transient failure, retrying",
				zap.String("kind", kind),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
			if !sleepCtx(ctx, delay) {
				return nil, ctx.Err()
			}
		default:
			c.logger.Warn("model call failed, degrading to message",
				zap.String("kind", kind),
				zap.Error(err))
			return SynthesizeAssistant(fmt.Sprintf(
				"I ran into an API problem and couldn't complete that request (%v). Let's try again in a moment.", err)), nil
		}
	}

	c.logger.Warn("retries exhausted, degrading to message",
		zap.String("kind", kind),
		zap.Error(lastErr))
	return SynthesizeAssistant(fmt.Sprintf(
		"The model API kept failing after several retries (%v). Please give it a minute and try again.", lastErr)), nil
}

// sleepCtx sleeps for d unless ctx is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
