package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// delayFloor is the reactive delay below which backoff resets to zero and
// the client runs at full speed again.
const delayFloor = 100 * time.Millisecond

// RetryPolicy holds the resilience tuning for a RateLimitedClient. All
// values are supplied by configuration; none are computed here.
type RetryPolicy struct {
	// MaxRetries is the attempt budget per sub-batch for throttling signals.
	MaxRetries int
	// InitialDelay seeds both the reactive backoff state and the
	// per-attempt retry sleep.
	InitialDelay time.Duration
	// MaxDelay caps the reactive delay and the retry sleep.
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay on each consecutive throttle (>1).
	BackoffFactor float64
	// RecoveryFactor shrinks the delay after consecutive successes (<1).
	RecoveryFactor float64
	// TransientRetries is the bounded retry budget for transient faults.
	TransientRetries int
	// TransientDelay is the short fixed sleep between transient retries.
	TransientDelay time.Duration
	// MaxRequestsPerSecond optionally spaces outbound calls proactively.
	// Zero disables spacing; backoff then remains purely reactive.
	MaxRequestsPerSecond float64
}

// DefaultRetryPolicy returns the default resilience tuning.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:       5,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         10 * time.Second,
		BackoffFactor:    2.0,
		RecoveryFactor:   0.8,
		TransientRetries: 2,
		TransientDelay:   time.Second,
	}
}

func (p *RetryPolicy) withDefaults() *RetryPolicy {
	out := *p
	if out.MaxRetries <= 0 {
		out.MaxRetries = 5
	}
	if out.InitialDelay <= 0 {
		out.InitialDelay = 500 * time.Millisecond
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 10 * time.Second
	}
	if out.BackoffFactor <= 1 {
		out.BackoffFactor = 2.0
	}
	if out.RecoveryFactor <= 0 || out.RecoveryFactor >= 1 {
		out.RecoveryFactor = 0.8
	}
	if out.TransientRetries < 0 {
		out.TransientRetries = 2
	}
	if out.TransientDelay <= 0 {
		out.TransientDelay = time.Second
	}
	return &out
}

// RateLimitedClient wraps one backend Client and absorbs its rate limiting.
//
// The backoff is reactive: the delay grows only after the backend signals
// throttling and shrinks again after consecutive successes, so a healthy
// backend is called with no preemptive wait at all.
type RateLimitedClient struct {
	backend    Client
	profile    ModelProfile
	policy     *RetryPolicy
	limiter    *rate.Limiter
	dispatcher *Dispatcher
	events     Events
	logger     *slog.Logger
	name       string

	mu                   sync.Mutex
	currentDelay         time.Duration
	consecutiveSuccesses int
}

// RateLimitedOption configures a RateLimitedClient.
type RateLimitedOption func(*RateLimitedClient)

// WithName sets the provider name used in events and logs.
func WithName(name string) RateLimitedOption {
	return func(c *RateLimitedClient) {
		c.name = name
	}
}

// WithEvents sets the observability hook receiver.
func WithEvents(events Events) RateLimitedOption {
	return func(c *RateLimitedClient) {
		if events != nil {
			c.events = events
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RateLimitedOption {
	return func(c *RateLimitedClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDispatcher runs backend calls on the given bounded worker pool instead
// of the caller's goroutine.
func WithDispatcher(d *Dispatcher) RateLimitedOption {
	return func(c *RateLimitedClient) {
		c.dispatcher = d
	}
}

// NewRateLimitedClient wraps backend with batching, reactive backoff and
// error classification. A nil policy uses DefaultRetryPolicy.
func NewRateLimitedClient(backend Client, policy *RetryPolicy, opts ...RateLimitedOption) *RateLimitedClient {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	policy = policy.withDefaults()

	c := &RateLimitedClient{
		backend: backend,
		policy:  policy,
		events:  NopEvents{},
		logger:  slog.Default(),
	}
	if profiled, ok := backend.(interface{ Profile() ModelProfile }); ok {
		c.profile = profiled.Profile()
	}
	if c.name == "" {
		c.name = c.profile.Model
	}
	if policy.MaxRequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(policy.MaxRequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed generates embeddings for texts, splitting into sub-batches of at
// most the profile's batch size. The result is 1:1 and order-preserving
// with the input; a failed call returns no partial vectors.
func (c *RateLimitedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	size := c.profile.batchSize()
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *RateLimitedClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// Dimensions returns the backend's vector dimension.
func (c *RateLimitedClient) Dimensions() int {
	return c.backend.Dimensions()
}

// Close closes the underlying backend. A shared dispatcher is not closed
// here; its owner releases it.
func (c *RateLimitedClient) Close() error {
	return c.backend.Close()
}

// embedBatch runs the retry loop for one sub-batch.
func (c *RateLimitedClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	throttleAttempts := 0
	transientAttempts := 0

	for {
		if err := c.waitBeforeCall(ctx); err != nil {
			return nil, err
		}

		vectors, err := c.call(ctx, texts)

		switch classify(err) {
		case outcomeSuccess:
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("embedding backend %s returned %d vectors for %d texts", c.name, len(vectors), len(texts))
			}
			c.handleSuccess()
			return vectors, nil

		case outcomeCancelled:
			return nil, err

		case outcomeThrottled:
			lastErr = err
			c.handleThrottle(err)
			throttleAttempts++
			if throttleAttempts >= c.policy.MaxRetries {
				return nil, NewThrottleError(throttleAttempts, lastErr)
			}
			delay := c.retrySleep(throttleAttempts - 1)
			c.logger.Warn("embedding call throttled, retrying",
				"provider", c.name, "attempt", throttleAttempts, "max_retries", c.policy.MaxRetries, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}

		case outcomeFatalConfig:
			return nil, asFatal(err)

		case outcomeTransient:
			lastErr = err
			transientAttempts++
			if transientAttempts > c.policy.TransientRetries {
				return nil, NewTransientError(transientAttempts, lastErr)
			}
			c.logger.Warn("transient embedding failure, retrying",
				"provider", c.name, "attempt", transientAttempts, "err", err)
			if err := sleepCtx(ctx, c.policy.TransientDelay); err != nil {
				return nil, err
			}
		}
	}
}

// call invokes the backend, via the worker pool when one is configured.
func (c *RateLimitedClient) call(ctx context.Context, texts []string) ([][]float32, error) {
	if c.dispatcher == nil {
		return c.backend.Embed(ctx, texts)
	}
	return c.dispatcher.Run(ctx, func() ([][]float32, error) {
		return c.backend.Embed(ctx, texts)
	})
}

// waitBeforeCall applies the current reactive delay, then the optional
// proactive request spacing. Once the backend is healthy the reactive delay
// is zero and this costs nothing.
func (c *RateLimitedClient) waitBeforeCall(ctx context.Context) error {
	c.mu.Lock()
	delay := c.currentDelay
	c.mu.Unlock()

	if delay > 0 {
		c.logger.Debug("applying rate limit delay", "provider", c.name, "delay", delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// handleSuccess shrinks the reactive delay after two consecutive successes
// and resets it entirely once it falls below the floor.
func (c *RateLimitedClient) handleSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentDelay == 0 {
		return
	}
	c.consecutiveSuccesses++
	if c.consecutiveSuccesses < 2 {
		return
	}
	previous := c.currentDelay
	c.currentDelay = time.Duration(float64(c.currentDelay) * c.policy.RecoveryFactor)
	if c.currentDelay < delayFloor {
		c.currentDelay = 0
		c.consecutiveSuccesses = 0
	}
	c.events.DelayChanged(c.name, previous, c.currentDelay)
}

// handleThrottle grows the reactive delay in response to a rate-limit
// signal.
func (c *RateLimitedClient) handleThrottle(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveSuccesses = 0
	previous := c.currentDelay
	if c.currentDelay == 0 {
		c.currentDelay = c.policy.InitialDelay
	} else {
		c.currentDelay = time.Duration(float64(c.currentDelay) * c.policy.BackoffFactor)
		if c.currentDelay > c.policy.MaxDelay {
			c.currentDelay = c.policy.MaxDelay
		}
	}
	c.events.ThrottleDetected(c.name, err)
	c.events.DelayChanged(c.name, previous, c.currentDelay)
}

// retrySleep returns the per-attempt retry sleep: InitialDelay scaled
// exponentially by attempt, capped at MaxDelay.
func (c *RateLimitedClient) retrySleep(attempt int) time.Duration {
	delay := float64(c.policy.InitialDelay) * math.Pow(c.policy.BackoffFactor, float64(attempt))
	if delay > float64(c.policy.MaxDelay) {
		delay = float64(c.policy.MaxDelay)
	}
	return time.Duration(delay)
}

// currentBackoffDelay reports the reactive delay, for observability.
func (c *RateLimitedClient) currentBackoffDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentDelay
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
	}
}
