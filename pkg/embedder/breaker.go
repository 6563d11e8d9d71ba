package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/vectorfold/embedgate/pkg/alert"
	"github.com/vectorfold/embedgate/pkg/config"
)

// BreakerClient wraps a Client with circuit breaking logic. When the wrapped
// client keeps failing, the breaker opens and rejects requests immediately
// instead of letting every caller ride the full retry budget. It is an
// optional layer on top of the failover provider, not a replacement for it.
type BreakerClient struct {
	client  Client
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
	logger  *slog.Logger
	name    string
}

// NewBreakerClient creates a circuit breaker around client.
func NewBreakerClient(client Client, cfg config.BreakerConfig, alerter alert.Alerter, logger *slog.Logger, name string) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit breaker %q changed status from %s to %s. Too many embedding failures detected.", name, from, to)
				_ = alerter.Alert(fmt.Sprintf("URGENT: Embedding Circuit Breaker Tripped - %s", name), msg)
			}
		},
	}

	return &BreakerClient{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(st),
		alerter: alerter,
		logger:  logger,
		name:    name,
	}
}

// Embed implements Client.
func (c *BreakerClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return resp.([][]float32), nil
}

// EmbedSingle implements Client.
func (c *BreakerClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.EmbedSingle(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]float32), nil
}

// Dimensions implements Client.
func (c *BreakerClient) Dimensions() int {
	return c.client.Dimensions()
}

// Close implements Client.
func (c *BreakerClient) Close() error {
	return c.client.Close()
}
