package embedgate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vectorfold/embedgate/pkg/alert"
	"github.com/vectorfold/embedgate/pkg/config"
	"github.com/vectorfold/embedgate/pkg/embedder"
)

// Gateway is a fully assembled resilient embedding provider. It implements
// embedder.Client and owns the worker pool shared by its clients.
type Gateway struct {
	client     embedder.Client
	failover   *embedder.FailoverProvider
	dispatcher *embedder.Dispatcher
}

// New builds a Gateway from configuration: primary and backup backends,
// each wrapped in a rate-limited client sharing one bounded worker pool,
// composed into a failover provider and, when enabled, a circuit breaker.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var alerter alert.Alerter = &alert.NoOpAlerter{}
	if cfg.Alert.Enabled {
		alerter = alert.NewEmailAlerter(cfg.Alert)
	}
	events := newAlertingEvents(embedder.NewLogEvents(logger), alerter)

	dispatcher, err := embedder.NewDispatcher(cfg.Resilience.PoolSize)
	if err != nil {
		return nil, err
	}

	primary, err := buildClient(ctx, cfg.Embedding.Primary, cfg.Resilience, dispatcher, events, logger)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("failed to build primary embedding client: %w", err)
	}
	backup, err := buildClient(ctx, cfg.Embedding.Backup, cfg.Resilience, dispatcher, events, logger)
	if err != nil {
		_ = primary.Close()
		dispatcher.Close()
		return nil, fmt.Errorf("failed to build backup embedding client: %w", err)
	}

	failover := embedder.NewFailoverProvider(primary, backup,
		embedder.FailoverConfig{
			Cooldown:      cfg.Resilience.Cooldown(),
			RecoveryProbe: cfg.Resilience.RecoveryProbe,
		},
		embedder.WithProviderNames(
			backendName(cfg.Embedding.Primary),
			backendName(cfg.Embedding.Backup),
		),
		embedder.WithFailoverEvents(events),
		embedder.WithFailoverLogger(logger),
	)

	var client embedder.Client = failover
	if cfg.Breaker.Enabled {
		client = embedder.NewBreakerClient(client, cfg.Breaker, alerter, logger, "embedding")
	}

	return &Gateway{
		client:     client,
		failover:   failover,
		dispatcher: dispatcher,
	}, nil
}

// Embed implements embedder.Client.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.client.Embed(ctx, texts)
}

// EmbedSingle implements embedder.Client.
func (g *Gateway) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return g.client.EmbedSingle(ctx, text)
}

// Dimensions implements embedder.Client.
func (g *Gateway) Dimensions() int {
	return g.client.Dimensions()
}

// ActiveRole reports which provider served the most recent request.
func (g *Gateway) ActiveRole() embedder.Role {
	return g.failover.ActiveRole()
}

// Close releases both backends and the worker pool.
func (g *Gateway) Close() error {
	err := g.client.Close()
	g.dispatcher.Close()
	return err
}

// buildClient constructs one backend adapter and wraps it with rate
// limiting.
func buildClient(ctx context.Context, bc config.BackendConfig, rc config.ResilienceConfig, dispatcher *embedder.Dispatcher, events embedder.Events, logger *slog.Logger) (embedder.Client, error) {
	backend, err := newBackend(ctx, bc)
	if err != nil {
		return nil, err
	}

	policy := &embedder.RetryPolicy{
		MaxRetries:           rc.MaxRetries,
		InitialDelay:         rc.InitialDelay(),
		MaxDelay:             rc.MaxDelay(),
		BackoffFactor:        rc.BackoffFactor,
		RecoveryFactor:       rc.RecoveryFactor,
		TransientRetries:     rc.TransientRetries,
		TransientDelay:       rc.TransientSleep(),
		MaxRequestsPerSecond: rc.MaxRequestsPerSecond,
	}

	return embedder.NewRateLimitedClient(backend, policy,
		embedder.WithName(backendName(bc)),
		embedder.WithEvents(events),
		embedder.WithLogger(logger),
		embedder.WithDispatcher(dispatcher),
	), nil
}

// newBackend selects and constructs the adapter for one backend stanza.
func newBackend(ctx context.Context, bc config.BackendConfig) (embedder.Client, error) {
	profile := embedder.ModelProfile{
		Model:        bc.Model,
		MaxBatchSize: bc.MaxBatchSize,
		Dimensions:   bc.Dimensions,
		Normalize:    bc.Normalize,
		InputVariant: embedder.InputVariant(bc.InputVariant),
	}

	switch strings.ToLower(bc.Provider) {
	case "openai":
		return embedder.NewOpenAIBackend(bc.APIKey, bc.BaseURL, profile), nil
	case "gemini":
		return embedder.NewGeminiBackend(ctx, bc.APIKey, profile)
	case "langchain":
		return embedder.NewLangChainBackend(bc.BaseURL, bc.APIKey, profile)
	case "local":
		return embedder.NewLocalBackend(profile)
	default:
		return nil, embedder.NewConfigError(
			fmt.Sprintf("unknown embedding provider %q", bc.Provider),
			"supported providers are openai, gemini, langchain, local",
			embedder.ErrInvalidProvider,
		)
	}
}

// backendName builds the provider name used in events, logs and errors.
func backendName(bc config.BackendConfig) string {
	if bc.Model == "" {
		return bc.Provider
	}
	return bc.Provider + ":" + bc.Model
}

// alertingEvents forwards all events to the wrapped receiver and raises
// operator alerts for the ones worth waking someone up for.
type alertingEvents struct {
	next    embedder.Events
	alerter alert.Alerter
}

func newAlertingEvents(next embedder.Events, alerter alert.Alerter) *alertingEvents {
	return &alertingEvents{next: next, alerter: alerter}
}

func (a *alertingEvents) ThrottleDetected(provider string, err error) {
	a.next.ThrottleDetected(provider, err)
}

func (a *alertingEvents) DelayChanged(provider string, previous, current time.Duration) {
	a.next.DelayChanged(provider, previous, current)
}

func (a *alertingEvents) FailoverTriggered(primary, backup string, err error) {
	a.next.FailoverTriggered(primary, backup, err)
	_ = a.alerter.Alert(
		fmt.Sprintf("Embedding failover: %s -> %s", primary, backup),
		fmt.Sprintf("Primary embedding provider %s failed and requests are being served by %s.\n\nError: %v", primary, backup, err),
	)
}

func (a *alertingEvents) PrimaryRecovered(primary string) {
	a.next.PrimaryRecovered(primary)
}

func (a *alertingEvents) AllProvidersFailed(primary, backup string, err error) {
	a.next.AllProvidersFailed(primary, backup, err)
	_ = a.alerter.Alert(
		"URGENT: All embedding providers failed",
		fmt.Sprintf("Both %s and %s failed to serve an embedding request.\n\nError: %v", primary, backup, err),
	)
}
