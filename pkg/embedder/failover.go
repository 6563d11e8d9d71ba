package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Role identifies which provider served the most recent request.
type Role string

const (
	// RolePrimary means the primary provider is serving requests.
	RolePrimary Role = "primary"
	// RoleBackup means requests are being served by the backup provider.
	RoleBackup Role = "backup"
)

// FailoverConfig holds the tuning for a FailoverProvider.
type FailoverConfig struct {
	// Cooldown is how long the primary is skipped after a failure.
	Cooldown time.Duration

	// RecoveryProbe enables one direct re-attempt of the primary after
	// both providers failed, for clearly transient connectivity symptoms
	// only. It is a latency heuristic, not part of the failover contract,
	// and can be disabled.
	RecoveryProbe bool
}

// DefaultFailoverConfig returns the default failover tuning.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		Cooldown:      5 * time.Minute,
		RecoveryProbe: true,
	}
}

// FailoverProvider serves embedding requests from a primary client and
// fails over to a backup transparently when the primary is unhealthy.
//
// After a primary failure the provider enters a cooldown window during
// which the backup is called directly; once the window elapses the primary
// is attempted again and, on success, resumes serving. Callers see no
// difference between primary- and backup-served results.
type FailoverProvider struct {
	primary     Client
	backup      Client
	primaryName string
	backupName  string
	config      FailoverConfig
	events      Events
	logger      *slog.Logger

	mu                 sync.Mutex
	lastPrimaryFailure time.Time
	role               Role

	// now is replaced in tests.
	now func() time.Time
}

// FailoverOption configures a FailoverProvider.
type FailoverOption func(*FailoverProvider)

// WithProviderNames sets the names used in events, logs and errors.
func WithProviderNames(primary, backup string) FailoverOption {
	return func(p *FailoverProvider) {
		p.primaryName = primary
		p.backupName = backup
	}
}

// WithFailoverEvents sets the observability hook receiver.
func WithFailoverEvents(events Events) FailoverOption {
	return func(p *FailoverProvider) {
		if events != nil {
			p.events = events
		}
	}
}

// WithFailoverLogger sets the logger.
func WithFailoverLogger(logger *slog.Logger) FailoverOption {
	return func(p *FailoverProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFailoverProvider creates a provider that serves from primary and fails
// over to backup. A zero-valued config uses DefaultFailoverConfig.
func NewFailoverProvider(primary, backup Client, config FailoverConfig, opts ...FailoverOption) *FailoverProvider {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultFailoverConfig().Cooldown
	}
	p := &FailoverProvider{
		primary:     primary,
		backup:      backup,
		primaryName: "primary",
		backupName:  "backup",
		config:      config,
		events:      NopEvents{},
		logger:      slog.Default(),
		role:        RolePrimary,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed generates embeddings for texts, transparently routing between the
// primary and backup provider.
func (p *FailoverProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if p.inCooldown() {
		vectors, err := p.backup.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("backup provider %s failed while primary %s is in cooldown: %w",
				p.backupName, p.primaryName, err)
		}
		return vectors, nil
	}

	vectors, primaryErr := p.primary.Embed(ctx, texts)
	if primaryErr == nil {
		p.markPrimaryHealthy()
		return vectors, nil
	}
	// A cancelled caller is not a provider failure.
	if errors.Is(primaryErr, context.Canceled) || errors.Is(primaryErr, context.DeadlineExceeded) {
		return nil, primaryErr
	}

	p.markPrimaryFailed(primaryErr)

	vectors, backupErr := p.backup.Embed(ctx, texts)
	if backupErr == nil {
		p.setRole(RoleBackup)
		return vectors, nil
	}
	if errors.Is(backupErr, context.Canceled) || errors.Is(backupErr, context.DeadlineExceeded) {
		return nil, backupErr
	}

	if p.config.RecoveryProbe && isConnectivityError(primaryErr) {
		if vectors, err := p.probePrimary(ctx, texts); err == nil {
			return vectors, nil
		}
	}

	aggregate := NewFailoverError(p.primaryName, p.backupName, primaryErr, backupErr)
	p.events.AllProvidersFailed(p.primaryName, p.backupName, aggregate)
	return nil, aggregate
}

// EmbedSingle generates an embedding for a single text.
func (p *FailoverProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// Dimensions returns the primary provider's vector dimension. Profiles of
// primary and backup must agree for failover to be transparent.
func (p *FailoverProvider) Dimensions() int {
	return p.primary.Dimensions()
}

// Close closes both underlying clients.
func (p *FailoverProvider) Close() error {
	return errors.Join(p.primary.Close(), p.backup.Close())
}

// ActiveRole reports which provider served the most recent request.
func (p *FailoverProvider) ActiveRole() Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

// inCooldown reports whether the primary is still inside its cooldown
// window.
func (p *FailoverProvider) inCooldown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastPrimaryFailure.IsZero() {
		return false
	}
	return p.now().Sub(p.lastPrimaryFailure) < p.config.Cooldown
}

// markPrimaryHealthy clears any cooldown and restores the primary role.
func (p *FailoverProvider) markPrimaryHealthy() {
	p.mu.Lock()
	recovered := !p.lastPrimaryFailure.IsZero() || p.role != RolePrimary
	p.lastPrimaryFailure = time.Time{}
	p.role = RolePrimary
	p.mu.Unlock()

	if recovered {
		p.events.PrimaryRecovered(p.primaryName)
	}
}

// markPrimaryFailed starts the cooldown window.
func (p *FailoverProvider) markPrimaryFailed(err error) {
	p.mu.Lock()
	p.lastPrimaryFailure = p.now()
	p.mu.Unlock()

	p.events.FailoverTriggered(p.primaryName, p.backupName, err)
}

func (p *FailoverProvider) setRole(role Role) {
	p.mu.Lock()
	p.role = role
	p.mu.Unlock()
}

// probePrimary re-attempts the primary once after a combined failure. The
// probe exists because connection-level faults often clear within the same
// request's lifetime; a success clears the cooldown and serves the caller.
func (p *FailoverProvider) probePrimary(ctx context.Context, texts []string) ([][]float32, error) {
	p.logger.Info("probing primary embedding provider for quick recovery", "provider", p.primaryName)
	vectors, err := p.primary.Embed(ctx, texts)
	if err != nil {
		p.logger.Debug("primary recovery probe failed", "provider", p.primaryName, "err", err)
		return nil, err
	}
	p.markPrimaryHealthy()
	return vectors, nil
}
