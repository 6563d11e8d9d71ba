package embedder

import (
	"log/slog"
	"time"
)

// Events receives structured notifications about resilience state changes.
// Implementations must be safe for concurrent use and must not block; they
// are invoked on the request path.
type Events interface {
	// ThrottleDetected fires when a backend signals rate limiting.
	ThrottleDetected(provider string, err error)

	// DelayChanged fires whenever the reactive backoff delay changes,
	// in either direction.
	DelayChanged(provider string, previous, current time.Duration)

	// FailoverTriggered fires when a primary failure routes a request to
	// the backup provider.
	FailoverTriggered(primary, backup string, err error)

	// PrimaryRecovered fires when the primary serves a request again after
	// having been failed over.
	PrimaryRecovered(primary string)

	// AllProvidersFailed fires when both primary and backup failed for the
	// same request.
	AllProvidersFailed(primary, backup string, err error)
}

// LogEvents is the default Events implementation, logging every event
// through slog.
type LogEvents struct {
	logger *slog.Logger
}

// NewLogEvents creates an Events implementation backed by logger. A nil
// logger falls back to slog.Default().
func NewLogEvents(logger *slog.Logger) *LogEvents {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEvents{logger: logger}
}

func (l *LogEvents) ThrottleDetected(provider string, err error) {
	l.logger.Warn("embedding backend throttled", "provider", provider, "err", err)
}

func (l *LogEvents) DelayChanged(provider string, previous, current time.Duration) {
	if current == 0 {
		l.logger.Info("rate limit delay removed, running at full speed", "provider", provider)
		return
	}
	l.logger.Info("rate limit delay changed", "provider", provider, "previous", previous, "current", current)
}

func (l *LogEvents) FailoverTriggered(primary, backup string, err error) {
	l.logger.Warn("failing over to backup embedding provider", "primary", primary, "backup", backup, "err", err)
}

func (l *LogEvents) PrimaryRecovered(primary string) {
	l.logger.Info("primary embedding provider recovered", "provider", primary)
}

func (l *LogEvents) AllProvidersFailed(primary, backup string, err error) {
	l.logger.Error("all embedding providers failed", "primary", primary, "backup", backup, "err", err)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) ThrottleDetected(string, error)                   {}
func (NopEvents) DelayChanged(string, time.Duration, time.Duration) {}
func (NopEvents) FailoverTriggered(string, string, error)          {}
func (NopEvents) PrimaryRecovered(string)                          {}
func (NopEvents) AllProvidersFailed(string, string, error)         {}
