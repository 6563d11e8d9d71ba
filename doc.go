// Package embedgate assembles resilient embedding providers.
//
// The heavy lifting lives in pkg/embedder: backend adapters, a rate-limited
// client with reactive backoff, and a primary/backup failover provider.
// This package is the composition root. New reads a config.Config and wires
// backends, resilience policy, worker pool, observability hooks and
// optional alerting/circuit breaking into one embedder.Client handle that
// callers hold for the life of the process.
//
//	cfg, err := config.Load()
//	gateway, err := embedgate.New(ctx, cfg, slog.Default())
//	defer gateway.Close()
//	vector, err := gateway.EmbedSingle(ctx, "what is our refund policy?")
//
// Construct one gateway per pipeline at startup and pass it down by handle;
// the resilience state inside is private to the instance and safe for any
// number of concurrent callers.
package embedgate
