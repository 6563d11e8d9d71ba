// Package embedder provides resilient text embedding clients.
//
// The package is built around a single small interface, Client, and a set of
// decorators that layer resilience behavior on top of concrete backend
// adapters:
//
//   - Backend adapters (OpenAIBackend, GeminiBackend, LangChainBackend,
//     LocalBackend) encapsulate all request shaping for one embedding
//     service. Nothing above an adapter knows about payload formats.
//   - RateLimitedClient wraps one backend and adds sub-batch splitting,
//     reactive rate-limit backoff, and error classification.
//   - FailoverProvider wraps two rate-limited clients (primary and backup)
//     and adds a failover/cooldown state machine.
//   - BreakerClient optionally wraps any Client with a circuit breaker.
//
// # Usage
//
//	backend := embedder.NewOpenAIBackend(apiKey, "", embedder.ModelProfile{
//	    Model:        "text-embedding-3-small",
//	    MaxBatchSize: 100,
//	})
//	client := embedder.NewRateLimitedClient(backend, embedder.DefaultRetryPolicy())
//	vectors, err := client.Embed(ctx, []string{"hello world"})
//
// # Guarantees
//
// For any successful Embed call, the returned slice has exactly one vector
// per input text, in input order, regardless of internal batching and
// retries. A failed or cancelled call never returns partial results.
//
// All types in this package are safe for concurrent use.
package embedder
