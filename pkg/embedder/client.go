package embedder

import "context"

// Client defines the interface for text embedding operations.
//
// Every layer in this package, from concrete backend adapters up to the
// failover provider, implements Client, so resilience decorators compose
// freely. Callers above this package depend only on this interface and see
// no difference between a bare backend and a fully decorated stack.
type Client interface {
	// Embed generates one embedding per input text, in input order.
	// An empty input returns an empty result without contacting the backend.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the length of the vectors this client produces.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}
