package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainBackend implements Client on top of langchaingo's embedder
// machinery, targeting self-hosted OpenAI-compatible services. Unlike
// OpenAIBackend it goes through langchaingo's request pipeline, which some
// local inference servers are tuned for (newline stripping in particular).
type LangChainBackend struct {
	embedder embeddings.Embedder
	profile  ModelProfile
}

// NewLangChainBackend creates a langchaingo-backed embedding backend for the
// OpenAI-compatible service at host. An empty apiKey sends a placeholder
// token, which local services ignore.
func NewLangChainBackend(host, apiKey string, profile ModelProfile) (*LangChainBackend, error) {
	if host == "" {
		return nil, NewConfigError(
			"langchain embedding backend requires a base URL",
			"set the backend's base_url to the embedding service endpoint",
			nil,
		)
	}
	if apiKey == "" {
		apiKey = "none"
	}

	llm, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(profile.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain openai client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain embedder: %w", err)
	}

	return &LangChainBackend{
		embedder: emb,
		profile:  profile,
	}, nil
}

// Profile returns the backend's model profile.
func (b *LangChainBackend) Profile() ModelProfile { return b.profile }

// Embed generates embeddings for the given texts.
func (b *LangChainBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("langchain embedding request failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("langchain embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	if b.profile.Normalize {
		for _, vector := range vectors {
			normalizeVector(vector)
		}
	}
	return vectors, nil
}

// EmbedSingle generates an embedding for a single text.
func (b *LangChainBackend) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// Dimensions returns the profile's explicit dimension. Local models vary,
// so there is no meaningful fallback beyond the common MiniLM default.
func (b *LangChainBackend) Dimensions() int {
	if b.profile.Dimensions > 0 {
		return b.profile.Dimensions
	}
	return 384
}

// Close implements Client.
func (b *LangChainBackend) Close() error { return nil }
