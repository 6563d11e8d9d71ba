package embedder

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when a profile does not name a model.
const DefaultGeminiModel = "embedding-001"

// GeminiBackend implements Client against the Google Generative AI
// embeddings API. The service accepts one content item per call, so this
// adapter always uses single-text shaping regardless of the profile's
// InputVariant.
type GeminiBackend struct {
	client  *genai.Client
	model   *genai.EmbeddingModel
	profile ModelProfile
}

// NewGeminiBackend creates a Gemini embedding backend.
func NewGeminiBackend(ctx context.Context, apiKey string, profile ModelProfile) (*GeminiBackend, error) {
	if profile.Model == "" {
		profile.Model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiBackend{
		client:  client,
		model:   client.EmbeddingModel(profile.Model),
		profile: profile,
	}, nil
}

// Profile returns the backend's model profile.
func (b *GeminiBackend) Profile() ModelProfile { return b.profile }

// Embed generates embeddings for the given texts, one API call per text.
func (b *GeminiBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		resp, err := b.model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, fmt.Errorf("gemini embedding request failed: %w", err)
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, ErrEmptyResponse
		}
		vector := resp.Embedding.Values
		if b.profile.Normalize {
			normalizeVector(vector)
		}
		out = append(out, vector)
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (b *GeminiBackend) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// Dimensions returns the profile's explicit dimension, or the embedding-001
// default.
func (b *GeminiBackend) Dimensions() int {
	if b.profile.Dimensions > 0 {
		return b.profile.Dimensions
	}
	return 768
}

// Close releases the underlying API client.
func (b *GeminiBackend) Close() error {
	return b.client.Close()
}
