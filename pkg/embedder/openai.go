package embedder

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when a profile does not name a model.
const DefaultOpenAIModel = "text-embedding-3-small"

// openaiModelDimensions are the published default dimensions per model.
var openaiModelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// OpenAIBackend implements Client against the OpenAI embeddings API or any
// OpenAI-compatible endpoint (NVIDIA NIM, vLLM, Ollama) via a custom base
// URL. All request shaping, including the explicit dimension parameter and
// array-vs-single input, is contained here.
type OpenAIBackend struct {
	client  *openai.Client
	profile ModelProfile
}

// NewOpenAIBackend creates an OpenAI embedding backend. An empty baseURL
// targets api.openai.com.
func NewOpenAIBackend(apiKey, baseURL string, profile ModelProfile) *OpenAIBackend {
	if profile.Model == "" {
		profile.Model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(cfg),
		profile: profile,
	}
}

// Profile returns the backend's model profile.
func (b *OpenAIBackend) Profile() ModelProfile { return b.profile }

// Embed generates embeddings for the given texts in a single API call.
func (b *OpenAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if b.profile.variant() == InputSingle {
		return b.embedOneByOne(ctx, texts)
	}

	resp, err := b.client.CreateEmbeddings(ctx, b.request(texts))
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	return b.collect(resp, len(texts))
}

// EmbedSingle generates an embedding for a single text.
func (b *OpenAIBackend) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// Dimensions returns the profile's explicit dimension, or the model default.
func (b *OpenAIBackend) Dimensions() int {
	if b.profile.Dimensions > 0 {
		return b.profile.Dimensions
	}
	if dims, ok := openaiModelDimensions[b.profile.Model]; ok {
		return dims
	}
	return 1536
}

// Close implements Client. The HTTP client holds no resources to release.
func (b *OpenAIBackend) Close() error { return nil }

func (b *OpenAIBackend) request(texts []string) openai.EmbeddingRequest {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(b.profile.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if b.profile.Dimensions > 0 {
		req.Dimensions = b.profile.Dimensions
	}
	return req
}

func (b *OpenAIBackend) embedOneByOne(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		req := b.request(nil)
		req.Input = text
		resp, err := b.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("openai embedding request failed: %w", err)
		}
		vectors, err := b.collect(resp, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors[0])
	}
	return out, nil
}

// collect extracts vectors from the response, restoring input order from
// the per-item index.
func (b *OpenAIBackend) collect(resp openai.EmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), want)
	}
	out := make([][]float32, want)
	for i, item := range resp.Data {
		pos := item.Index
		if pos < 0 || pos >= want {
			pos = i
		}
		vector := item.Embedding
		if b.profile.Normalize {
			normalizeVector(vector)
		}
		out[pos] = vector
	}
	return out, nil
}
