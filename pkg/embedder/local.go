package embedder

import (
	"context"
	"fmt"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// LocalBackend implements Client with an in-process embedding model. It is
// useful as a backup provider that cannot share a failure domain with any
// remote service.
type LocalBackend struct {
	model   *embedeverything.Embedder
	profile ModelProfile
}

// NewLocalBackend loads the named model into the current process.
func NewLocalBackend(profile ModelProfile) (*LocalBackend, error) {
	model, err := embedeverything.NewEmbedder(profile.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load local embedding model %q: %w", profile.Model, err)
	}
	return &LocalBackend{
		model:   model,
		profile: profile,
	}, nil
}

// Profile returns the backend's model profile.
func (b *LocalBackend) Profile() ModelProfile { return b.profile }

// Embed generates embeddings for the given texts.
// The underlying model does not support context cancellation.
func (b *LocalBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := b.model.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("local embedding failed: %w", err)
	}
	if b.profile.Normalize {
		for _, vector := range vectors {
			normalizeVector(vector)
		}
	}
	return vectors, nil
}

// EmbedSingle generates an embedding for a single text.
func (b *LocalBackend) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// Dimensions returns the profile's explicit dimension, or the MiniLM
// default.
func (b *LocalBackend) Dimensions() int {
	if b.profile.Dimensions > 0 {
		return b.profile.Dimensions
	}
	return 384
}

// Close unloads the model.
func (b *LocalBackend) Close() error {
	b.model.Close()
	return nil
}
