package embedder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelProfile_BatchSize(t *testing.T) {
	assert.Equal(t, DefaultMaxBatchSize, ModelProfile{}.batchSize())
	assert.Equal(t, 100, ModelProfile{MaxBatchSize: 100}.batchSize())
}

func TestModelProfile_Variant(t *testing.T) {
	assert.Equal(t, InputArray, ModelProfile{}.variant())
	assert.Equal(t, InputSingle, ModelProfile{InputVariant: InputSingle}.variant())
}

func TestNormalizeVector(t *testing.T) {
	v := []float32{3, 4}
	normalizeVector(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	normalizeVector(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}
