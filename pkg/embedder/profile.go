package embedder

import "math"

// InputVariant selects how a backend adapter shapes the request payload.
type InputVariant string

const (
	// InputArray sends all texts of a sub-batch as one array-valued request.
	InputArray InputVariant = "array"
	// InputSingle sends one request per text. Some services only accept a
	// single string per call.
	InputSingle InputVariant = "single"
)

// DefaultMaxBatchSize is used when a profile does not set MaxBatchSize.
const DefaultMaxBatchSize = 20

// ModelProfile describes how to shape requests for one embedding model.
// A profile is supplied at construction time and never mutated afterwards.
type ModelProfile struct {
	// Model is the backend-specific model identifier.
	Model string

	// MaxBatchSize caps how many texts are sent in one backend call.
	// Zero means DefaultMaxBatchSize.
	MaxBatchSize int

	// Dimensions is the explicit output dimension to request. Zero means
	// the model default; adapters that know the model report that instead.
	Dimensions int

	// Normalize requests unit-length vectors. Adapters whose service cannot
	// normalize server-side do it locally.
	Normalize bool

	// InputVariant selects the request shaping. Zero value means InputArray.
	InputVariant InputVariant
}

func (p ModelProfile) batchSize() int {
	if p.MaxBatchSize > 0 {
		return p.MaxBatchSize
	}
	return DefaultMaxBatchSize
}

func (p ModelProfile) variant() InputVariant {
	if p.InputVariant == "" {
		return InputArray
	}
	return p.InputVariant
}

// normalizeVector scales v to unit length in place. Zero vectors are left
// untouched.
func normalizeVector(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
