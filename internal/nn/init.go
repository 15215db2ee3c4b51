package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/topoloss/internal/tensor"
)

// Option configures layer construction.
type Option func(*layerConfig)

type layerConfig struct {
	rng    *rand.Rand
	noBias bool
}

func newLayerConfig(opts []Option) layerConfig {
	var cfg layerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithRand draws initial weights from rng instead of the global source,
// making initialization reproducible for a fixed seed.
func WithRand(rng *rand.Rand) Option {
	return func(c *layerConfig) { c.rng = rng }
}

// WithoutBias builds a Linear layer with no bias parameter.
func WithoutBias() Option {
	return func(c *layerConfig) { c.noBias = true }
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// A nil rng uses the global math/rand source.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			//nolint:gosec // Using math/rand for weight initialization (not security-critical)
			u = rand.Float64()
		}
		data[i] = float32((u*2.0 - 1.0) * bound)
	}

	return t
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
