// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/topoloss/internal/nn"
	"github.com/born-ml/topoloss/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Child is a named submodule.
type Child[B tensor.Backend] = nn.Child[B]

// Container is implemented by modules holding named submodules.
type Container[B tensor.Backend] = nn.Container[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Option configures layer construction.
type Option = nn.Option

// WithRand makes weight initialization draw from rng.
func WithRand(rng *rand.Rand) Option {
	return nn.WithRand(rng)
}

// WithoutBias builds a layer with no bias parameter.
func WithoutBias() Option {
	return nn.WithoutBias()
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, opts ...Option) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend, opts...)
}

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv2D(1, 32, 3, 3, 1, 1, true, backend)  // in_channels=1, out_channels=32, kernel=3x3, stride=1, padding=1, useBias=true
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
	opts ...Option,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, backend, opts...)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Loss Functions

// MSELoss represents the mean squared error loss for regression.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend]() *MSELoss[B] {
	return nn.NewMSELoss[B]()
}

// Sequential

// Sequential represents a sequential container of modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new sequential container. Modules are named by
// their index.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, backend),
//	)
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Lookup

// ErrModuleNotFound is returned when a path or module is not in a tree.
var ErrModuleNotFound = nn.ErrModuleNotFound

// Lookup resolves a dotted path such as "features.0" in the tree rooted at root.
func Lookup[B tensor.Backend](root Module[B], path string) (Module[B], error) {
	return nn.Lookup(root, path)
}

// NameOf returns the dotted path of target in the tree rooted at root.
func NameOf[B tensor.Backend](root, target Module[B]) (string, error) {
	return nn.NameOf(root, target)
}

// Walk visits every module of the tree depth-first with its dotted path.
func Walk[B tensor.Backend](root Module[B], visit func(path string, m Module[B])) {
	nn.Walk(root, visit)
}

// StateDict returns the parameters of every leaf module keyed by
// "<path>.<param>".
func StateDict[B tensor.Backend](root Module[B]) map[string]*tensor.RawTensor {
	return nn.StateDict(root)
}

// LoadStateDict copies dict into the parameters of root in place.
func LoadStateDict[B tensor.Backend](root Module[B], dict map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(root, dict)
}
