// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package topoloss provides topographic regularization losses.
//
// A loss spec lays the parameters of one layer out on a 2-D sheet and
// penalizes units that disagree with the pooled average of their
// neighbourhood, at several pyramid scales. Add the result to a task loss
// to train topographically organized layers.
//
// Example:
//
//	type B = *autodiff.Backend[*cpu.Backend]
//	backend := autodiff.New(cpu.New())
//	model := nn.NewSequential[B](
//	    nn.NewLinear(30, 25, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(25, 20, backend),
//	)
//
//	tl, err := topoloss.New[B](
//	    topoloss.OutputWeights("0", topoloss.Scale(1), topoloss.Uniform(2)...),
//	    topoloss.OutputWeights("2", nil, topoloss.Uniform(2)...), // logging only
//	)
//
//	backend.Tape().StartRecording()
//	loss, err := tl.Loss(topoloss.Bind[B](model))
//	grads := autodiff.Backward(loss, backend)
package topoloss

import (
	"github.com/born-ml/topoloss/internal/topoloss"
	"github.com/born-ml/topoloss/nn"
	"github.com/born-ml/topoloss/tensor"
)

// Errors.
var (
	ErrLayerNotFound = topoloss.ErrLayerNotFound
	ErrConfiguration = topoloss.ErrConfiguration
)

// ConfigError describes a configuration failure for one spec.
type ConfigError = topoloss.ConfigError

// MeanKey is the Report entry holding the mean loss.
const MeanKey = topoloss.MeanKey

// Geometry

// SheetShape is the 2-D layout of a sheet.
type SheetShape = topoloss.SheetShape

// ResolveSheetShape returns the most square Height×Width factorization of n.
func ResolveSheetShape(n int) SheetShape {
	return topoloss.ResolveSheetShape(n)
}

// Layers

// LayerKind tags the layer types a sheet can be built from.
type LayerKind = topoloss.LayerKind

// Layer kinds.
const (
	Dense  LayerKind = topoloss.Dense
	Conv2D LayerKind = topoloss.Conv2D
)

// LayerHandle exposes the parameters of one layer.
type LayerHandle[B tensor.Backend] = topoloss.LayerHandle[B]

// Model resolves layers of a host model by name and by identity.
type Model[B tensor.Backend] = topoloss.Model[B]

// Bind adapts an nn module tree to Model using dotted module paths.
func Bind[B tensor.Backend](root nn.Module[B]) Model[B] {
	return topoloss.Bind(root)
}

// Sheets

// View selects which parameters are laid out on a sheet.
type View = topoloss.View

// Views.
const (
	OutputView View = topoloss.OutputView
	BiasView   View = topoloss.BiasView
	InputView  View = topoloss.InputView
)

// ParseView parses "output", "bias" or "input".
func ParseView(s string) (View, error) {
	return topoloss.ParseView(s)
}

// Sheet is a [Height, Width, D] grid of feature vectors.
type Sheet[B tensor.Backend] = topoloss.Sheet[B]

// BuildSheet lays the selected parameters of layer out on a sheet.
func BuildSheet[B tensor.Backend](layer LayerHandle[B], view View) (Sheet[B], error) {
	return topoloss.BuildSheet(layer, view)
}

// Pyramid

// ShrinkFactor is the per-axis pooling factor between pyramid levels.
type ShrinkFactor = topoloss.ShrinkFactor

// Uniform returns one square ShrinkFactor per value.
func Uniform(factors ...float64) []ShrinkFactor {
	return topoloss.Uniform(factors...)
}

// PyramidShapes returns the grid shape of every pyramid level.
func PyramidShapes(base SheetShape, factors []ShrinkFactor) ([]SheetShape, error) {
	return topoloss.PyramidShapes(base, factors)
}

// PyramidLoss returns the multi-scale smoothness loss of a sheet.
func PyramidLoss[B tensor.Backend](sheet Sheet[B], factors []ShrinkFactor) (*tensor.Tensor[float32, B], error) {
	return topoloss.PyramidLoss(sheet, factors)
}

// Specs

// LossSpec describes the topographic loss of one layer.
type LossSpec = topoloss.LossSpec

// Params holds the fields shared by every LossSpec.
type Params = topoloss.Params

// Spec variants.
type (
	OutputWeightsSpec = topoloss.OutputWeightsSpec
	BiasSpec          = topoloss.BiasSpec
	InputWeightsSpec  = topoloss.InputWeightsSpec
)

// Scale returns a pointer to v for use as a spec scale.
func Scale(v float64) *float64 {
	return topoloss.Scale(v)
}

// OutputWeights returns an OutputWeightsSpec. A nil scale marks it logging-only.
func OutputWeights(layer string, scale *float64, factors ...ShrinkFactor) OutputWeightsSpec {
	return topoloss.OutputWeights(layer, scale, factors...)
}

// Bias returns a BiasSpec. A nil scale marks it logging-only.
func Bias(layer string, scale *float64, factors ...ShrinkFactor) BiasSpec {
	return topoloss.Bias(layer, scale, factors...)
}

// InputWeights returns an InputWeightsSpec. A nil scale marks it logging-only.
func InputWeights(layer string, scale *float64, factors ...ShrinkFactor) InputWeightsSpec {
	return topoloss.InputWeights(layer, scale, factors...)
}

// NewSpec builds the spec variant for view.
func NewSpec(view View, layer string, scale *float64, factors ...ShrinkFactor) (LossSpec, error) {
	return topoloss.NewSpec(view, layer, scale, factors...)
}

// FromLayer builds a spec for a layer object, resolving its name in model.
func FromLayer[B tensor.Backend](model Model[B], layer nn.Module[B], view View, scale *float64, factors ...ShrinkFactor) (LossSpec, error) {
	return topoloss.FromLayer(model, layer, view, scale, factors...)
}

// Validate checks the factors of spec without consulting a model.
func Validate(spec LossSpec) error {
	return topoloss.Validate(spec)
}

// Orchestration

// TopoLoss evaluates a list of specs against a model.
type TopoLoss[B tensor.Backend] = topoloss.TopoLoss[B]

// Result is the outcome of TopoLoss.Compute.
type Result[B tensor.Backend] = topoloss.Result[B]

// LayerwiseOption configures TopoLoss.Layerwise.
type LayerwiseOption = topoloss.LayerwiseOption

// New validates specs and returns a TopoLoss over them.
func New[B tensor.Backend](specs ...LossSpec) (*TopoLoss[B], error) {
	return topoloss.New[B](specs...)
}

// Unscaled makes Layerwise return raw losses for every spec.
func Unscaled() LayerwiseOption {
	return topoloss.Unscaled()
}
