package topoloss

import (
	"fmt"

	"github.com/born-ml/topoloss/internal/tensor"
)

// View selects which parameters of a layer are laid out on the sheet.
type View int

// Sheet views.
const (
	// OutputView places one output unit per position; its feature vector is
	// the unit's flattened weight slice.
	OutputView View = iota + 1
	// BiasView places each output unit's bias on the OutputView layout.
	// Dense layers only.
	BiasView
	// InputView places one input unit per position; its feature vector is
	// the weight column across all output units. Dense layers only.
	InputView
)

// String returns the view name used in configuration files.
func (v View) String() string {
	switch v {
	case OutputView:
		return "output"
	case BiasView:
		return "bias"
	case InputView:
		return "input"
	default:
		return fmt.Sprintf("View(%d)", int(v))
	}
}

// ParseView is the inverse of View.String.
func ParseView(s string) (View, error) {
	switch s {
	case "output":
		return OutputView, nil
	case "bias":
		return BiasView, nil
	case "input":
		return InputView, nil
	default:
		return 0, &ConfigError{Reason: fmt.Sprintf("unknown view %q (want output, bias or input)", s)}
	}
}

// Sheet is a [Height, Width, D] grid of feature vectors derived from live
// layer parameters. Values shares the autodiff graph with the parameters,
// so a Sheet is only valid for the parameter values it was built from.
type Sheet[B tensor.Backend] struct {
	Shape  SheetShape
	View   View
	Values *tensor.Tensor[float32, B]
}

// Dim returns the feature dimensionality D.
func (s Sheet[B]) Dim() int {
	return s.Values.Shape()[2]
}

// SheetShapeFor returns the layout the view uses for layer, validating that
// the view applies to it.
func SheetShapeFor[B tensor.Backend](layer LayerHandle[B], view View) (SheetShape, error) {
	switch view {
	case OutputView:
		return ResolveSheetShape(layer.OutputUnits()), nil
	case BiasView:
		if layer.Kind != Dense {
			return SheetShape{}, configErrorf("", view, "not supported for %s layers", layer.Kind)
		}
		if layer.Bias == nil {
			return SheetShape{}, configErrorf("", view, "layer has no bias")
		}
		if n := layer.Bias.NumElements(); n != layer.OutputUnits() {
			return SheetShape{}, configErrorf("", view, "bias has %d entries for %d output units", n, layer.OutputUnits())
		}
		return ResolveSheetShape(layer.OutputUnits()), nil
	case InputView:
		if layer.Kind != Dense {
			return SheetShape{}, configErrorf("", view, "not supported for %s layers", layer.Kind)
		}
		return ResolveSheetShape(layer.InputUnits()), nil
	default:
		return SheetShape{}, configErrorf("", view, "unknown view")
	}
}

// BuildSheet lays the selected parameters of layer out on a sheet.
//
// Units fill the grid row-major in their native order. The result is
// derived through backend ops so gradients reach the parameters.
func BuildSheet[B tensor.Backend](layer LayerHandle[B], view View) (Sheet[B], error) {
	shape, err := SheetShapeFor(layer, view)
	if err != nil {
		return Sheet[B]{}, err
	}

	var values *tensor.Tensor[float32, B]
	switch view {
	case OutputView:
		dim := layer.Weight.NumElements() / layer.OutputUnits()
		values = layer.Weight.Reshape(shape.Height, shape.Width, dim)
	case BiasView:
		values = layer.Bias.Reshape(shape.Height, shape.Width, 1)
	case InputView:
		values = layer.Weight.T().Reshape(shape.Height, shape.Width, layer.OutputUnits())
	}

	return Sheet[B]{Shape: shape, View: view, Values: values}, nil
}
