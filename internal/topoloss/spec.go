package topoloss

import (
	"github.com/born-ml/topoloss/internal/nn"
	"github.com/born-ml/topoloss/internal/tensor"
)

// LossSpec describes the topographic loss of one layer. The set of
// implementations is closed: OutputWeightsSpec, BiasSpec and
// InputWeightsSpec.
type LossSpec interface {
	// Target returns the layer name.
	Target() string
	// View returns the sheet view the spec is computed on.
	View() View
	// Contributes reports whether the spec has a scale and so takes part
	// in the backpropagated loss.
	Contributes() bool

	params() Params
	isLossSpec()
}

// Params holds the fields shared by every LossSpec.
type Params struct {
	// Layer is the name resolved through Model.Layer.
	Layer string
	// Scale weights the loss. Nil marks a logging-only spec: it is computed
	// and reported but never contributes to the backpropagated loss.
	Scale *float64
	// Factors holds one shrink factor per pyramid level.
	Factors []ShrinkFactor
}

// Target returns the layer name.
func (p Params) Target() string { return p.Layer }

// Contributes reports whether Scale is set.
func (p Params) Contributes() bool { return p.Scale != nil }

func (p Params) params() Params { return p }

// OutputWeightsSpec lays out output units' weight vectors.
type OutputWeightsSpec struct{ Params }

// BiasSpec lays out a dense layer's bias.
type BiasSpec struct{ Params }

// InputWeightsSpec lays out a dense layer's input-unit weight columns.
type InputWeightsSpec struct{ Params }

// View returns OutputView.
func (OutputWeightsSpec) View() View { return OutputView }

// View returns BiasView.
func (BiasSpec) View() View { return BiasView }

// View returns InputView.
func (InputWeightsSpec) View() View { return InputView }

func (OutputWeightsSpec) isLossSpec() {}
func (BiasSpec) isLossSpec()          {}
func (InputWeightsSpec) isLossSpec()  {}

// Scale returns a pointer to v for use as Params.Scale.
func Scale(v float64) *float64 {
	return &v
}

// OutputWeights returns an OutputWeightsSpec for layer.
//
//	topoloss.OutputWeights("0", topoloss.Scale(1), topoloss.Uniform(2)...)
func OutputWeights(layer string, scale *float64, factors ...ShrinkFactor) OutputWeightsSpec {
	return OutputWeightsSpec{Params{Layer: layer, Scale: scale, Factors: factors}}
}

// Bias returns a BiasSpec for layer.
func Bias(layer string, scale *float64, factors ...ShrinkFactor) BiasSpec {
	return BiasSpec{Params{Layer: layer, Scale: scale, Factors: factors}}
}

// InputWeights returns an InputWeightsSpec for layer.
func InputWeights(layer string, scale *float64, factors ...ShrinkFactor) InputWeightsSpec {
	return InputWeightsSpec{Params{Layer: layer, Scale: scale, Factors: factors}}
}

// NewSpec builds the spec variant for view.
func NewSpec(view View, layer string, scale *float64, factors ...ShrinkFactor) (LossSpec, error) {
	p := Params{Layer: layer, Scale: scale, Factors: factors}
	switch view {
	case OutputView:
		return OutputWeightsSpec{p}, nil
	case BiasView:
		return BiasSpec{p}, nil
	case InputView:
		return InputWeightsSpec{p}, nil
	default:
		return nil, configErrorf(layer, view, "unknown view")
	}
}

// FromLayer builds a spec for a layer object by resolving its name in
// model. The spec is validated against the layer before it is returned.
func FromLayer[B tensor.Backend](model Model[B], layer nn.Module[B], view View, scale *float64, factors ...ShrinkFactor) (LossSpec, error) {
	name, err := model.LayerName(layer)
	if err != nil {
		return nil, err
	}
	spec, err := NewSpec(view, name, scale, factors...)
	if err != nil {
		return nil, err
	}
	if _, err := resolve(model, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks the factors of spec without consulting a model.
func Validate(spec LossSpec) error {
	if spec == nil {
		return &ConfigError{Reason: "nil spec"}
	}
	if err := checkFactors(spec.params().Factors); err != nil {
		return &ConfigError{Layer: spec.Target(), View: spec.View(), Reason: err.Error()}
	}
	return nil
}

// resolved is a spec bound to the layer it targets.
type resolved[B tensor.Backend] struct {
	spec  LossSpec
	layer LayerHandle[B]
	shape SheetShape
}

// resolve looks the spec's layer up and checks that the view applies to it
// and that no pyramid level collapses.
func resolve[B tensor.Backend](model Model[B], spec LossSpec) (resolved[B], error) {
	if err := Validate(spec); err != nil {
		return resolved[B]{}, err
	}
	name := spec.Target()

	layer, err := model.Layer(name)
	if err != nil {
		return resolved[B]{}, err
	}
	shape, err := SheetShapeFor(layer, spec.View())
	if err != nil {
		return resolved[B]{}, withLayer(err, name)
	}
	if _, err := PyramidShapes(shape, spec.params().Factors); err != nil {
		return resolved[B]{}, configErrorf(name, spec.View(), "%v", err)
	}
	return resolved[B]{spec: spec, layer: layer, shape: shape}, nil
}

func withLayer(err error, layer string) error {
	if ce, ok := err.(*ConfigError); ok && ce.Layer == "" {
		c := *ce
		c.Layer = layer
		return &c
	}
	return err
}
