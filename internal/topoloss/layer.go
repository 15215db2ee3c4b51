package topoloss

import (
	"fmt"

	"github.com/born-ml/topoloss/internal/nn"
	"github.com/born-ml/topoloss/internal/tensor"
)

// LayerKind tags the layer types a sheet can be built from.
type LayerKind int

// Supported layer kinds.
const (
	Dense  LayerKind = iota // weight [out, in], bias [out]
	Conv2D                  // weight [out, in, kh, kw], bias [out]
)

// String returns the kind name.
func (k LayerKind) String() string {
	switch k {
	case Dense:
		return "dense"
	case Conv2D:
		return "conv2d"
	default:
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
}

// LayerHandle exposes the parameters of one model layer.
//
// Weight and Bias alias the live parameter tensors. Bias is nil when the
// layer has none.
type LayerHandle[B tensor.Backend] struct {
	Kind   LayerKind
	Weight *tensor.Tensor[float32, B]
	Bias   *tensor.Tensor[float32, B]
}

// OutputUnits returns the number of output units (weight rows or output
// channels).
func (h LayerHandle[B]) OutputUnits() int {
	return h.Weight.Shape()[0]
}

// InputUnits returns the number of Dense input units.
func (h LayerHandle[B]) InputUnits() int {
	return h.Weight.Shape()[1]
}

// Model resolves layers of a host model.
//
// Layer fails with ErrLayerNotFound for unknown names. LayerName is the
// reverse lookup used by FromLayer.
type Model[B tensor.Backend] interface {
	Layer(name string) (LayerHandle[B], error)
	LayerName(layer nn.Module[B]) (string, error)
}

// Bind adapts an nn module tree to Model. Layer names are the dotted paths
// accepted by nn.Lookup ("0", "encoder.2", ...).
//
//	model := nn.NewSequential[B](nn.NewLinear(30, 25, b), nn.NewReLU[B](), nn.NewLinear(25, 20, b))
//	loss, err := tl.Loss(topoloss.Bind[B](model))
func Bind[B tensor.Backend](root nn.Module[B]) Model[B] {
	return &moduleTree[B]{root: root}
}

type moduleTree[B tensor.Backend] struct {
	root nn.Module[B]
}

func (m *moduleTree[B]) Layer(name string) (LayerHandle[B], error) {
	module, err := nn.Lookup(m.root, name)
	if err != nil {
		return LayerHandle[B]{}, fmt.Errorf("%w: %w", ErrLayerNotFound, err)
	}

	switch layer := module.(type) {
	case *nn.Linear[B]:
		return handleOf(Dense, layer.Weight(), layer.Bias()), nil
	case *nn.Conv2D[B]:
		return handleOf(Conv2D, layer.Weight(), layer.Bias()), nil
	default:
		return LayerHandle[B]{}, &ConfigError{
			Layer:  name,
			Reason: fmt.Sprintf("%T is neither a dense nor a conv2d layer", module),
		}
	}
}

func (m *moduleTree[B]) LayerName(layer nn.Module[B]) (string, error) {
	name, err := nn.NameOf(m.root, layer)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLayerNotFound, err)
	}
	return name, nil
}

func handleOf[B tensor.Backend](kind LayerKind, weight, bias *nn.Parameter[B]) LayerHandle[B] {
	h := LayerHandle[B]{Kind: kind, Weight: weight.Tensor()}
	if bias != nil {
		h.Bias = bias.Tensor()
	}
	return h
}
