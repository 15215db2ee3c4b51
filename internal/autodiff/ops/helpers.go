package ops

import (
	"fmt"

	"github.com/born-ml/topoloss/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	if len(targetShape) == 0 || targetShape.NumElements() == 1 {
		return backend.Reshape(backend.Sum(grad), targetShape)
	}

	// NumPy broadcasting aligns shapes from the right: leading dims are summed away.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	for i, d := range targetShape {
		if d == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// broadcastTo expands grad to shape by adding it onto zeros.
func broadcastTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	zeros := tensor.MustNewRaw("broadcast", shape, grad.DType(), backend.Device())
	return backend.Add(zeros, grad)
}

// keepDimShape is shape with dim replaced by 1.
func keepDimShape(shape tensor.Shape, dim int) tensor.Shape {
	out := shape.Clone()
	out[dim] = 1
	return out
}

// scalarValue converts v to the scalar type backends expect for dtype.
func scalarValue(dtype tensor.DataType, v float64) any {
	switch dtype {
	case tensor.Float32:
		return float32(v)
	case tensor.Float64:
		return v
	default:
		panic(fmt.Sprintf("unsupported dtype %s", dtype))
	}
}

// mask builds a tensor shaped like input holding pick(x) for each element.
func mask(name string, input *tensor.RawTensor, device tensor.Device, pick func(float64) float64) *tensor.RawTensor {
	result := tensor.MustNewRaw(name, input.Shape(), input.DType(), device)

	switch input.DType() {
	case tensor.Float32:
		dst := result.AsFloat32()
		for i, v := range input.AsFloat32() {
			dst[i] = float32(pick(float64(v)))
		}
	case tensor.Float64:
		dst := result.AsFloat64()
		for i, v := range input.AsFloat64() {
			dst[i] = pick(v)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, input.DType()))
	}

	return result
}
