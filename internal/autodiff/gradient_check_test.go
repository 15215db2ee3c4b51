package autodiff_test

import (
	"testing"

	"github.com/born-ml/topoloss/internal/autodiff"
	"github.com/born-ml/topoloss/internal/backend/cpu"
	"github.com/born-ml/topoloss/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

type scalarFn func(x *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT]

// checkGradient compares the tape gradient of f at x0 with a central
// finite-difference estimate.
func checkGradient(t *testing.T, shape tensor.Shape, x0 []float64, f scalarFn) {
	t.Helper()

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	x := fromSlice(t, backend, x0, shape...)
	grads := autodiff.Backward(f(x), backend)
	got := grads[x.Raw()]
	require.NotNil(t, got, "no gradient reached the input")

	want := fd.Gradient(nil, func(v []float64) float64 {
		eval := autodiff.New(cpu.New())
		xv, err := tensor.FromSlice(v, shape, eval)
		if err != nil {
			panic(err)
		}
		return f(xv).Item()
	}, x0, &fd.Settings{Formula: fd.Central, Step: 1e-6})

	assert.InDeltaSlice(t, want, got.AsFloat64(), 1e-5)
}

func TestGradientCheck_Arithmetic(t *testing.T) {
	checkGradient(t, tensor.Shape{2, 2}, []float64{0.5, -1.5, 2, 3}, func(x *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT] {
		// Σ (x*x - x) / (|x| + 1)
		return x.Mul(x).Sub(x).Div(x.Abs().AddScalar(1)).Sum()
	})
}

func TestGradientCheck_Sqrt(t *testing.T) {
	checkGradient(t, tensor.Shape{3}, []float64{0.3, 1.7, 4}, func(x *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT] {
		return x.Mul(x).AddScalar(1).Sqrt().Sum()
	})
}

func TestGradientCheck_ReductionsAndShapes(t *testing.T) {
	checkGradient(t, tensor.Shape{2, 3}, []float64{1, -2, 3, 0.5, 5, -6}, func(x *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT] {
		rowMean := x.MeanDim(1, true)
		colSum := x.Transpose(1, 0).SumDim(1, false).Reshape(1, 3)
		return x.Sub(rowMean).Mul(colSum).ReLU().Sum()
	})
}

func TestGradientCheck_MatMul(t *testing.T) {
	checkGradient(t, tensor.Shape{2, 3}, []float64{0.1, 0.2, -0.3, 0.4, -0.5, 0.6}, func(x *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT] {
		return x.MatMul(x.T()).Mul(x.MatMul(x.T())).Sum()
	})
}

func TestGradientCheck_Unfold(t *testing.T) {
	x0 := []float64{
		0.1, -0.4, 0.7,
		0.2, 0.9, -0.3,
		-0.6, 0.5, 0.8,
	}
	checkGradient(t, tensor.Shape{1, 1, 3, 3}, x0, func(x *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT] {
		backend := x.Backend()
		cols := tensor.New[float64](backend.Unfold(x.Raw(), 2, 2, 1, 1), backend)
		return cols.Mul(cols).Sum()
	})
}

func TestGradientCheck_GridPoolExpand(t *testing.T) {
	// 3x3 grid with two components, pooled unevenly to 2x2 and compared to
	// the expanded coarse grid by cosine similarity.
	x0 := []float64{
		0.3, -0.2, 1.1, 0.4, -0.7, 0.9,
		0.5, 0.6, -0.8, 1.2, 0.1, -0.3,
		0.2, 0.7, 0.4, -0.5, 1.0, 0.8,
	}
	checkGradient(t, tensor.Shape{3, 3, 2}, x0, func(x *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT] {
		coarse := x.GridPool(2, 2).GridExpand(3, 3)
		dot := x.Mul(coarse).SumDim(-1, false)
		clamped := func(sq *tensor.Tensor[float64, backendT]) *tensor.Tensor[float64, backendT] {
			return sq.AddScalar(-1e-16).ReLU().AddScalar(1e-16).Sqrt()
		}
		norm := clamped(x.Mul(x).SumDim(-1, false)).Mul(clamped(coarse.Mul(coarse).SumDim(-1, false)))
		return dot.Div(norm).OneMinus().Mean()
	})
}
