package ops

import (
	"testing"

	"github.com/born-ml/topoloss/internal/backend/cpu"
	"github.com/born-ml/topoloss/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat64(), data)
	return r
}

func TestReduceBroadcast(t *testing.T) {
	backend := cpu.New()
	grad := raw(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	tests := []struct {
		name   string
		target tensor.Shape
		want   []float64
	}{
		{"same shape", tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6}},
		{"leading dim", tensor.Shape{3}, []float64{5, 7, 9}},
		{"size-one column", tensor.Shape{2, 1}, []float64{6, 15}},
		{"scalar", tensor.Shape{}, []float64{21}},
		{"all ones", tensor.Shape{1, 1}, []float64{21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reduceBroadcast(grad, tt.target, backend)
			assert.Equal(t, tt.target, got.Shape())
			assert.Equal(t, tt.want, got.AsFloat64())
		})
	}
}

func TestBinaryOps_Backward(t *testing.T) {
	backend := cpu.New()
	a := raw(t, []float64{1, 2, 3, 4}, 2, 2)
	b := raw(t, []float64{2, 4}, 2)
	g := raw(t, []float64{1, 1, 1, 1}, 2, 2)

	add := NewAddOp(a, b, backend.Add(a, b)).Backward(g, backend)
	assert.Equal(t, []float64{1, 1, 1, 1}, add[0].AsFloat64())
	assert.Equal(t, []float64{2, 2}, add[1].AsFloat64())

	sub := NewSubOp(a, b, backend.Sub(a, b)).Backward(g, backend)
	assert.Equal(t, []float64{-2, -2}, sub[1].AsFloat64())

	mul := NewMulOp(a, b, backend.Mul(a, b)).Backward(g, backend)
	assert.Equal(t, []float64{2, 4, 2, 4}, mul[0].AsFloat64())
	assert.Equal(t, []float64{4, 6}, mul[1].AsFloat64())

	div := NewDivOp(a, b, backend.Div(a, b)).Backward(g, backend)
	assert.Equal(t, []float64{0.5, 0.25, 0.5, 0.25}, div[0].AsFloat64())
	// d(a/b)/db = -a/b², summed over rows: -(1+3)/4, -(2+4)/16
	assert.InDeltaSlice(t, []float64{-1, -0.375}, div[1].AsFloat64(), 1e-12)
}

func TestUnaryOps_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{-2, 0, 3}, 3)
	g := raw(t, []float64{1, 1, 1}, 3)

	abs := NewAbsOp(x, backend.Abs(x)).Backward(g, backend)
	assert.Equal(t, []float64{-1, 0, 1}, abs[0].AsFloat64())

	relu := NewReLUOp(x, backend.ReLU(x)).Backward(g, backend)
	assert.Equal(t, []float64{0, 0, 1}, relu[0].AsFloat64())

	y := raw(t, []float64{4, 16}, 2)
	sqrt := NewSqrtOp(y, backend.Sqrt(y)).Backward(raw(t, []float64{1, 1}, 2), backend)
	assert.Equal(t, []float64{0.25, 0.125}, sqrt[0].AsFloat64())

	scaled := NewMulScalarOp(x, backend.MulScalar(x, 3.0), 3.0).Backward(g, backend)
	assert.Equal(t, []float64{3, 3, 3}, scaled[0].AsFloat64())
}

func TestReduceOps_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	sum := NewSumOp(x, backend.Sum(x)).Backward(raw(t, []float64{2}), backend)
	assert.Equal(t, tensor.Shape{2, 3}, sum[0].Shape())
	assert.Equal(t, []float64{2, 2, 2, 2, 2, 2}, sum[0].AsFloat64())

	sumDim := NewSumDimOp(x, backend.SumDim(x, 1, false), 1, false).
		Backward(raw(t, []float64{1, 2}, 2), backend)
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, sumDim[0].AsFloat64())

	meanDim := NewMeanDimOp(x, backend.MeanDim(x, 0, true), 0, true).
		Backward(raw(t, []float64{2, 4, 6}, 1, 3), backend)
	assert.Equal(t, []float64{1, 2, 3, 1, 2, 3}, meanDim[0].AsFloat64())
}

func TestTransposeOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	axes := []int{2, 0, 1}
	out := backend.Transpose(x, axes...)

	grads := NewTransposeOp(x, out, axes).Backward(out, backend)
	assert.Equal(t, x.Shape(), grads[0].Shape())
	assert.Equal(t, x.AsFloat64(), grads[0].AsFloat64())
}

func TestGridOps_Backward(t *testing.T) {
	backend := cpu.New()
	// 1x3 grid pooled into 1x2 bins of sizes 1 and 2.
	x := raw(t, []float64{1, 2, 4}, 1, 3, 1)
	pooled := backend.GridPool(x, 1, 2)

	pool := NewGridPoolOp(x, pooled).Backward(raw(t, []float64{1, 1}, 1, 2, 1), backend)
	assert.Equal(t, tensor.Shape{1, 3, 1}, pool[0].Shape())
	assert.Equal(t, []float64{1, 0.5, 0.5}, pool[0].AsFloat64())

	expanded := backend.GridExpand(pooled, 1, 3)
	expand := NewGridExpandOp(pooled, expanded).Backward(raw(t, []float64{1, 2, 3}, 1, 3, 1), backend)
	assert.Equal(t, tensor.Shape{1, 2, 1}, expand[0].Shape())
	assert.Equal(t, []float64{1, 5}, expand[0].AsFloat64())
}
