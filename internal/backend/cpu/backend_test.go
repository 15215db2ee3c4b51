package cpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/topoloss/internal/parallel"
	"github.com/born-ml/topoloss/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw64(t *testing.T, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat64(), data)
	return r
}

func raw32(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func TestCPUBackend_Metadata(t *testing.T) {
	b := New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
	assert.NotPanics(t, func() { _ = b.Features() })
}

func TestCPUBackend_Binary(t *testing.T) {
	b := New()
	a := raw64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	row := raw64(t, []float64{10, 20, 30}, 3)
	col := raw64(t, []float64{2, 4}, 2, 1)

	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, b.Add(a, row).AsFloat64())
	assert.Equal(t, []float64{-9, -18, -27, -6, -15, -24}, b.Sub(a, row).AsFloat64())
	assert.Equal(t, []float64{2, 4, 6, 16, 20, 24}, b.Mul(a, col).AsFloat64())
	assert.Equal(t, []float64{0.5, 1, 1.5, 1, 1.25, 1.5}, b.Div(a, col).AsFloat64())
	assert.Equal(t, tensor.Shape{2, 3}, b.Add(a, row).Shape())

	f := raw32(t, []float32{1, 2}, 2)
	assert.Equal(t, []float32{2, 4}, b.Add(f, f).AsFloat32())
}

func TestCPUBackend_BinaryPanics(t *testing.T) {
	b := New()
	assert.PanicsWithValue(t, "add: dtype mismatch float32 vs float64", func() {
		b.Add(raw32(t, []float32{1}, 1), raw64(t, []float64{1}, 1))
	})
	assert.Panics(t, func() {
		b.Mul(raw64(t, make([]float64, 6), 2, 3), raw64(t, make([]float64, 4), 4))
	})
}

func TestCPUBackend_Scalar(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, -2, 3}, 3)
	assert.Equal(t, []float64{2, -4, 6}, b.MulScalar(x, 2.0).AsFloat64())
	assert.Equal(t, []float64{1.5, -1.5, 3.5}, b.AddScalar(x, 0.5).AsFloat64())
	assert.Panics(t, func() { b.MulScalar(x, float32(2)) })
}

func TestCPUBackend_Unary(t *testing.T) {
	b := New()
	x := raw64(t, []float64{4, -9, 0}, 3)
	assert.Equal(t, []float64{4, 9, 0}, b.Abs(x).AsFloat64())
	assert.Equal(t, []float64{4, 0, 0}, b.ReLU(x).AsFloat64())
	assert.Equal(t, []float64{2, 3}, b.Sqrt(raw64(t, []float64{4, 9}, 2)).AsFloat64())

	f := raw32(t, []float32{16, -1}, 2)
	assert.Equal(t, []float32{4}, b.Sqrt(raw32(t, []float32{16}, 1)).AsFloat32())
	assert.Equal(t, []float32{16, 1}, b.Abs(f).AsFloat32())
}

func TestCPUBackend_Reduce(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	sum := b.Sum(x)
	assert.Equal(t, tensor.Shape{}, sum.Shape())
	assert.Equal(t, []float64{21}, sum.AsFloat64())

	rows := b.SumDim(x, -1, false)
	assert.Equal(t, tensor.Shape{2}, rows.Shape())
	assert.Equal(t, []float64{6, 15}, rows.AsFloat64())

	cols := b.SumDim(x, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, cols.Shape())
	assert.Equal(t, []float64{5, 7, 9}, cols.AsFloat64())

	mean := b.MeanDim(x, 1, true)
	assert.Equal(t, tensor.Shape{2, 1}, mean.Shape())
	assert.Equal(t, []float64{2, 5}, mean.AsFloat64())
}

func TestCPUBackend_ReshapeTranspose(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	r := b.Reshape(x, tensor.Shape{3, 2})
	assert.Equal(t, tensor.Shape{3, 2}, r.Shape())
	assert.Equal(t, x.AsFloat64(), r.AsFloat64())
	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{4}) })

	tr := b.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.AsFloat64())

	// [2, 1, 3] -> [3, 2, 1]
	y := raw64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 1, 3)
	p := b.Transpose(y, 2, 0, 1)
	assert.Equal(t, tensor.Shape{3, 2, 1}, p.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, p.AsFloat64())

	assert.Panics(t, func() { b.Transpose(y, 0, 0, 1) })
}

func TestCPUBackend_MatMul(t *testing.T) {
	b := New()
	a := raw64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	m := raw64(t, []float64{7, 8, 9, 10, 11, 12}, 3, 2)

	out := b.MatMul(a, m)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, out.AsFloat64())

	a32 := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	m32 := raw32(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)
	assert.Equal(t, []float32{58, 64, 139, 154}, b.MatMul(a32, m32).AsFloat32())

	assert.Panics(t, func() { b.MatMul(a, a) })
}

func TestCPUBackend_UnfoldFold(t *testing.T) {
	b := New()
	// One sample, one channel, 3x3 image.
	x := raw64(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)

	cols := b.Unfold(x, 2, 2, 1, 0)
	assert.Equal(t, tensor.Shape{4, 4}, cols.Shape())
	assert.Equal(t, []float64{
		1, 2, 4, 5,
		2, 3, 5, 6,
		4, 5, 7, 8,
		5, 6, 8, 9,
	}, cols.AsFloat64())

	// Fold counts how many patches touched each pixel.
	ones := raw64(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, 4, 4)
	folded := b.Fold(ones, tensor.Shape{1, 1, 3, 3}, 2, 2, 1, 0)
	assert.Equal(t, []float64{1, 2, 1, 2, 4, 2, 1, 2, 1}, folded.AsFloat64())

	padded := b.Unfold(x, 3, 3, 1, 1)
	assert.Equal(t, tensor.Shape{9, 9}, padded.Shape())
	// Centre patch is the whole image.
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, padded.AsFloat64()[4*9:5*9])
	// Top-left patch is zero-padded on its first row and column.
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 2, 0, 4, 5}, padded.AsFloat64()[:9])

	assert.Equal(t, 2, ConvOutputSize(3, 2, 1, 0))
	assert.Equal(t, 3, ConvOutputSize(5, 3, 2, 1))
}

func TestCPUBackend_GridPool(t *testing.T) {
	b := New()
	// 2x4 grid, D=1.
	x := raw64(t, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, 2, 4, 1)

	pooled := b.GridPool(x, 1, 2)
	assert.Equal(t, tensor.Shape{1, 2, 1}, pooled.Shape())
	assert.Equal(t, []float64{3.5, 5.5}, pooled.AsFloat64())

	// Uneven split: 3 columns into 2 bins of size 1 and 2.
	y := raw64(t, []float64{1, 2, 4}, 1, 3, 1)
	assert.Equal(t, []float64{1, 3}, b.GridPool(y, 1, 2).AsFloat64())

	// D > 1 pools each component independently.
	z := raw64(t, []float64{1, 10, 3, 30}, 1, 2, 2)
	assert.Equal(t, []float64{2, 20}, b.GridPool(z, 1, 1).AsFloat64())

	assert.Panics(t, func() { b.GridPool(x, 3, 1) })
}

func TestCPUBackend_GridExpand(t *testing.T) {
	b := New()
	coarse := raw64(t, []float64{1, 3}, 1, 2, 1)

	out := b.GridExpand(coarse, 2, 3)
	assert.Equal(t, tensor.Shape{2, 3, 1}, out.Shape())
	assert.Equal(t, []float64{1, 3, 3, 1, 3, 3}, out.AsFloat64())

	// Pooling an expanded grid is the identity.
	assert.Equal(t, coarse.AsFloat64(), b.GridPool(out, 1, 2).AsFloat64())
}

func TestCPUBackend_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fill := func(shape ...int) *tensor.RawTensor {
		data := make([]float64, tensor.Shape(shape).NumElements())
		for i := range data {
			data[i] = rng.NormFloat64()
		}
		return raw64(t, data, shape...)
	}

	seq := New()
	seq.SetParallel(parallel.Sequential())
	par := New()
	par.SetParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})

	grid := fill(9, 11, 5)
	assert.Equal(t, seq.GridPool(grid, 6, 4).AsFloat64(), par.GridPool(grid, 6, 4).AsFloat64())
	coarse := fill(3, 4, 5)
	assert.Equal(t, seq.GridExpand(coarse, 9, 11).AsFloat64(), par.GridExpand(coarse, 9, 11).AsFloat64())

	img := fill(6, 2, 5, 5)
	cols := seq.Unfold(img, 3, 3, 1, 1)
	assert.Equal(t, cols.AsFloat64(), par.Unfold(img, 3, 3, 1, 1).AsFloat64())
	assert.Equal(t,
		seq.Fold(cols, img.Shape(), 3, 3, 1, 1).AsFloat64(),
		par.Fold(cols, img.Shape(), 3, 3, 1, 1).AsFloat64(),
	)
}
