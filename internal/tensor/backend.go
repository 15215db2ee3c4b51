package tensor

// Backend defines the interface that compute backends implement.
//
// Every method returns a newly allocated RawTensor. Scalars passed as any
// must match the tensor dtype (float32 or float64).
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar).
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise math.
	Sqrt(x *RawTensor) *RawTensor
	Abs(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor                            // total sum, scalar result
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension

	// Shape operations.
	Reshape(x *RawTensor, newShape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor

	// MatMul multiplies 2-D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Unfold extracts convolution patches (im2col):
	// [N, C, H, W] -> [N*outH*outW, C*kh*kw].
	Unfold(x *RawTensor, kh, kw, stride, padding int) *RawTensor

	// Fold is the adjoint of Unfold: patch columns are scatter-added back
	// into a tensor of the given [N, C, H, W] shape.
	Fold(cols *RawTensor, shape Shape, kh, kw, stride, padding int) *RawTensor

	// GridPool average-pools a [H, W, D] grid into [outH, outW, D] using
	// the Bins partition along each spatial axis.
	GridPool(x *RawTensor, outH, outW int) *RawTensor

	// GridExpand is the nearest-bin adjoint of GridPool: every cell of the
	// [outH, outW, D] result takes the value of the [h, w, D] input bin
	// covering it.
	GridExpand(x *RawTensor, outH, outW int) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
