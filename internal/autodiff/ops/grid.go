package ops

import "github.com/born-ml/topoloss/internal/tensor"

// GridPoolOp records bin-average pooling of a [H, W, D] grid to [h, w, D].
//
// Each input cell contributes 1/|bin| to its bin's mean, so
//
//	grad_x = GridExpand(grad_y / counts, H, W)
//
// where counts is the [h, w, 1] tensor of bin sizes.
type GridPoolOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewGridPoolOp creates a new GridPoolOp.
func NewGridPoolOp(input, output *tensor.RawTensor) *GridPoolOp {
	return &GridPoolOp{input: input, output: output}
}

// Backward computes input gradient for grid pooling.
func (op *GridPoolOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	in, out := op.input.Shape(), op.output.Shape()
	counts := tensor.BinCounts(out[0], out[1], in[0], in[1], outputGrad.DType(), backend.Device())
	scaled := backend.Div(outputGrad, counts)
	return []*tensor.RawTensor{backend.GridExpand(scaled, in[0], in[1])}
}

// Inputs returns the input tensors.
func (op *GridPoolOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *GridPoolOp) Output() *tensor.RawTensor {
	return op.output
}

// GridExpandOp records the expansion of a [h, w, D] grid onto [H, W, D].
//
// Each input cell is copied to every cell of its bin, so its gradient is
// the sum over that bin:
//
//	grad_x = GridPool(grad_y, h, w) * counts
type GridExpandOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewGridExpandOp creates a new GridExpandOp.
func NewGridExpandOp(input, output *tensor.RawTensor) *GridExpandOp {
	return &GridExpandOp{input: input, output: output}
}

// Backward computes input gradient for grid expansion.
func (op *GridExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	in, out := op.input.Shape(), op.output.Shape()
	counts := tensor.BinCounts(in[0], in[1], out[0], out[1], outputGrad.DType(), backend.Device())
	pooled := backend.GridPool(outputGrad, in[0], in[1])
	return []*tensor.RawTensor{backend.Mul(pooled, counts)}
}

// Inputs returns the input tensors.
func (op *GridExpandOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *GridExpandOp) Output() *tensor.RawTensor {
	return op.output
}
