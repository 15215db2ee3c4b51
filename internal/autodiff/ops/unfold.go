package ops

import "github.com/born-ml/topoloss/internal/tensor"

// UnfoldOp records im2col patch extraction for convolution.
//
// Forward: [N, C, H, W] -> [N*outH*outW, C*kh*kw]
//
// Backward: Fold scatter-adds the column gradients back onto the pixels
// each patch read from.
type UnfoldOp struct {
	input           *tensor.RawTensor
	output          *tensor.RawTensor
	kh, kw          int
	stride, padding int
}

// NewUnfoldOp creates a new UnfoldOp.
func NewUnfoldOp(input, output *tensor.RawTensor, kh, kw, stride, padding int) *UnfoldOp {
	return &UnfoldOp{
		input:   input,
		output:  output,
		kh:      kh,
		kw:      kw,
		stride:  stride,
		padding: padding,
	}
}

// Backward computes input gradient for unfold.
func (op *UnfoldOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.Fold(outputGrad, op.input.Shape(), op.kh, op.kw, op.stride, op.padding),
	}
}

// Inputs returns the input tensors.
func (op *UnfoldOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *UnfoldOp) Output() *tensor.RawTensor {
	return op.output
}
