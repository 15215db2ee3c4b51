package topoloss

import (
	"fmt"
	"math"

	"github.com/born-ml/topoloss/internal/tensor"
)

const (
	// cosineEps is the floor of each vector norm in the cosine denominator.
	cosineEps = 1e-8
	// biasEps keeps the normalized difference defined when both values are 0.
	biasEps = 1e-8
)

// ShrinkFactor is the pooling factor applied to the height and width of one
// pyramid level to produce the next. Both must be > 1.
type ShrinkFactor struct {
	H float64
	W float64
}

// Uniform returns one square ShrinkFactor per value.
//
//	Uniform(2, 1.5) → [{2 2} {1.5 1.5}]
func Uniform(factors ...float64) []ShrinkFactor {
	out := make([]ShrinkFactor, len(factors))
	for i, f := range factors {
		out[i] = ShrinkFactor{H: f, W: f}
	}
	return out
}

func validFactor(f float64) bool {
	return f > 1 && !math.IsInf(f, 1)
}

// checkFactors validates the factor list on its own, independent of any
// layer.
func checkFactors(factors []ShrinkFactor) error {
	if len(factors) == 0 {
		return fmt.Errorf("no shrink factors")
	}
	for i, f := range factors {
		if !validFactor(f.H) || !validFactor(f.W) {
			return fmt.Errorf("shrink factor %d is %gx%g, each must be a finite value > 1", i, f.H, f.W)
		}
	}
	return nil
}

// PyramidShapes returns the grid shape of every pyramid level, level 0
// being base. Level k has round(size/factor) bins per axis of level k-1.
// A level that would collapse below 1×1 is an error.
func PyramidShapes(base SheetShape, factors []ShrinkFactor) ([]SheetShape, error) {
	if err := checkFactors(factors); err != nil {
		return nil, err
	}
	levels := make([]SheetShape, 0, len(factors)+1)
	levels = append(levels, base)
	for i, f := range factors {
		prev := levels[i]
		next := SheetShape{
			Height: tensor.ShrinkBins(prev.Height, f.H),
			Width:  tensor.ShrinkBins(prev.Width, f.W),
		}
		if next.Height < 1 || next.Width < 1 {
			return nil, fmt.Errorf("shrink factor %d (%gx%g) collapses the %v level %d grid", i, f.H, f.W, prev, i)
		}
		levels = append(levels, next)
	}
	return levels, nil
}

// PyramidLoss returns the multi-scale smoothness loss of a sheet.
//
// Level k is level k-1 average-pooled by factors[k-1]. For each level k ≥ 1
// every position of level k-1 is compared with the pooled vector of the
// level-k bin covering it, and the penalties of all levels are averaged.
// Vector sheets use 1 - cosine similarity. Scalar bias sheets use
// |a-b| / (|a|+|b|). The result is a scalar in [0, 2] (cosine) or [0, 1]
// (bias), 0 exactly when every unit agrees with its neighbourhood.
func PyramidLoss[B tensor.Backend](sheet Sheet[B], factors []ShrinkFactor) (*tensor.Tensor[float32, B], error) {
	levels, err := PyramidShapes(sheet.Shape, factors)
	if err != nil {
		return nil, &ConfigError{View: sheet.View, Reason: err.Error()}
	}

	penalty := cosinePenalty[B]
	if sheet.View == BiasView {
		penalty = biasPenalty[B]
	}

	var total *tensor.Tensor[float32, B]
	fine := sheet.Values
	for _, level := range levels[1:] {
		coarse := fine.GridPool(level.Height, level.Width)

		shape := fine.Shape()
		expected := coarse.GridExpand(shape[0], shape[1])
		p := penalty(fine, expected)
		if total == nil {
			total = p
		} else {
			total = total.Add(p)
		}
		fine = coarse
	}
	return total.MulScalar(float32(1.0 / float64(len(factors)))), nil
}

// cosinePenalty is mean(1 - cos(a_i, b_i)) over the positions of two
// [H, W, D] grids, with cos = a·b / (max(|a|, eps) · max(|b|, eps)).
func cosinePenalty[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	dot := a.Mul(b).SumDim(-1, false)
	normA := a.Mul(a).SumDim(-1, false)
	normB := b.Mul(b).SumDim(-1, false)
	// Squared norms are clamped before the root, so Sqrt never sees 0 and
	// null vectors keep finite gradients.
	denom := clampMin(normA, cosineEps*cosineEps).Sqrt().Mul(clampMin(normB, cosineEps*cosineEps).Sqrt())
	return dot.Div(denom).OneMinus().Mean()
}

// clampMin returns max(x, floor) element-wise. The gradient is 0 where the
// floor applies.
func clampMin[B tensor.Backend](x *tensor.Tensor[float32, B], floor float32) *tensor.Tensor[float32, B] {
	return x.AddScalar(-floor).ReLU().AddScalar(floor)
}

// biasPenalty is mean(|a-b| / (|a|+|b|)) over two [H, W, 1] grids.
func biasPenalty[B tensor.Backend](a, b *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	diff := a.Sub(b).Abs()
	scale := a.Abs().Add(b.Abs()).AddScalar(biasEps)
	return diff.Div(scale).Mean()
}
