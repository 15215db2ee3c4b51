package cpu

import (
	"fmt"

	"github.com/born-ml/topoloss/internal/parallel"
	"github.com/born-ml/topoloss/internal/tensor"
)

// ConvOutputSize returns the spatial output size of a convolution window.
func ConvOutputSize(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}

// Unfold extracts sliding kh×kw patches from x [N, C, H, W] (im2col).
//
// Row n*outH*outW + oh*outW + ow holds the patch at (oh, ow) of sample n,
// laid out as C*kh*kw in the same order as a Conv2D weight [out, C, kh, kw]
// flattened per output channel. Out-of-range positions read as zero.
func (cpu *CPUBackend) Unfold(x *tensor.RawTensor, kh, kw, stride, padding int) *tensor.RawTensor {
	g := newPatchGeometry("unfold", x.Shape(), kh, kw, stride, padding)
	result := tensor.MustNewRaw("unfold", tensor.Shape{g.n * g.outH * g.outW, g.c * kh * kw}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		g.walk(cpu.par, func(dst, src int) { result.AsFloat32()[dst] = x.AsFloat32()[src] })
	case tensor.Float64:
		g.walk(cpu.par, func(dst, src int) { result.AsFloat64()[dst] = x.AsFloat64()[src] })
	default:
		panic(fmt.Sprintf("unfold: unsupported dtype %s", x.DType()))
	}

	return result
}

// Fold scatter-adds patch columns back into an [N, C, H, W] tensor.
func (cpu *CPUBackend) Fold(cols *tensor.RawTensor, shape tensor.Shape, kh, kw, stride, padding int) *tensor.RawTensor {
	g := newPatchGeometry("fold", shape, kh, kw, stride, padding)
	want := tensor.Shape{g.n * g.outH * g.outW, g.c * kh * kw}
	if !cols.Shape().Equal(want) {
		panic(fmt.Sprintf("fold: columns shape %v, expected %v", cols.Shape(), want))
	}

	result := tensor.MustNewRaw("fold", shape, cols.DType(), cpu.device)

	switch cols.DType() {
	case tensor.Float32:
		g.walk(cpu.par, func(src, dst int) { result.AsFloat32()[dst] += cols.AsFloat32()[src] })
	case tensor.Float64:
		g.walk(cpu.par, func(src, dst int) { result.AsFloat64()[dst] += cols.AsFloat64()[src] })
	default:
		panic(fmt.Sprintf("fold: unsupported dtype %s", cols.DType()))
	}

	return result
}

type patchGeometry struct {
	n, c, h, w      int
	kh, kw          int
	stride, padding int
	outH, outW      int
}

func newPatchGeometry(name string, shape tensor.Shape, kh, kw, stride, padding int) patchGeometry {
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N, C, H, W], got %v", name, shape))
	}
	if kh < 1 || kw < 1 || stride < 1 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid kernel %dx%d stride %d padding %d", name, kh, kw, stride, padding))
	}
	g := patchGeometry{
		n: shape[0], c: shape[1], h: shape[2], w: shape[3],
		kh: kh, kw: kw, stride: stride, padding: padding,
	}
	g.outH = ConvOutputSize(g.h, kh, stride, padding)
	g.outW = ConvOutputSize(g.w, kw, stride, padding)
	if g.outH < 1 || g.outW < 1 {
		panic(fmt.Sprintf("%s: kernel %dx%d larger than padded input %dx%d", name, kh, kw, g.h+2*padding, g.w+2*padding))
	}
	return g
}

// walk calls visit(colIdx, imgIdx) for every in-bounds patch element.
// Samples are visited concurrently; each touches only its own rows and image.
func (g patchGeometry) walk(par parallel.Config, visit func(colIdx, imgIdx int)) {
	cols := g.c * g.kh * g.kw
	parallel.For(g.n, func(n int) {
		for oh := 0; oh < g.outH; oh++ {
			for ow := 0; ow < g.outW; ow++ {
				row := (n*g.outH+oh)*g.outW + ow
				for c := 0; c < g.c; c++ {
					for i := 0; i < g.kh; i++ {
						y := oh*g.stride + i - g.padding
						if y < 0 || y >= g.h {
							continue
						}
						for j := 0; j < g.kw; j++ {
							x := ow*g.stride + j - g.padding
							if x < 0 || x >= g.w {
								continue
							}
							col := (c*g.kh+i)*g.kw + j
							visit(row*cols+col, ((n*g.c+c)*g.h+y)*g.w+x)
						}
					}
				}
			}
		}
	}, par)
}
