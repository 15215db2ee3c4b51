package cpu

import (
	"fmt"

	"github.com/born-ml/topoloss/internal/parallel"
	"github.com/born-ml/topoloss/internal/tensor"
)

// GridPool averages each bin of a [H, W, D] grid into [outH, outW, D].
//
// Bins along each axis follow tensor.Bins, so uneven splits (a 9-wide axis
// into 6 bins) pool groups of 1 and 2 cells.
func (cpu *CPUBackend) GridPool(x *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	h, w, d := gridDims("gridpool", x.Shape())
	rows := tensor.Bins(h, outH)
	cols := tensor.Bins(w, outW)

	result := tensor.MustNewRaw("gridpool", tensor.Shape{outH, outW, d}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		gridPool(result.AsFloat32(), x.AsFloat32(), rows, cols, w, d, cpu.par)
	case tensor.Float64:
		gridPool(result.AsFloat64(), x.AsFloat64(), rows, cols, w, d, cpu.par)
	default:
		panic(fmt.Sprintf("gridpool: unsupported dtype %s", x.DType()))
	}

	return result
}

func gridPool[E tensor.DType](dst, src []E, rows, cols []int, w, d int, par parallel.Config) {
	outW := len(cols) - 1
	parallel.For2D(len(rows)-1, outW, func(bi, bj int) {
		base := (bi*outW + bj) * d
		count := E((rows[bi+1] - rows[bi]) * (cols[bj+1] - cols[bj]))
		for i := rows[bi]; i < rows[bi+1]; i++ {
			for j := cols[bj]; j < cols[bj+1]; j++ {
				cell := (i*w + j) * d
				for k := 0; k < d; k++ {
					dst[base+k] += src[cell+k]
				}
			}
		}
		for k := 0; k < d; k++ {
			dst[base+k] /= count
		}
	}, par)
}

// GridExpand broadcasts each cell of an [h, w, D] grid over the bin of the
// [outH, outW, D] result it covers.
func (cpu *CPUBackend) GridExpand(x *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	h, w, d := gridDims("gridexpand", x.Shape())
	rowBin := tensor.BinIndex(outH, h)
	colBin := tensor.BinIndex(outW, w)

	result := tensor.MustNewRaw("gridexpand", tensor.Shape{outH, outW, d}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		gridExpand(result.AsFloat32(), x.AsFloat32(), rowBin, colBin, w, d, cpu.par)
	case tensor.Float64:
		gridExpand(result.AsFloat64(), x.AsFloat64(), rowBin, colBin, w, d, cpu.par)
	default:
		panic(fmt.Sprintf("gridexpand: unsupported dtype %s", x.DType()))
	}

	return result
}

func gridExpand[E tensor.DType](dst, src []E, rowBin, colBin []int, w, d int, par parallel.Config) {
	outW := len(colBin)
	parallel.For(len(rowBin), func(i int) {
		bi := rowBin[i]
		for j, bj := range colBin {
			copy(dst[(i*outW+j)*d:(i*outW+j+1)*d], src[(bi*w+bj)*d:(bi*w+bj+1)*d])
		}
	}, par)
}

func gridDims(name string, shape tensor.Shape) (h, w, d int) {
	if len(shape) != 3 {
		panic(fmt.Sprintf("%s: expected 3D grid [H, W, D], got %v", name, shape))
	}
	return shape[0], shape[1], shape[2]
}
