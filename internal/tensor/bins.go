package tensor

import (
	"fmt"
	"math"
)

// Bins partitions n consecutive positions into `bins` contiguous,
// non-overlapping, non-empty groups and returns the bins+1 boundaries.
//
// Bin i covers [floor(i*n/bins), floor((i+1)*n/bins)). Sizes differ by at
// most one and the larger bins are spread evenly. Requires 1 <= bins <= n.
//
//	Bins(9, 6) → [0 1 3 4 6 7 9]  (sizes 1,2,1,2,1,2)
//	Bins(4, 2) → [0 2 4]
func Bins(n, bins int) []int {
	if bins < 1 || bins > n {
		panic(fmt.Sprintf("bins: cannot split %d positions into %d bins", n, bins))
	}
	edges := make([]int, bins+1)
	for i := 0; i <= bins; i++ {
		edges[i] = i * n / bins
	}
	return edges
}

// BinIndex returns, for each of the n positions, the bin that covers it
// under the Bins(n, bins) partition.
func BinIndex(n, bins int) []int {
	edges := Bins(n, bins)
	index := make([]int, n)
	for b := 0; b < bins; b++ {
		for i := edges[b]; i < edges[b+1]; i++ {
			index[i] = b
		}
	}
	return index
}

// ShrinkBins returns the number of bins that results from shrinking n
// positions by factor: round(n / factor), rounding half away from zero.
// The result may be 0 when the factor exceeds the axis; callers reject it.
func ShrinkBins(n int, factor float64) int {
	return int(math.Round(float64(n) / factor))
}

// BinCounts returns an [h, w, 1] tensor holding how many cells of an
// [outH, outW] grid fall in each bin of the h×w partition.
func BinCounts(h, w, outH, outW int, dtype DataType, device Device) *RawTensor {
	rows := Bins(outH, h)
	cols := Bins(outW, w)
	result := MustNewRaw("bincounts", Shape{h, w, 1}, dtype, device)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			n := (rows[i+1] - rows[i]) * (cols[j+1] - cols[j])
			switch dtype {
			case Float32:
				result.AsFloat32()[i*w+j] = float32(n)
			case Float64:
				result.AsFloat64()[i*w+j] = float64(n)
			}
		}
	}
	return result
}
