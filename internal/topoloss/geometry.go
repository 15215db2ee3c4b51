package topoloss

import (
	"fmt"
	"math"
)

// SheetShape is the 2-D layout of a sheet. Height <= Width and
// Height*Width equals the number of units laid out on it.
type SheetShape struct {
	Height int
	Width  int
}

// Size returns Height*Width.
func (s SheetShape) Size() int {
	return s.Height * s.Width
}

// String returns "HxW".
func (s SheetShape) String() string {
	return fmt.Sprintf("%dx%d", s.Height, s.Width)
}

// ResolveSheetShape returns the most square factorization of n: the height
// is the largest divisor of n not above sqrt(n). Primes give 1×n.
//
//	ResolveSheetShape(30) → 5x6
//	ResolveSheetShape(17) → 1x17
func ResolveSheetShape(n int) SheetShape {
	if n < 1 {
		panic(fmt.Sprintf("topoloss: cannot lay out %d units on a sheet", n))
	}
	h := int(math.Sqrt(float64(n)))
	// Correct float rounding of the root for large n.
	for h*h > n {
		h--
	}
	for (h+1)*(h+1) <= n {
		h++
	}
	for n%h != 0 {
		h--
	}
	return SheetShape{Height: h, Width: n / h}
}
