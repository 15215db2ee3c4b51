// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go kernels (no CGO), matrix products through gonum BLAS
//   - Im2col (Unfold/Fold) for convolutions
//   - Adaptive grid pooling (GridPool/GridExpand) for topographic sheets
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	model := nn.NewLinear(784, 10, backend)
//
// Features reports the SIMD extensions of the host, as shown by
// "topoloss version".
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu
