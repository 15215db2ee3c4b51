// Package cpu implements the CPU backend: pure Go kernels with gonum BLAS
// for matrix products.
package cpu

import (
	"fmt"

	"github.com/born-ml/topoloss/internal/parallel"
	"github.com/born-ml/topoloss/internal/tensor"
	xcpu "golang.org/x/sys/cpu"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// SetParallel sets how the grid and patch kernels split work across
// goroutines.
func (cpu *CPUBackend) SetParallel(cfg parallel.Config) {
	cpu.par = cfg
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Features lists the SIMD extensions detected on the host.
func (cpu *CPUBackend) Features() []string {
	var features []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"sse4.1", xcpu.X86.HasSSE41},
		{"avx", xcpu.X86.HasAVX},
		{"avx2", xcpu.X86.HasAVX2},
		{"fma", xcpu.X86.HasFMA},
		{"avx512f", xcpu.X86.HasAVX512F},
		{"asimd", xcpu.ARM64.HasASIMD},
		{"sve", xcpu.ARM64.HasSVE},
	} {
		if f.ok {
			features = append(features, f.name)
		}
	}
	return features
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, opAdd)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, opSub)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, opMul)
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, opDiv)
}

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
)

func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, op binaryOp) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustNewRaw(name, outShape, a.DType(), cpu.device)

	switch a.DType() {
	case tensor.Float32:
		applyBinary(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, needsBroadcast, op)
	case tensor.Float64:
		applyBinary(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, needsBroadcast, op)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}

	return result
}

func applyBinary[E tensor.DType](dst, x, y []E, xShape, yShape, outShape tensor.Shape, broadcast bool, op binaryOp) {
	fn := binaryFunc[E](op)
	if !broadcast {
		for i := range dst {
			dst[i] = fn(x[i], y[i])
		}
		return
	}

	xIdx := tensor.BroadcastIndex(xShape, outShape)
	yIdx := tensor.BroadcastIndex(yShape, outShape)
	for i := range dst {
		dst[i] = fn(x[xIdx[i]], y[yIdx[i]])
	}
}

func binaryFunc[E tensor.DType](op binaryOp) func(a, b E) E {
	switch op {
	case opAdd:
		return func(a, b E) E { return a + b }
	case opSub:
		return func(a, b E) E { return a - b }
	case opMul:
		return func(a, b E) E { return a * b }
	case opDiv:
		return func(a, b E) E { return a / b }
	default:
		panic(fmt.Sprintf("unknown binary op %d", op))
	}
}

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalar("mulScalar", x, scalar, opMul)
}

// AddScalar adds a scalar value to each element of the tensor.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalar("addScalar", x, scalar, opAdd)
}

func (cpu *CPUBackend) scalar(name string, x *tensor.RawTensor, scalar any, op binaryOp) *tensor.RawTensor {
	result := tensor.MustNewRaw(name, x.Shape(), x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		s, ok := scalar.(float32)
		if !ok {
			panic(fmt.Sprintf("%s: expected float32 scalar, got %T", name, scalar))
		}
		applyScalar(result.AsFloat32(), x.AsFloat32(), s, op)
	case tensor.Float64:
		s, ok := scalar.(float64)
		if !ok {
			panic(fmt.Sprintf("%s: expected float64 scalar, got %T", name, scalar))
		}
		applyScalar(result.AsFloat64(), x.AsFloat64(), s, op)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %v", name, x.DType()))
	}

	return result
}

func applyScalar[E tensor.DType](dst, x []E, s E, op binaryOp) {
	fn := binaryFunc[E](op)
	for i, v := range x {
		dst[i] = fn(v, s)
	}
}
