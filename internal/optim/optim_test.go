package optim_test

import (
	"testing"

	"github.com/born-ml/topoloss/internal/autodiff"
	"github.com/born-ml/topoloss/internal/backend/cpu"
	"github.com/born-ml/topoloss/internal/nn"
	"github.com/born-ml/topoloss/internal/optim"
	"github.com/born-ml/topoloss/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func param(t *testing.T, backend backendT, values ...float32) *nn.Parameter[backendT] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func gradFor(t *testing.T, p *nn.Parameter[backendT], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	g, err := tensor.NewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 2.0)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1}, backend)

	opt.Step(gradFor(t, p, 1.0))

	assert.InDelta(t, 1.9, float64(p.Tensor().Data()[0]), 1e-6)
	require.NotNil(t, p.Grad())
	assert.Equal(t, []float32{1}, p.Grad().Data())

	opt.ZeroGrad()
	assert.Nil(t, p.Grad())
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1.0)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// v1 = 1, x = 1 - 0.1 = 0.9
	opt.Step(gradFor(t, p, 1.0))
	assert.InDelta(t, 0.9, float64(p.Tensor().Data()[0]), 1e-6)

	// v2 = 0.9 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	opt.Step(gradFor(t, p, 1.0))
	assert.InDelta(t, 0.71, float64(p.Tensor().Data()[0]), 1e-6)
}

func TestSGD_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	opt := optim.NewSGD[backendT](nil, optim.SGDConfig{}, backend)
	assert.Equal(t, float32(0.01), opt.GetLR())

	opt.SetLR(0.5)
	assert.Equal(t, float32(0.5), opt.GetLR())
}

func TestSGD_SkipsParametersWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 3.0)
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1}, backend)

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{})
	assert.Equal(t, []float32{3}, p.Tensor().Data())
	assert.Nil(t, p.Grad())
}

func TestSGD_UpdateKeepsParameterIdentity(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, 2)
	raw := p.Tensor().Raw()
	opt := optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 1}, backend)

	backend.Tape().StartRecording()
	opt.Step(gradFor(t, p, 1, 1))

	assert.Same(t, raw, p.Tensor().Raw())
	assert.Equal(t, 0, backend.Tape().NumOps(), "updates must not be recorded")
}

func TestAdam_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1.0, -1.0)
	opt := optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{LR: 0.1}, backend)
	assert.Equal(t, float32(0.1), opt.GetLR())

	// With bias correction the first step moves each weight by ~lr·sign(g).
	opt.Step(gradFor(t, p, 0.5, -2))
	assert.InDeltaSlice(t, []float32{0.9, -0.9}, p.Tensor().Data(), 1e-5)

	opt.ZeroGrad()
	assert.Nil(t, p.Grad())
}

func TestOptimizers_MinimizeQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	for name, build := range map[string]func(p *nn.Parameter[backendT]) optim.Optimizer{
		"sgd":  func(p *nn.Parameter[backendT]) optim.Optimizer { return optim.NewSGD([]*nn.Parameter[backendT]{p}, optim.SGDConfig{LR: 0.1}, backend) },
		"adam": func(p *nn.Parameter[backendT]) optim.Optimizer { return optim.NewAdam([]*nn.Parameter[backendT]{p}, optim.AdamConfig{LR: 0.1}, backend) },
	} {
		t.Run(name, func(t *testing.T) {
			p := param(t, backend, 3.0, -2.0)
			opt := build(p)
			for range 200 {
				tape := backend.Tape()
				tape.Clear()
				tape.StartRecording()
				loss := p.Tensor().Mul(p.Tensor()).Sum()
				grads := autodiff.Backward(loss, backend)
				tape.StopRecording()
				opt.Step(grads)
				opt.ZeroGrad()
			}
			assert.InDeltaSlice(t, []float32{0, 0}, p.Tensor().Data(), 0.05)
		})
	}
}
