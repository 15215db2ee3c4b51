package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/born-ml/topoloss/internal/autodiff"
	"github.com/born-ml/topoloss/internal/backend/cpu"
	"github.com/born-ml/topoloss/internal/nn"
	"github.com/born-ml/topoloss/internal/optim"
	"github.com/born-ml/topoloss/internal/tensor"
	"github.com/born-ml/topoloss/internal/topoloss"
	"github.com/samber/lo"
)

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Summary is the outcome of a training run.
type Summary struct {
	First  float64            // total loss at the first step
	Last   float64            // total loss at the last step
	Report map[string]float64 // unscaled per-layer losses after training
	State  map[string]*tensor.RawTensor
}

// buildModel builds the Sequential described by cfg and returns the input
// shape a batch must have.
func buildModel(cfg *Config, backend backendT, rng *rand.Rand) (*nn.Sequential[backendT], tensor.Shape, error) {
	model := nn.NewSequential[backendT]()
	var input tensor.Shape
	spatial := false

	for i, l := range cfg.Layers {
		opts := []nn.Option{nn.WithRand(rng)}
		useBias := l.Bias == nil || *l.Bias

		switch l.Type {
		case "linear":
			if l.In < 1 || l.Out < 1 {
				return nil, nil, fmt.Errorf("layers[%d]: linear needs positive in and out", i)
			}
			if spatial {
				return nil, nil, fmt.Errorf("layers[%d]: linear cannot follow conv2d", i)
			}
			if input == nil {
				input = tensor.Shape{cfg.Batch, l.In}
			}
			if !useBias {
				opts = append(opts, nn.WithoutBias())
			}
			model.Add(nn.NewLinear(l.In, l.Out, backend, opts...))
		case "conv2d":
			if l.In < 1 || l.Out < 1 || l.Kernel < 1 || l.Stride < 1 || l.Padding < 0 {
				return nil, nil, fmt.Errorf("layers[%d]: conv2d needs positive in, out, kernel and stride", i)
			}
			if input == nil {
				input = tensor.Shape{cfg.Batch, l.In, cfg.Input.Height, cfg.Input.Width}
				spatial = true
			}
			if !spatial {
				return nil, nil, fmt.Errorf("layers[%d]: conv2d cannot follow linear", i)
			}
			model.Add(nn.NewConv2D(l.In, l.Out, l.Kernel, l.Kernel, l.Stride, l.Padding, useBias, backend, opts...))
		case "relu":
			model.Add(nn.NewReLU[backendT]())
		default:
			return nil, nil, fmt.Errorf("layers[%d]: unknown layer type %q (want linear, conv2d or relu)", i, l.Type)
		}
	}
	if input == nil {
		return nil, nil, fmt.Errorf("model has no linear or conv2d layer")
	}
	return model, input, nil
}

func newOptimizer(cfg OptimizerCfg, params []*nn.Parameter[backendT], backend backendT) optim.Optimizer {
	if cfg.Name == "adam" {
		return optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR}, backend)
	}
	return optim.NewSGD(params, optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}, backend)
}

// task is a fixed synthetic regression problem: random inputs mapped to
// random targets.
type task struct {
	input  *tensor.Tensor[float32, backendT]
	target *tensor.Tensor[float32, backendT]
	loss   *nn.MSELoss[backendT]
}

func newTask(model nn.Module[backendT], shape tensor.Shape, rng *rand.Rand, backend backendT) (*task, error) {
	input := tensor.Randn[float32](shape, rng, backend)
	out, err := forward(model, input)
	if err != nil {
		return nil, err
	}
	target := tensor.Randn[float32](out.Shape(), rng, backend)
	return &task{input: input, target: target, loss: nn.NewMSELoss[backendT]()}, nil
}

// forward runs the model, turning backend shape panics into an error.
func forward(model nn.Module[backendT], input *tensor.Tensor[float32, backendT]) (out *tensor.Tensor[float32, backendT], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model does not accept input %v: %v", input.Shape(), r)
		}
	}()
	return model.Forward(input), nil
}

// session is a model built from a config together with its losses.
type session struct {
	backend    backendT
	rng        *rand.Rand
	model      *nn.Sequential[backendT]
	inputShape tensor.Shape
	tl         *topoloss.TopoLoss[backendT]
	bound      topoloss.Model[backendT]
}

// newSession builds the model and losses of cfg and checks every spec
// against the model before returning.
func newSession(cfg *Config) (*session, error) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(cfg.Seed))

	model, inputShape, err := buildModel(cfg, backend, rng)
	if err != nil {
		return nil, err
	}
	specs, err := cfg.specs()
	if err != nil {
		return nil, err
	}
	tl, err := topoloss.New[backendT](specs...)
	if err != nil {
		return nil, err
	}
	s := &session{
		backend:    backend,
		rng:        rng,
		model:      model,
		inputShape: inputShape,
		tl:         tl,
		bound:      topoloss.Bind[backendT](model),
	}
	if _, err := tl.Report(s.bound); err != nil {
		return nil, err
	}
	return s, nil
}

// train runs cfg.Steps optimizer steps on the topographic losses (plus the
// optional task loss) and logs the loss report every cfg.LogEvery steps.
func train(ctx context.Context, cfg *Config, logger *slog.Logger) (Summary, error) {
	s, err := newSession(cfg)
	if err != nil {
		return Summary{}, err
	}
	backend, model, tl, bound := s.backend, s.model, s.tl, s.bound

	var tk *task
	if cfg.TaskWeight > 0 {
		if tk, err = newTask(model, s.inputShape, s.rng, backend); err != nil {
			return Summary{}, err
		}
	}
	contributing := lo.SomeBy(tl.Specs(), topoloss.LossSpec.Contributes)

	opt := newOptimizer(cfg.Optimizer, model.Parameters(), backend)
	logger.Info("training",
		slog.Int("layers", len(cfg.Layers)),
		slog.Int("params", len(model.Parameters())),
		slog.Int("specs", len(tl.Specs())),
		slog.String("optimizer", cfg.Optimizer.Name),
		slog.Float64("lr", float64(opt.GetLR())),
	)

	var summary Summary
	tape := backend.Tape()
	for step := 1; step <= cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		tape.Clear()
		tape.StartRecording()

		var total *tensor.Tensor[float32, backendT]
		if contributing {
			if total, err = tl.Loss(bound); err != nil {
				tape.StopRecording()
				return summary, err
			}
		}
		if tk != nil {
			taskLoss := tk.loss.Forward(model.Forward(tk.input), tk.target).MulScalar(cfg.TaskWeight)
			if total == nil {
				total = taskLoss
			} else {
				total = total.Add(taskLoss)
			}
		}

		grads := autodiff.Backward(total, backend)
		tape.StopRecording()
		opt.Step(grads)
		opt.ZeroGrad()

		value := float64(total.Item())
		if step == 1 {
			summary.First = value
		}
		summary.Last = value

		if step == 1 || step%cfg.LogEvery == 0 || step == cfg.Steps {
			report, err := tl.Report(bound)
			if err != nil {
				return summary, err
			}
			logger.Info("step", reportAttrs(step, value, report)...)
		}
	}

	summary.Report, err = tl.Report(bound)
	summary.State = nn.StateDict[backendT](model)
	return summary, err
}

func reportAttrs(step int, loss float64, report map[string]float64) []any {
	keys := lo.Keys(report)
	slices.Sort(keys)

	attrs := []any{slog.Int("step", step), slog.Float64("loss", loss)}
	for _, k := range keys {
		attrs = append(attrs, slog.Float64("topo."+k, report[k]))
	}
	return attrs
}
