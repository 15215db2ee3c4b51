// Package topoloss computes topographic regularization losses.
//
// Each LossSpec lays the parameters of one layer out on a 2-D sheet and
// scores how smoothly neighbouring units vary across a pyramid of
// progressively pooled versions of that sheet. The losses are added to a
// task loss so that training favours topographically organized layers.
//
//	model := nn.NewSequential[B](nn.NewLinear(30, 25, b), nn.NewReLU[B](), nn.NewLinear(25, 20, b))
//	tl, err := topoloss.New[B](
//	    topoloss.OutputWeights("0", topoloss.Scale(1), topoloss.Uniform(2)...),
//	    topoloss.OutputWeights("2", nil, topoloss.Uniform(2)...), // logging only
//	)
//	loss, err := tl.Loss(topoloss.Bind[B](model))
//
// Sheets are rebuilt from the live parameters on every call. Nothing is
// cached between calls.
package topoloss

import (
	"slices"

	"github.com/born-ml/topoloss/internal/tensor"
	"github.com/samber/lo"
)

// MeanKey is the Report entry holding the mean loss.
const MeanKey = "mean"

// TopoLoss evaluates a fixed list of loss specs against a model.
type TopoLoss[B tensor.Backend] struct {
	specs []LossSpec
}

// New validates specs and returns a TopoLoss over them.
//
// Each spec must have valid shrink factors and target a distinct layer.
// Layer compatibility is checked on every call, against the model passed in.
func New[B tensor.Backend](specs ...LossSpec) (*TopoLoss[B], error) {
	for _, spec := range specs {
		if err := Validate(spec); err != nil {
			return nil, err
		}
	}
	if dups := lo.FindDuplicatesBy(specs, LossSpec.Target); len(dups) > 0 {
		return nil, configErrorf(dups[0].Target(), dups[0].View(), "layer is targeted by more than one spec")
	}
	return &TopoLoss[B]{specs: slices.Clone(specs)}, nil
}

// Specs returns a copy of the spec list.
func (tl *TopoLoss[B]) Specs() []LossSpec {
	return slices.Clone(tl.specs)
}

// Result is the outcome of Compute. Exactly one field is set.
type Result[B tensor.Backend] struct {
	// Loss is the mean of the scaled contributing losses (reduceMean).
	Loss *tensor.Tensor[float32, B]
	// Layers maps layer names to scaled contributing losses.
	Layers map[string]*tensor.Tensor[float32, B]
}

// Compute evaluates every spec against model.
//
// Every spec is resolved before any loss is computed, so a bad spec fails
// the whole call. Logging-only specs (nil Scale) never appear in the
// result. With reduceMean the contributing losses are averaged; that
// fails with ErrConfiguration when no spec contributes.
func (tl *TopoLoss[B]) Compute(model Model[B], reduceMean bool) (Result[B], error) {
	layers, err := tl.Layerwise(model)
	if err != nil {
		return Result[B]{}, err
	}
	if !reduceMean {
		return Result[B]{Layers: layers}, nil
	}
	if len(layers) == 0 {
		return Result[B]{}, &ConfigError{Reason: "no spec has a scale, nothing to reduce"}
	}
	return Result[B]{Loss: mean(tl.ordered(layers))}, nil
}

// Loss is Compute with reduceMean.
func (tl *TopoLoss[B]) Loss(model Model[B]) (*tensor.Tensor[float32, B], error) {
	res, err := tl.Compute(model, true)
	if err != nil {
		return nil, err
	}
	return res.Loss, nil
}

// LayerwiseOption configures Layerwise.
type LayerwiseOption func(*layerwiseConfig)

type layerwiseConfig struct {
	unscaled bool
}

// Unscaled returns every spec's raw pyramid loss, logging-only specs
// included.
func Unscaled() LayerwiseOption {
	return func(c *layerwiseConfig) {
		c.unscaled = true
	}
}

// Layerwise returns the per-layer losses keyed by layer name. By default
// each contributing loss is multiplied by its scale and logging-only
// specs are left out.
func (tl *TopoLoss[B]) Layerwise(model Model[B], opts ...LayerwiseOption) (map[string]*tensor.Tensor[float32, B], error) {
	var cfg layerwiseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	targets, err := tl.resolveAll(model)
	if err != nil {
		return nil, err
	}

	losses := make(map[string]*tensor.Tensor[float32, B], len(targets))
	for _, r := range targets {
		scale := r.spec.params().Scale
		if !cfg.unscaled && scale == nil {
			continue
		}
		loss, err := r.loss()
		if err != nil {
			return nil, err
		}
		if !cfg.unscaled {
			loss = loss.MulScalar(float32(*scale))
		}
		losses[r.spec.Target()] = loss
	}
	return losses, nil
}

// Report returns every unscaled per-layer loss plus MeanKey, for logging.
//
// The mean covers the specs that have a scale, or all specs when every
// spec is logging-only. The tape is paused while computing when the
// backend supports it.
func (tl *TopoLoss[B]) Report(model Model[B]) (map[string]float64, error) {
	targets, err := tl.resolveAll(model)
	if err != nil {
		return nil, err
	}
	report := make(map[string]float64, len(targets)+1)
	if len(targets) == 0 {
		return report, nil
	}

	if p, ok := any(targets[0].layer.Weight.Backend()).(interface{ PauseRecording() func() }); ok {
		defer p.PauseRecording()()
	}

	for _, r := range targets {
		loss, err := r.loss()
		if err != nil {
			return nil, err
		}
		report[r.spec.Target()] = float64(loss.Item())
	}

	contributing := lo.Filter(targets, func(r resolved[B], _ int) bool {
		return r.spec.Contributes()
	})
	if len(contributing) == 0 {
		contributing = targets
	}
	report[MeanKey] = lo.SumBy(contributing, func(r resolved[B]) float64 {
		return report[r.spec.Target()]
	}) / float64(len(contributing))
	return report, nil
}

func (tl *TopoLoss[B]) resolveAll(model Model[B]) ([]resolved[B], error) {
	targets := make([]resolved[B], 0, len(tl.specs))
	for _, spec := range tl.specs {
		r, err := resolve(model, spec)
		if err != nil {
			return nil, err
		}
		targets = append(targets, r)
	}
	return targets, nil
}

// ordered returns the losses in spec order so reductions are deterministic.
func (tl *TopoLoss[B]) ordered(losses map[string]*tensor.Tensor[float32, B]) []*tensor.Tensor[float32, B] {
	out := make([]*tensor.Tensor[float32, B], 0, len(losses))
	for _, spec := range tl.specs {
		if loss, ok := losses[spec.Target()]; ok {
			out = append(out, loss)
		}
	}
	return out
}

func (r resolved[B]) loss() (*tensor.Tensor[float32, B], error) {
	sheet, err := BuildSheet(r.layer, r.spec.View())
	if err != nil {
		return nil, withLayer(err, r.spec.Target())
	}
	loss, err := PyramidLoss(sheet, r.spec.params().Factors)
	if err != nil {
		return nil, withLayer(err, r.spec.Target())
	}
	return loss, nil
}

func mean[B tensor.Backend](losses []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	total := losses[0]
	for _, l := range losses[1:] {
		total = total.Add(l)
	}
	return total.MulScalar(float32(1.0 / float64(len(losses))))
}
