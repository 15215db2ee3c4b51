package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/born-ml/topoloss/internal/autodiff"
	"github.com/born-ml/topoloss/internal/backend/cpu"
	"github.com/born-ml/topoloss/internal/serialization"
	"github.com/born-ml/topoloss/internal/topoloss"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mlpConfig = `
seed: 1
steps: 10
log_every: 5
optimizer: {name: sgd, lr: 1}
layers:
  - {type: linear, in: 30, out: 25}
  - {type: relu}
  - {type: linear, in: 25, out: 20}
losses:
  - {layer: "0", scale: 1.0, shrink_factors: [2]}
  - {layer: "2", view: input, shrink_factors: [2]}
`

func mustParse(t *testing.T, src string) *Config {
	t.Helper()
	cfg, err := parseConfig(strings.NewReader(src))
	require.NoError(t, err)
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg := mustParse(t, `
layers: [{type: conv2d, in: 3, out: 4}]
losses: [{layer: "0", scale: 2}]
`)
	assert.Equal(t, 100, cfg.Steps)
	assert.Equal(t, 10, cfg.LogEvery)
	assert.Equal(t, 8, cfg.Batch)
	assert.Equal(t, InputConfig{Height: 8, Width: 8}, cfg.Input)
	assert.Equal(t, "sgd", cfg.Optimizer.Name)
	assert.Equal(t, 3, cfg.Layers[0].Kernel)
	assert.Equal(t, 1, cfg.Layers[0].Stride)
	assert.Equal(t, "output", cfg.Losses[0].View)
	require.NotNil(t, cfg.Losses[0].Scale)
	assert.Equal(t, 2.0, *cfg.Losses[0].Scale)
}

func TestParseConfig_ZeroSteps(t *testing.T) {
	cfg := mustParse(t, `
steps: 0
layers: [{type: linear, in: 4, out: 9}]
losses: [{layer: "0", scale: 1, shrink_factors: [2]}]
`)
	assert.Equal(t, 0, cfg.Steps)

	summary, err := train(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, summary.First)
	assert.Contains(t, summary.Report, "0")
	assert.Len(t, summary.State, 2)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", "config is empty"},
		{"unknown key", "layerz: []", "decode config"},
		{"no layers", `losses: [{layer: "0", scale: 1}]`, "no layers"},
		{"no losses", `layers: [{type: relu}]`, "no losses"},
		{
			"unknown optimizer",
			"optimizer: {name: rmsprop}\nlayers: [{type: relu}]\nlosses: [{layer: \"0\", scale: 1}]",
			"unknown optimizer",
		},
		{
			"negative steps",
			"steps: -1\nlayers: [{type: relu}]\nlosses: [{layer: \"0\", scale: 1}]",
			"must not be negative",
		},
		{
			"nothing to train",
			"layers: [{type: relu}]\nlosses: [{layer: \"0\"}]",
			"nothing to train",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseConfig_TaskWeightAllowsLoggingOnly(t *testing.T) {
	cfg := mustParse(t, `
task_weight: 1
layers: [{type: linear, in: 4, out: 4}]
losses: [{layer: "0"}]
`)
	assert.Equal(t, float32(1), cfg.TaskWeight)
}

func TestConfig_Specs(t *testing.T) {
	cfg := mustParse(t, mlpConfig)
	specs, err := cfg.specs()
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.IsType(t, topoloss.OutputWeightsSpec{}, specs[0])
	assert.Equal(t, "0", specs[0].Target())
	assert.True(t, specs[0].Contributes())

	assert.IsType(t, topoloss.InputWeightsSpec{}, specs[1])
	assert.False(t, specs[1].Contributes())

	t.Run("per-axis factor", func(t *testing.T) {
		cfg := mustParse(t, `
layers: [{type: linear, in: 4, out: 12}]
losses: [{layer: "0", scale: 1, factor_h: 2, factor_w: 3}]
`)
		specs, err := cfg.specs()
		require.NoError(t, err)
		assert.Equal(t, []topoloss.ShrinkFactor{{H: 2, W: 3}}, specs[0].(topoloss.OutputWeightsSpec).Factors)
	})

	t.Run("exclusive factors", func(t *testing.T) {
		cfg := mustParse(t, `
layers: [{type: linear, in: 4, out: 12}]
losses: [{layer: "0", scale: 1, shrink_factors: [2], factor_h: 2, factor_w: 3}]
`)
		_, err := cfg.specs()
		assert.ErrorIs(t, err, topoloss.ErrConfiguration)
	})

	t.Run("unknown view", func(t *testing.T) {
		cfg := mustParse(t, `
layers: [{type: linear, in: 4, out: 12}]
losses: [{layer: "0", view: weights, scale: 1, shrink_factors: [2]}]
`)
		_, err := cfg.specs()
		assert.ErrorIs(t, err, topoloss.ErrConfiguration)
		assert.Contains(t, err.Error(), "losses[0]")
	})
}

func TestBuildModel(t *testing.T) {
	backend := autodiff.New(cpu.New())

	t.Run("dense", func(t *testing.T) {
		cfg := mustParse(t, mlpConfig)
		model, input, err := buildModel(cfg, backend, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		assert.Equal(t, 3, model.Len())
		assert.Equal(t, []int{8, 30}, []int(input))
	})

	t.Run("conv", func(t *testing.T) {
		cfg := mustParse(t, `
batch: 2
input: {height: 6, width: 5}
layers:
  - {type: conv2d, in: 3, out: 4, padding: 1, bias: false}
losses: [{layer: "0", scale: 1, shrink_factors: [2]}]
`)
		model, input, err := buildModel(cfg, backend, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 6, 5}, []int(input))
		assert.Len(t, model.Parameters(), 1)
	})

	errs := []struct {
		name   string
		layers string
		want   string
	}{
		{"unknown type", `[{type: lstm, in: 3, out: 3}]`, "unknown layer type"},
		{"linear after conv", `[{type: conv2d, in: 3, out: 4}, {type: linear, in: 4, out: 4}]`, "cannot follow conv2d"},
		{"conv after linear", `[{type: linear, in: 4, out: 4}, {type: conv2d, in: 4, out: 4}]`, "cannot follow linear"},
		{"zero width", `[{type: linear, in: 0, out: 4}]`, "positive in and out"},
		{"only relu", `[{type: relu}]`, "no linear or conv2d"},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustParse(t, "layers: "+tt.layers+"\nlosses: [{layer: \"0\", scale: 1}]")
			_, _, err := buildModel(cfg, backend, rand.New(rand.NewSource(1)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTrain_DecreasesLoss(t *testing.T) {
	cfg := mustParse(t, mlpConfig)

	summary, err := train(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Less(t, summary.Last, summary.First)
	assert.Contains(t, summary.Report, "0")
	assert.Contains(t, summary.Report, "2")
	assert.InDelta(t, summary.Report["0"], summary.Report[topoloss.MeanKey], 1e-12)
}

func TestTrain_TaskLoss(t *testing.T) {
	cfg := mustParse(t, `
steps: 3
task_weight: 0.5
optimizer: {name: adam, lr: 0.01}
layers:
  - {type: linear, in: 6, out: 9}
  - {type: relu}
  - {type: linear, in: 9, out: 2}
losses: [{layer: "0", shrink_factors: [1.5]}]
`)
	summary, err := train(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.False(t, math.IsNaN(summary.First))
	assert.Greater(t, summary.First, 0.0)
	assert.Contains(t, summary.Report, "0")
}

func TestTrain_SpecMismatchFailsEarly(t *testing.T) {
	cfg := mustParse(t, `
layers: [{type: conv2d, in: 3, out: 4}]
losses: [{layer: "0", view: bias, scale: 1, shrink_factors: [2]}]
`)
	_, err := train(context.Background(), cfg, discardLogger())
	var ce *topoloss.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "0", ce.Layer)
	assert.Equal(t, topoloss.BiasView, ce.View)

	cfg = mustParse(t, `
layers: [{type: linear, in: 4, out: 4}]
losses: [{layer: "7", scale: 1, shrink_factors: [2]}]
`)
	_, err = train(context.Background(), cfg, discardLogger())
	assert.ErrorIs(t, err, topoloss.ErrLayerNotFound)
}

func TestTrain_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := train(ctx, mustParse(t, mlpConfig), discardLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "topoloss "+version)
	assert.Contains(t, out, "backend: CPU")
}

func TestRootCmd_Sheet(t *testing.T) {
	out, _, err := run(t, "sheet", "30", "-f", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "units: 30\n")
	assert.Contains(t, out, "sheet: 5x6\n")
	assert.Contains(t, out, "level 0: 5x6\n")
	assert.Contains(t, out, "level 1: 3x3\n")

	_, _, err = run(t, "sheet", "3", "-f", "3")
	assert.Error(t, err)

	_, _, err = run(t, "sheet", "zero")
	assert.Error(t, err)
}

func TestRootCmd_Train(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mlpConfig), 0o600))

	out, logs, err := run(t, "train", "-c", path, "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "over 10 steps")
	assert.Empty(t, logs)

	_, logs, err = run(t, "train", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, logs, "msg=step")
	assert.Contains(t, logs, "topo.mean=")

	_, _, err = run(t, "train")
	assert.Error(t, err)

	_, _, err = run(t, "report")
	assert.Error(t, err)

	_, _, err = run(t, "train", "-c", path, "--log-level", "loud")
	assert.Error(t, err)
}

func TestRootCmd_SaveAndReport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	weights := filepath.Join(dir, "model.safetensors")
	require.NoError(t, os.WriteFile(cfgPath, []byte(mlpConfig), 0o600))

	_, _, err := run(t, "train", "-c", cfgPath, "-o", weights, "--log-level", "error")
	require.NoError(t, err)

	dict, meta, err := serialization.ReadFile(weights)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0.weight", "0.bias", "2.weight", "2.bias"}, lo.Keys(dict))
	assert.Equal(t, "10", meta["steps"])
	assert.Contains(t, meta, "topo.mean")

	// The untrained model reports higher losses than the saved one.
	before, _, err := run(t, "report", "-c", cfgPath)
	require.NoError(t, err)
	after, _, err := run(t, "report", "-c", cfgPath, "-w", weights)
	require.NoError(t, err)
	assert.Contains(t, after, "mean: ")
	assert.InDelta(t, mustFloat(t, meta["topo.0"]), parseReport(t, after)["0"], 1e-6)
	assert.Less(t, parseReport(t, after)["0"], parseReport(t, before)["0"])

	_, _, err = run(t, "report", "-c", cfgPath, "-w", filepath.Join(dir, "missing.safetensors"))
	assert.Error(t, err)
}

func parseReport(t *testing.T, out string) map[string]float64 {
	t.Helper()
	report := make(map[string]float64)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		k, v, ok := strings.Cut(line, ": ")
		require.True(t, ok, line)
		report[k] = mustFloat(t, v)
	}
	return report
}

func mustFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}
