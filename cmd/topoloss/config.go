package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/topoloss/internal/topoloss"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const defaultSteps = 100

// Config is a training run read from YAML.
//
//	seed: 1
//	steps: 50
//	optimizer: {name: sgd, lr: 0.5}
//	layers:
//	  - {type: linear, in: 30, out: 25}
//	  - {type: relu}
//	  - {type: linear, in: 25, out: 20}
//	losses:
//	  - {layer: "0", scale: 1.0, shrink_factors: [2]}
//	  - {layer: "2", view: input, shrink_factors: [2]}   # logging only
type Config struct {
	Seed       int64         `yaml:"seed"`
	Steps      int           `yaml:"steps"` // absent: 100; 0 only reports and saves the initial weights
	LogEvery   int           `yaml:"log_every"`
	TaskWeight float32       `yaml:"task_weight"` // weight of a synthetic MSE task loss, 0 disables it
	Batch      int           `yaml:"batch"`
	Input      InputConfig   `yaml:"input"`
	Optimizer  OptimizerCfg  `yaml:"optimizer"`
	Layers     []LayerConfig `yaml:"layers"`
	Losses     []LossConfig  `yaml:"losses"`
}

// InputConfig is the spatial size of conv inputs.
type InputConfig struct {
	Height int `yaml:"height"`
	Width  int `yaml:"width"`
}

// OptimizerCfg selects the optimizer.
type OptimizerCfg struct {
	Name     string  `yaml:"name"` // sgd (default) or adam
	LR       float32 `yaml:"lr"`
	Momentum float32 `yaml:"momentum"`
}

// LayerConfig is one entry of a Sequential model. Layers are named by index.
type LayerConfig struct {
	Type    string `yaml:"type"` // linear, conv2d or relu
	In      int    `yaml:"in"`
	Out     int    `yaml:"out"`
	Kernel  int    `yaml:"kernel"`
	Stride  int    `yaml:"stride"`
	Padding int    `yaml:"padding"`
	Bias    *bool  `yaml:"bias"` // default true
}

// LossConfig is one topographic loss spec.
type LossConfig struct {
	Layer         string    `yaml:"layer"`
	View          string    `yaml:"view"`  // output (default), bias or input
	Scale         *float64  `yaml:"scale"` // null or absent: logging only
	ShrinkFactors []float64 `yaml:"shrink_factors"`
	FactorH       float64   `yaml:"factor_h"`
	FactorW       float64   `yaml:"factor_w"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return parseConfig(f)
}

func parseConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	// Defaults that 0 cannot stand for are filled before decoding.
	cfg := Config{Steps: defaultSteps}
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config is empty")
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogEvery == 0 {
		c.LogEvery = 10
	}
	if c.Batch == 0 {
		c.Batch = 8
	}
	if c.Input.Height == 0 {
		c.Input.Height = 8
	}
	if c.Input.Width == 0 {
		c.Input.Width = 8
	}
	if c.Optimizer.Name == "" {
		c.Optimizer.Name = "sgd"
	}
	for i := range c.Layers {
		l := &c.Layers[i]
		if l.Type == "conv2d" {
			if l.Kernel == 0 {
				l.Kernel = 3
			}
			if l.Stride == 0 {
				l.Stride = 1
			}
		}
	}
	for i := range c.Losses {
		if c.Losses[i].View == "" {
			c.Losses[i].View = topoloss.OutputView.String()
		}
	}
}

func (c *Config) validate() error {
	if c.Steps < 0 || c.LogEvery < 0 || c.Batch < 0 {
		return errors.New("steps, log_every and batch must not be negative")
	}
	if c.TaskWeight < 0 {
		return errors.New("task_weight must not be negative")
	}
	if len(c.Layers) == 0 {
		return errors.New("config has no layers")
	}
	if !lo.Contains([]string{"sgd", "adam"}, c.Optimizer.Name) {
		return fmt.Errorf("unknown optimizer %q (want sgd or adam)", c.Optimizer.Name)
	}
	if len(c.Losses) == 0 {
		return errors.New("config has no losses")
	}
	if !lo.SomeBy(c.Losses, func(l LossConfig) bool { return l.Scale != nil }) && c.TaskWeight == 0 {
		return errors.New("nothing to train: every loss is logging-only and task_weight is 0")
	}
	return nil
}

// specs converts the loss entries to LossSpecs.
func (c *Config) specs() ([]topoloss.LossSpec, error) {
	specs := make([]topoloss.LossSpec, 0, len(c.Losses))
	for i, l := range c.Losses {
		view, err := topoloss.ParseView(l.View)
		if err != nil {
			return nil, fmt.Errorf("losses[%d]: %w", i, err)
		}

		factors := topoloss.Uniform(l.ShrinkFactors...)
		if l.FactorH != 0 || l.FactorW != 0 {
			if len(l.ShrinkFactors) > 0 {
				return nil, fmt.Errorf("losses[%d]: %w: shrink_factors and factor_h/factor_w are exclusive", i, topoloss.ErrConfiguration)
			}
			factors = []topoloss.ShrinkFactor{{H: l.FactorH, W: l.FactorW}}
		}

		spec, err := topoloss.NewSpec(view, l.Layer, l.Scale, factors...)
		if err != nil {
			return nil, fmt.Errorf("losses[%d]: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
