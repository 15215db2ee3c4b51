// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, Conv2D
//   - Activations: ReLU
//   - Loss functions: MSELoss
//   - Utilities: Sequential, Module interface, Parameter
//   - Addressing: Lookup, NameOf, Walk over dotted module paths
//   - State: StateDict, LoadStateDict keyed by those paths
//
// # Basic Usage
//
//	backend := cpu.New()
//
//	model := nn.NewSequential[*cpu.Backend](
//	    nn.NewLinear(30, 25, backend),
//	    nn.NewReLU[*cpu.Backend](),
//	    nn.NewLinear(25, 20, backend),
//	)
//	output := model.Forward(input)
//
// # Module Paths
//
// Sequential names its children "0", "1", ... (or by AddNamed). Nested
// containers join names with dots:
//
//	layer, err := nn.Lookup(model, "2")      // the second Linear
//	name, err := nn.NameOf(model, layer)     // "2"
//
// Initialization is reproducible with a seeded source:
//
//	rng := rand.New(rand.NewSource(1))
//	layer := nn.NewLinear(30, 25, backend, nn.WithRand(rng))
package nn
