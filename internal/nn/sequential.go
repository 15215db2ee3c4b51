package nn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/topoloss/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Children are named
// by their index ("0", "1", ...) unless added with AddNamed, so a nested
// layer is addressed as "encoder.2".
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//
//	output := model.Forward(input)
type Sequential[B tensor.Backend] struct {
	names   []string
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	s := &Sequential[B]{}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module named by its index.
func (s *Sequential[B]) Add(module Module[B]) {
	s.AddNamed(strconv.Itoa(len(s.modules)), module)
}

// AddNamed appends a module under an explicit name.
//
// Panics if the name is empty, contains '.', or is already taken.
func (s *Sequential[B]) AddNamed(name string, module Module[B]) {
	if name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("Sequential.AddNamed: invalid module name %q", name))
	}
	for _, existing := range s.names {
		if existing == name {
			panic(fmt.Sprintf("Sequential.AddNamed: duplicate module name %q", name))
		}
	}
	s.names = append(s.names, name)
	s.modules = append(s.modules, module)
}

// Children returns the named submodules in order.
func (s *Sequential[B]) Children() []Child[B] {
	children := make([]Child[B], len(s.modules))
	for i, m := range s.modules {
		children[i] = Child[B]{Name: s.names[i], Module: m}
	}
	return children
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}
