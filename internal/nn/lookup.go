package nn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/topoloss/internal/tensor"
)

// ErrModuleNotFound is returned when a path or module is not part of a tree.
var ErrModuleNotFound = errors.New("module not found")

// Lookup resolves a dotted path such as "features.0" against the module
// tree rooted at root. The empty path names root itself.
func Lookup[B tensor.Backend](root Module[B], path string) (Module[B], error) {
	if path == "" {
		return root, nil
	}

	current := root
	for _, part := range strings.Split(path, ".") {
		next, ok := child(current, part)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, path)
		}
		current = next
	}
	return current, nil
}

func child[B tensor.Backend](m Module[B], name string) (Module[B], bool) {
	container, ok := m.(Container[B])
	if !ok {
		return nil, false
	}
	for _, c := range container.Children() {
		if c.Name == name {
			return c.Module, true
		}
	}
	return nil, false
}

// NameOf returns the dotted path of target inside the tree rooted at root,
// matching by identity. The first match in depth-first child order wins.
func NameOf[B tensor.Backend](root, target Module[B]) (string, error) {
	if target == nil {
		return "", fmt.Errorf("%w: nil module", ErrModuleNotFound)
	}
	if name, ok := find(root, target, ""); ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %T is not part of the model", ErrModuleNotFound, target)
}

func find[B tensor.Backend](m, target Module[B], prefix string) (string, bool) {
	if m == target {
		return prefix, true
	}
	container, ok := m.(Container[B])
	if !ok {
		return "", false
	}
	for _, c := range container.Children() {
		path := c.Name
		if prefix != "" {
			path = prefix + "." + c.Name
		}
		if name, ok := find(c.Module, target, path); ok {
			return name, true
		}
	}
	return "", false
}

// Walk visits every module in the tree depth-first with its dotted path.
func Walk[B tensor.Backend](root Module[B], visit func(path string, m Module[B])) {
	walk(root, "", visit)
}

func walk[B tensor.Backend](m Module[B], prefix string, visit func(string, Module[B])) {
	visit(prefix, m)
	container, ok := m.(Container[B])
	if !ok {
		return
	}
	for _, c := range container.Children() {
		path := c.Name
		if prefix != "" {
			path = prefix + "." + c.Name
		}
		walk(c.Module, path, visit)
	}
}
