package topoloss

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrLayerNotFound is returned when a spec names a layer that the model
	// does not contain. Lookups through Bind also match nn.ErrModuleNotFound.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrConfiguration marks every spec/layer mismatch and invalid factor.
	ErrConfiguration = errors.New("invalid topographic loss configuration")
)

// ConfigError describes a configuration failure for one spec.
type ConfigError struct {
	Layer  string // Layer name, empty when not yet known
	View   View   // View requested by the spec, zero when not applicable
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := ErrConfiguration.Error()
	if e.Layer != "" {
		msg += fmt.Sprintf(": layer %q", e.Layer)
	}
	if e.View != 0 {
		msg += fmt.Sprintf(" (%s view)", e.View)
	}
	return msg + ": " + e.Reason
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

func configErrorf(layer string, view View, format string, args ...any) error {
	return &ConfigError{Layer: layer, View: view, Reason: fmt.Sprintf(format, args...)}
}
