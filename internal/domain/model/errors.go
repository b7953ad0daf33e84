package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Use errors.Is against these.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// ValidationError reports malformed or out-of-range input. It is the
// caller's responsibility and is never retried by the engine.
type ValidationError struct {
	Op     string
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(op, field, reason string) *ValidationError {
	return &ValidationError{Op: op, Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Op, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConfigurationError reports an invalid policy table or parameter. It is
// fatal and surfaced when a component is constructed.
type ConfigurationError struct {
	Component string
	Field     string
	Reason    string
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(component, field, reason string) *ConfigurationError {
	return &ConfigurationError{Component: component, Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: bad configuration %s: %s", e.Component, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }
