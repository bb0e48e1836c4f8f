// Package exception provides the error types used by the Scour data-quality
// pipeline. Errors are tagged with one of three classes: configuration errors
// abort a run before any stage executes, data errors become report issues and
// never surface as Go errors, and execution faults terminate a run at the
// stage boundary with the fault detail preserved.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Class categorizes a PipelineError.
type Class string

const (
	// ClassConfig marks invalid configuration detected before a run starts.
	ClassConfig Class = "CONFIG"
	// ClassData marks a per-record data-quality finding. Data errors are
	// normally reported as issues; this class exists for collaborators that
	// need to surface one as a Go error.
	ClassData Class = "DATA"
	// ClassFault marks an execution fault that terminated a stage.
	ClassFault Class = "FAULT"
)

// PipelineError is the error type raised by pipeline components.
// It records the component where the error occurred, a message, the wrapped
// cause, the error class, and for configuration errors the offending
// configuration key.
type PipelineError struct {
	// Module is the component where the error occurred (e.g. "imputer",
	// "standardizer", "orchestrator").
	Module string
	// Message is a concise description of the error.
	Message string
	// ConfigKey names the offending configuration key for ClassConfig errors.
	ConfigKey string
	// OriginalErr is the wrapped cause, if any.
	OriginalErr error
	// StackTrace is captured at construction time for fault diagnosis.
	StackTrace string

	class Class
}

func newError(module, message string, class Class, configKey string, cause error) *PipelineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Message:     message,
		ConfigKey:   configKey,
		OriginalErr: cause,
		StackTrace:  string(buf[:n]),
		class:       class,
	}
}

// NewConfigError creates a configuration-class error naming the offending key.
func NewConfigError(module, configKey, message string, cause error) *PipelineError {
	return newError(module, message, ClassConfig, configKey, cause)
}

// NewConfigErrorf creates a configuration-class error with a formatted message.
func NewConfigErrorf(module, configKey, format string, a ...interface{}) *PipelineError {
	return newError(module, fmt.Sprintf(format, a...), ClassConfig, configKey, nil)
}

// NewDataError creates a data-class error.
func NewDataError(module, message string, cause error) *PipelineError {
	return newError(module, message, ClassData, "", cause)
}

// NewFaultError creates a fault-class error.
func NewFaultError(module, message string, cause error) *PipelineError {
	return newError(module, message, ClassFault, "", cause)
}

// NewFaultErrorf creates a fault-class error with a formatted message.
func NewFaultErrorf(module, format string, a ...interface{}) *PipelineError {
	return newError(module, fmt.Sprintf(format, a...), ClassFault, "", nil)
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	switch {
	case e.class == ClassConfig && e.ConfigKey != "":
		return fmt.Sprintf("[%s] %s (key: %s)", e.Module, e.Message, e.ConfigKey)
	case e.OriginalErr != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	default:
		return fmt.Sprintf("[%s] %s", e.Module, e.Message)
	}
}

// Unwrap returns the wrapped cause.
func (e *PipelineError) Unwrap() error {
	return e.OriginalErr
}

// Class returns the error class.
func (e *PipelineError) Class() Class {
	return e.class
}

// IsConfigError reports whether err (or any error it wraps) is a
// configuration-class PipelineError.
func IsConfigError(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.class == ClassConfig
}

// IsDataError reports whether err (or any error it wraps) is a data-class
// PipelineError.
func IsDataError(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.class == ClassData
}

// IsFault reports whether err (or any error it wraps) is a fault-class
// PipelineError. Errors of unknown type are treated as faults so that an
// unexpected failure inside a stage always terminates the run.
func IsFault(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.class == ClassFault
	}
	return true
}

// ConfigKeyOf returns the offending configuration key if err is a
// configuration-class PipelineError, and "" otherwise.
func ConfigKeyOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.class == ClassConfig {
		return pe.ConfigKey
	}
	return ""
}

// ExtractErrorMessage extracts a concise message from an error.
// For PipelineError it returns the Message field; otherwise Error().
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
