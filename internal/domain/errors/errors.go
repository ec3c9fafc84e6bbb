package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType identifies the kind of a DomainError
type ErrorType string

const (
	// ErrorTypeValidation marks a rejected parameter object
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotFound marks a device or record that does not exist
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeSystem marks a system level failure
	ErrorTypeSystem ErrorType = "SYSTEM"
)

// DomainError is a domain level error
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is compares domain errors by type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeValidation,
		Message: message,
		Cause:   cause,
	}
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(message string) *DomainError {
	return &DomainError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewSystemError creates a system error
func NewSystemError(message string, cause error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeSystem,
		Message: message,
		Cause:   cause,
	}
}

// ScriptMissingError is returned when the target tool is not executable.
// Nothing was executed.
type ScriptMissingError struct {
	Path string
}

func (e *ScriptMissingError) Error() string {
	return fmt.Sprintf("script missing or not executable: %s", e.Path)
}

// NewScriptMissingError creates a ScriptMissingError
func NewScriptMissingError(path string) *ScriptMissingError {
	return &ScriptMissingError{Path: path}
}

// ScriptError is returned when a tool ran and terminated abnormally: a non-zero
// exit, a signal, a stop, or the caller's timeout.
type ScriptError struct {
	Path     string
	Args     []string
	Cause    string
	Stdout   string
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s %s: %s (stdout: %q, stderr: %q)",
		e.Path, strings.Join(e.Args, " "), e.Cause, e.Stdout, e.Stderr)
}

// Unwrap returns the underlying exec error
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// AttributeReadError is a failed read of a per-device attribute file
type AttributeReadError struct {
	Device    string
	Attribute string
	Cause     error
}

func (e *AttributeReadError) Error() string {
	return fmt.Sprintf("failed to read attribute %s of %s: %v", e.Attribute, e.Device, e.Cause)
}

func (e *AttributeReadError) Unwrap() error {
	return e.Cause
}

// AttributeWriteError is a failed write of a per-device attribute file
type AttributeWriteError struct {
	Device    string
	Attribute string
	Value     string
	Cause     error
}

func (e *AttributeWriteError) Error() string {
	return fmt.Sprintf("failed to write %q to attribute %s of %s: %v", e.Value, e.Attribute, e.Device, e.Cause)
}

func (e *AttributeWriteError) Unwrap() error {
	return e.Cause
}

// Error type helpers

// IsValidationError reports whether err is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsNotFoundError reports whether err is a not-found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsSystemError reports whether err is a system error
func IsSystemError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeSystem
	}
	return false
}

// IsScriptMissing reports whether err is a ScriptMissingError
func IsScriptMissing(err error) bool {
	var missing *ScriptMissingError
	return errors.As(err, &missing)
}

// IsScriptError reports whether err is a ScriptError, timeouts included
func IsScriptError(err error) bool {
	var scriptErr *ScriptError
	return errors.As(err, &scriptErr)
}

// IsTimeoutError reports whether err is a tool invocation killed by its timeout
func IsTimeoutError(err error) bool {
	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		return scriptErr.TimedOut
	}
	return false
}

// IsAttributeReadError reports whether err is an AttributeReadError
func IsAttributeReadError(err error) bool {
	var readErr *AttributeReadError
	return errors.As(err, &readErr)
}

// IsAttributeWriteError reports whether err is an AttributeWriteError
func IsAttributeWriteError(err error) bool {
	var writeErr *AttributeWriteError
	return errors.As(err, &writeErr)
}

// Kind returns a short label for metrics
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsScriptMissing(err):
		return "script_missing"
	case IsTimeoutError(err):
		return "timeout"
	case IsScriptError(err):
		return "script_error"
	case IsAttributeReadError(err):
		return "attribute_read"
	case IsAttributeWriteError(err):
		return "attribute_write"
	case IsValidationError(err):
		return "validation"
	case IsNotFoundError(err):
		return "not_found"
	default:
		return "system"
	}
}
