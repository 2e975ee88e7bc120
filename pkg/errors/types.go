// Package errors provides typed errors for the repodash project.
//
// This package defines domain-specific error types that provide structured
// error information for different subsystems (config, version-control queries,
// scans). All error types implement the standard error interface and support
// errors.Is() and errors.As() from the standard library and cockroachdb/errors.
package errors

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// QueryError represents a failed version-control query against one repository.
type QueryError struct {
	Operation string // e.g., "RemoteURL", "ChangedPaths", "AheadCount"
	Path      string // Repository root the query ran against
	Message   string
	Timeout   bool // The query exceeded its deadline
	Cause     error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("query %s for %s timed out: %s", e.Operation, e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("query %s for %s failed: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("query %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a new QueryError.
func NewQueryError(operation, path, message string) *QueryError {
	return &QueryError{Operation: operation, Path: path, Message: message}
}

// NewQueryErrorWithCause creates a new QueryError with an underlying cause.
// A cause that wraps context.DeadlineExceeded marks the error as a timeout.
func NewQueryErrorWithCause(operation, path, message string, cause error) *QueryError {
	return &QueryError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Timeout:   errors.Is(cause, context.DeadlineExceeded),
		Cause:     cause,
	}
}

// ScanError represents errors starting or running a discovery scan.
type ScanError struct {
	Root    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Root != "" {
		return fmt.Sprintf("scan of %s failed: %s", e.Root, e.Message)
	}
	return "scan error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError creates a new ScanError.
func NewScanError(root, message string) *ScanError {
	return &ScanError{Root: root, Message: message}
}

// NewScanErrorWithCause creates a new ScanError with an underlying cause.
func NewScanErrorWithCause(root, message string, cause error) *ScanError {
	return &ScanError{Root: root, Message: message, Cause: cause}
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsQueryError checks if an error or any error in its chain is a QueryError.
func IsQueryError(err error) bool {
	var queryErr *QueryError
	return errors.As(err, &queryErr)
}

// IsTimeout reports whether err is a QueryError that exceeded its deadline,
// or otherwise wraps context.DeadlineExceeded.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var queryErr *QueryError
	if errors.As(err, &queryErr) && queryErr.Timeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsScanError checks if an error or any error in its chain is a ScanError.
func IsScanError(err error) bool {
	var scanErr *ScanError
	return errors.As(err, &scanErr)
}
