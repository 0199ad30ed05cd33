// Package errortypes classifies the failures the classification engine can
// surface so callers can decide how to react without string matching.
package errortypes

import (
	"errors"
	"fmt"
)

// ErrorType represents the kind of failure that occurred.
type ErrorType string

const (
	// ErrorTypeConfig is a missing or malformed configuration. Fatal at startup.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeEmbedding is a failed call to the embedding model.
	ErrorTypeEmbedding ErrorType = "embedding"
	// ErrorTypeIndex is an unavailable or corrupt vector index.
	ErrorTypeIndex ErrorType = "index"
	// ErrorTypeDataset is a training file that could not be read at all.
	ErrorTypeDataset ErrorType = "dataset"
	// ErrorTypeValidation is a caller supplying invalid arguments.
	ErrorTypeValidation ErrorType = "validation"
)

// AppError wraps an underlying error with its type and a short message.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap supports errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(t ErrorType, err error, message string) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

// ConfigurationError creates a new configuration error.
func ConfigurationError(err error, message string) *AppError {
	return newAppError(ErrorTypeConfig, err, message)
}

// EmbeddingError creates a new embedding error.
func EmbeddingError(err error, message string) *AppError {
	return newAppError(ErrorTypeEmbedding, err, message)
}

// IndexError creates a new vector index error.
func IndexError(err error, message string) *AppError {
	return newAppError(ErrorTypeIndex, err, message)
}

// DatasetError creates a new dataset error.
func DatasetError(err error, message string) *AppError {
	return newAppError(ErrorTypeDataset, err, message)
}

// ValidationError creates a new validation error.
func ValidationError(err error, message string) *AppError {
	return newAppError(ErrorTypeValidation, err, message)
}

// IsType reports whether any error in err's chain is an AppError of type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Err
	}
	return false
}

// TypeOf returns the type of the outermost AppError in err's chain, or the
// empty string when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
