package errors

import (
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeStructural marks recoverable layout problems (stray files, exchanges
	// without tick files). These are logged and the exchange is skipped.
	ErrTypeStructural  ErrorType = "STRUCTURAL"
	ErrTypeDataQuality ErrorType = "DATA_QUALITY"
	ErrTypeParsing     ErrorType = "PARSING"
	ErrTypeDetection   ErrorType = "DETECTION"
	ErrTypeStorage     ErrorType = "STORAGE"
	ErrTypeConfig      ErrorType = "CONFIG"
	ErrTypeUsage       ErrorType = "USAGE"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewStructuralError creates a recoverable layout error
func NewStructuralError(message string) *AppError {
	return NewAppError(ErrTypeStructural, message, nil)
}

// NewDataQualityError creates a data-quality error. These abort the run.
func NewDataQualityError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDataQuality, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewDetectionError creates an error raised while scoring or writing a window
func NewDetectionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDetection, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewUsageError creates a command-line usage error
func NewUsageError(message string) *AppError {
	return NewAppError(ErrTypeUsage, message, nil)
}
