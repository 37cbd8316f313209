package errors

import (
	stderrors "errors"
)

// Sentinel causes for the data-quality and parsing aborts. They are wrapped
// in an AppError and can be matched with errors.Is.
var (
	ErrEmptyFile        = stderrors.New("tick file is empty")
	ErrInsufficientData = stderrors.New("not enough data points for processing")
	ErrMalformedRow     = stderrors.New("malformed tick row")
	ErrDegenerateWindow = stderrors.New("degenerate sample window")
)

// TypeOf returns the ErrorType of the first AppError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsCritical reports whether err aborts the whole run because of bad input
// data. Such errors are logged at CRITICAL.
func IsCritical(err error) bool {
	return IsType(err, ErrTypeDataQuality)
}

// IsRecoverable reports whether err only affects one exchange and the run
// may continue without it
func IsRecoverable(err error) bool {
	return IsType(err, ErrTypeStructural)
}
