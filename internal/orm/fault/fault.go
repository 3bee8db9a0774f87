// Package fault classifies persistence failures by severity and routes the
// serious ones through a configurable fatal handler.
//
// Warnings are logged and swallowed. Errors are logged with context and then
// escalated exactly like fatal conditions. Fatal conditions are handed to a
// FatalHandler, which decides whether the caller sees the error, whether the
// condition is absorbed, or whether the process should panic.
package fault

import (
	"errors"
	"fmt"
)

// Severity is the seriousness of a reported condition
type Severity int

const (
	// SeverityWarning is a non-fatal data-integrity smell
	SeverityWarning Severity = iota
	// SeverityError is a failed operation; it is escalated to fatal
	SeverityError
	// SeverityFatal is an unrecoverable condition
	SeverityFatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error carries a severity and the operation that failed alongside the
// underlying error. errors.Is and errors.As see through it.
type Error struct {
	Severity Severity
	Op       string
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Severity, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Severity, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatalf builds a fatal error for op wrapping err with extra context.
func Fatalf(op string, err error, format string, args ...interface{}) *Error {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &Error{Severity: SeverityFatal, Op: op, Err: err}
}

// Fatal builds a fatal error for op
func Fatal(op string, err error) *Error {
	return &Error{Severity: SeverityFatal, Op: op, Err: err}
}

// Failed builds an error-severity failure for op
func Failed(op string, err error) *Error {
	return &Error{Severity: SeverityError, Op: op, Err: err}
}

// SeverityOf returns the severity carried by err. Errors that were never
// classified are treated as plain errors.
func SeverityOf(err error) Severity {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Severity
	}
	return SeverityError
}

// IsFatal returns true if err (or anything it wraps) is a fatal condition
func IsFatal(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Severity == SeverityFatal
}
