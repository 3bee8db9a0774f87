package fault

import (
	"fmt"

	"go.uber.org/zap"
)

// FatalHandler decides what happens to an escalated condition. Returning the
// error propagates it to the caller, returning nil absorbs it. A handler may
// also terminate the process itself.
type FatalHandler func(err *Error) error

// Propagate hands the condition back to the caller unchanged
func Propagate(err *Error) error {
	return err
}

// Panic raises the condition as a panic so the caller cannot proceed
func Panic(err *Error) error {
	panic(err)
}

// ParseHandler converts a configured policy name to a FatalHandler
func ParseHandler(policy string) (FatalHandler, error) {
	switch policy {
	case "", "propagate":
		return Propagate, nil
	case "panic":
		return Panic, nil
	default:
		return nil, fmt.Errorf("unknown fatal policy: %s", policy)
	}
}

// Reporter logs conditions at their severity and escalates errors
type Reporter struct {
	logger  *zap.Logger
	handler FatalHandler
}

// NewReporter creates a reporter. A nil logger discards output and a nil
// handler propagates.
func NewReporter(logger *zap.Logger, handler FatalHandler) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = Propagate
	}
	return &Reporter{logger: logger, handler: handler}
}

// Logger returns the underlying zap logger
func (r *Reporter) Logger() *zap.Logger {
	return r.logger
}

// Warn logs a non-fatal condition
func (r *Reporter) Warn(msg string, fields ...zap.Field) {
	r.logger.Warn(msg, fields...)
}

// Report logs err at its severity and, unless it is a warning, hands it to
// the fatal handler. The returned error is what the caller should see.
func (r *Reporter) Report(err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}

	fe, ok := err.(*Error)
	if !ok {
		fe = &Error{Severity: SeverityError, Err: err}
	}

	fields = append(fields, zap.String("op", fe.Op), zap.String("severity", fe.Severity.String()))
	switch fe.Severity {
	case SeverityWarning:
		r.logger.Warn(fe.Err.Error(), fields...)
		return nil
	case SeverityError:
		r.logger.Error(fe.Err.Error(), fields...)
	default:
		r.logger.Error("fatal: "+fe.Err.Error(), fields...)
	}

	return r.handler(fe)
}
