package session

import (
	"errors"
	"fmt"

	"github.com/roach88/querylift/internal/qmodel"
)

// TranslationError is a query that cannot be expressed. It is fatal to the
// translation; callers must reformulate the query.
type TranslationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Expr is the debug rendering of the offending expression, if any.
	Expr string
}

// ErrorCode categorizes translation errors.
type ErrorCode string

const (
	// ErrCodeNotSupported marks a combination the backend cannot honor, such
	// as distinct over client-side computation.
	ErrCodeNotSupported ErrorCode = "NOT_SUPPORTED"

	// ErrCodeEmitFailed marks a nominated node the emitter cannot express.
	ErrCodeEmitFailed ErrorCode = "EMIT_FAILED"

	// ErrCodeInvalidModel marks a malformed query model.
	ErrCodeInvalidModel ErrorCode = "INVALID_MODEL"
)

// Error implements the error interface.
func (e *TranslationError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s (expr=%s)", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotSupported creates a TranslationError with ErrCodeNotSupported.
func NotSupported(msg string, e qmodel.Expr) *TranslationError {
	return newError(ErrCodeNotSupported, msg, e)
}

// EmitFailed creates a TranslationError with ErrCodeEmitFailed.
func EmitFailed(msg string, e qmodel.Expr) *TranslationError {
	return newError(ErrCodeEmitFailed, msg, e)
}

// InvalidModel creates a TranslationError with ErrCodeInvalidModel.
func InvalidModel(msg string) *TranslationError {
	return newError(ErrCodeInvalidModel, msg, nil)
}

func newError(code ErrorCode, msg string, e qmodel.Expr) *TranslationError {
	te := &TranslationError{Code: code, Message: msg}
	if e != nil {
		te.Expr = qmodel.Format(e)
	}
	return te
}

// IsNotSupported returns true if err is, or wraps, a TranslationError with
// ErrCodeNotSupported.
func IsNotSupported(err error) bool {
	return hasCode(err, ErrCodeNotSupported)
}

// IsEmitFailed returns true if err is, or wraps, a TranslationError with
// ErrCodeEmitFailed.
func IsEmitFailed(err error) bool {
	return hasCode(err, ErrCodeEmitFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
