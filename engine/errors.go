// engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Code classifies why an action was rejected. Every rejection is terminal for
// that action; retries are a caller concern.
type Code string

const (
	CodeValidation   Code = "validation"    // malformed dart input, unknown game mode
	CodeForbidden    Code = "forbidden"     // actor not creator / not the active player
	CodeConflict     Code = "conflict"      // duplicate join, match full
	CodeInvalidState Code = "invalid_state" // operation illegal in current status
	CodeNotFound     Code = "not_found"     // unknown match or participant
)

// Error is a rejected action with a taxonomy code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a taxonomy error. Store adapters use it to translate their
// own not-found conditions into the engine's vocabulary.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func reject(code Code, format string, args ...any) *Error {
	return NewError(code, format, args...)
}

// ErrStoreUnavailable marks a persistence failure during commit. It is kept
// distinct from the validation taxonomy so callers may retry; the in-memory
// state is rolled back before it surfaces.
var ErrStoreUnavailable = errors.New("match store unavailable")

// CodeOf returns the taxonomy code of err, or "" for transient/unknown errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
