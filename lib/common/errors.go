package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint64

const (
	ErrCUnknown       ErrCode = iota // 0: Unknown error.
	ErrCConfiguration                // 1: Invalid field, schema, index or store configuration.
	ErrCValidation                   // 2: A value failed the active rules of a field.
	ErrCReservedName                 // 3: A field name collides with a reserved record accessor.
	ErrCReadOnly                     // 4: The field cannot be assigned (identifier already set, virtual field).
)

func (c ErrCode) String() string {
	switch c {
	case ErrCConfiguration:
		return "ConfigurationError"
	case ErrCValidation:
		return "ValidationError"
	case ErrCReservedName:
		return "ReservedNameError"
	case ErrCReadOnly:
		return "ReadOnlyError"
	default:
		return "UnknownError"
	}
}

// Sentinels to be used with errors.Is. Only the code is compared.
var (
	ErrConfiguration = &Error{Code: ErrCConfiguration}
	ErrValidation    = &Error{Code: ErrCValidation}
	ErrReservedName  = &Error{Code: ErrCReservedName}
	ErrReadOnly      = &Error{Code: ErrCReadOnly}
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps an error code, a message, the name of the offending field (if any)
// and an optional cause.
type Error struct {
	Code  ErrCode // The error code
	Field string  // Name of the field the error refers to (optional)
	Msg   string  // The error message
	Cause error   // Underlying error (e.g. the aggregated rule failures)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = fmt.Sprintf("field %q: %s", e.Field, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with the given code for a field using a format string.
func Errorf(code ErrCode, field string, format string, args ...interface{}) *Error {
	return &Error{
		Code:  code,
		Field: field,
		Msg:   fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error with the given code that wraps cause.
func Wrap(code ErrCode, field string, msg string, cause error) *Error {
	return &Error{
		Code:  code,
		Field: field,
		Msg:   msg,
		Cause: cause,
	}
}
