package apperror

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeForbidden    Code = "forbidden"
	CodeUnauthorized Code = "unauthorized"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func Validationf(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

func GetCode(err error) Code {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// Message returns the client-safe message. Internal errors never leak details.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return appErr.Message
	}
	return "internal server error"
}
