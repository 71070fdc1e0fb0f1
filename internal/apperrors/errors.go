// Package apperrors carries the service error taxonomy. Services wrap store
// and domain failures with a code; the HTTP adapter maps codes to statuses
// without inspecting error strings.
package apperrors

import "errors"

type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeNotAuthenticated  Code = "not_authenticated"
	CodeNotAuthorized     Code = "not_authorized"
	CodeInvalidTransition Code = "invalid_transition"
	CodeAlreadyFinalized  Code = "already_finalized"
	CodeValidation        Code = "validation"
	CodeTransferFailed    Code = "transfer_failed"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal"
)

// Retryable reports whether the caller may retry the same request unchanged.
func (c Code) Retryable() bool {
	return c == CodeTransferFailed || c == CodeTimeout
}

type Error struct {
	code Code
	msg  string
	err  error
}

func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Code() Code { return e.code }

// CodeOf returns the outermost code in the chain, CodeInternal when none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.code
	}
	return CodeInternal
}

// Is reports whether any error in the chain carries the code.
func Is(err error, code Code) bool {
	for err != nil {
		var ae *Error
		if !errors.As(err, &ae) {
			return false
		}
		if ae.code == code {
			return true
		}
		err = ae.err
	}
	return false
}
