/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

// Type tells whether a command failed on its input or while executing.
type Type int32

const (
	// ValidationError is returned for malformed or incomplete command arguments.
	ValidationError Type = iota
	// ExecuteError is returned when the arguments were valid but the operation failed.
	ExecuteError
)

// Code identifies a command failure. Codes are allocated per Group.
type Code int32

// UnknownStatus is the zero code.
const UnknownStatus Code = 0

// Group is the base of a range of codes, one range per controller command.
type Group int32

const (
	// Common codes, shared by all commands.
	Common Group = 1000
	// Connection codes, used by the connection command.
	Connection Group = 15000
)

// Error is a failed command. A nil Error means success.
type Error interface {
	error
	Code() Code
	Type() Type
}

// NewValidationError wraps err as a ValidationError with code.
func NewValidationError(code Code, err error) Error {
	return &cmdError{err: err, code: code, typ: ValidationError}
}

// NewExecuteError wraps err as an ExecuteError with code.
func NewExecuteError(code Code, err error) Error {
	return &cmdError{err: err, code: code, typ: ExecuteError}
}

type cmdError struct {
	err  error
	code Code
	typ  Type
}

func (e *cmdError) Error() string {
	return e.err.Error()
}

func (e *cmdError) Unwrap() error {
	return e.err
}

func (e *cmdError) Code() Code {
	return e.code
}

func (e *cmdError) Type() Type {
	return e.typ
}
