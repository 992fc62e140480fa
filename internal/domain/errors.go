package domain

import (
	"errors"
	"fmt"
)

// Code classifies a failure. Every error crossing a package boundary in this
// module carries one.
type Code string

const (
	ErrConnectionString Code = "CONNECTION_STRING"
	ErrTransport        Code = "TRANSPORT"
	ErrCrypto           Code = "CRYPTO"
	ErrProtocol         Code = "PROTOCOL"
	ErrCorrelation      Code = "CORRELATION"
	ErrTimeout          Code = "TIMEOUT"
	ErrUnsupported      Code = "UNSUPPORTED"
	ErrVerification     Code = "VERIFICATION"
	ErrState            Code = "STATE"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// E builds a coded error.
func E(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Ef builds a coded error with a formatted message.
func Ef(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to a cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from err; errors without one yield the empty
// code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }
