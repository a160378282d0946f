package backend

import (
	"errors"
	"fmt"
)

// Error codes returned by the backend. CodeNoRows matches the hosted row API's
// "zero rows for a single-object request" code.
const (
	CodeNoRows             = "PGRST116"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserExists         = "user_already_exists"
	CodeUnauthorized       = "unauthorized"
	CodeTransport          = "transport"
	CodeUnknown            = "unknown"
)

// Error is a backend failure carrying a machine-readable code and a message
// suitable for showing to the user.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNoRows reports whether err is the "no matching row" condition.
func IsNoRows(err error) bool {
	return CodeOf(err) == CodeNoRows
}

// CodeOf extracts the backend code from err, or "" when err is not a backend error.
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Message returns the human-readable part of err for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return err.Error()
}

// ErrNoRows builds the "no matching row" error.
func ErrNoRows(what string) *Error {
	return &Error{Code: CodeNoRows, Message: fmt.Sprintf("no %s found", what), Status: 406}
}
