package domain

import (
	"errors"
	"strings"
)

const (
	CodeDiscovery  = "DISCOVERY_ERROR"
	CodeDirectory  = "DIRECTORY_ERROR"
	CodeTransport  = "TRANSPORT_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeInternal   = "INTERNAL_ERROR"
)

// Error carries a machine-readable code next to the client-visible message.
// Inner is kept for logs and errors.Is/As but never sent to clients.
type Error struct {
	Code    string
	Message string
	Inner   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Inner != nil {
		return e.Code + ": " + e.Message + ": " + e.Inner.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Inner
}

func NewError(code, message string, inner error) *Error {
	return &Error{Code: code, Message: message, Inner: inner}
}

func ValidationError(message string) *Error {
	return NewError(CodeValidation, message, nil)
}

func TransportError(message string, inner error) *Error {
	var existing *Error
	if errors.As(inner, &existing) && existing.Code == CodeTimeout {
		return NewError(CodeTimeout, message, inner)
	}
	return NewError(CodeTransport, message, inner)
}

func DirectoryError(message string, inner error) *Error {
	return NewError(CodeDirectory, message, inner)
}

func DiscoveryError(message string, inner error) *Error {
	return NewError(CodeDiscovery, message, inner)
}

// CodeOf reports the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e != nil && strings.TrimSpace(e.Code) != "" {
		return e.Code
	}
	return CodeInternal
}

// PublicMessage is the text shown to clients: the top-level message plus the
// transport's own explanation when there is one.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return err.Error()
	}
	if e.Inner == nil {
		return e.Message
	}
	var inner *Error
	if errors.As(e.Inner, &inner) && inner != nil {
		return e.Message + ": " + inner.Message
	}
	return e.Message + ": " + e.Inner.Error()
}
