package rpc

import "errors"

const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeNotAuthenticated = -32001
	CodeNotAuthorized    = -32002
)

// Error is the protocol error object. It is the only error shape that
// crosses the wire: code and message, nothing else.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewParseError marks bytes that are not well-formed structured data.
func NewParseError(message string) *Error {
	return NewError(CodeParseError, message)
}

// NewInvalidRequest marks an envelope whose shape violates the protocol.
func NewInvalidRequest(message string) *Error {
	return NewError(CodeInvalidRequest, message)
}

// NewMethodNotFound marks an unknown endpoint path or an unregistered
// method name.
func NewMethodNotFound(message string) *Error {
	return NewError(CodeMethodNotFound, message)
}

// NewInvalidParams marks keyed parameters supplied where only positional
// are accepted, or positional parameters a method cannot decode.
func NewInvalidParams(message string) *Error {
	return NewError(CodeInvalidParams, message)
}

// NewInternalError marks any failure not otherwise classified.
func NewInternalError(message string) *Error {
	return NewError(CodeInternalError, message)
}

// NewNotAuthenticated marks a call that failed the authentication gate.
func NewNotAuthenticated(message string) *Error {
	return NewError(CodeNotAuthenticated, message)
}

// NewNotAuthorized marks an authenticated call that is not permitted to
// invoke the method.
func NewNotAuthorized(message string) *Error {
	return NewError(CodeNotAuthorized, message)
}

// Classify normalizes any failure into the protocol taxonomy. An error that
// already carries a protocol code keeps it, even through wrapping; anything
// else is coerced to InternalError, preserving the message for diagnostics
// but nothing of the original structure.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewInternalError(err.Error())
}
