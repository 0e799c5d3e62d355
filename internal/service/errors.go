package service

import "errors"

// Error classes. Handlers choose the HTTP status from the class and pass
// Code through to the client.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
	ErrOutOfRange = errors.New("out of range")
	ErrInternal   = errors.New("internal")
)

// ServiceError is a client-facing failure: a class, a stable code such as
// NOT_A_MEMBER, and a human message.
type ServiceError struct {
	Err     error
	Code    string
	Message string
}

func (e *ServiceError) Error() string { return e.Code + ": " + e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

func classed(class error) func(code, message string) *ServiceError {
	return func(code, message string) *ServiceError {
		return &ServiceError{Err: class, Code: code, Message: message}
	}
}

var (
	NotFound   = classed(ErrNotFound)
	Forbidden  = classed(ErrForbidden)
	BadRequest = classed(ErrBadRequest)
	Conflict   = classed(ErrConflict)
	OutOfRange = classed(ErrOutOfRange)
	Internal   = classed(ErrInternal)
)

// CodeOf returns the client code carried by err, or "" for errors that
// did not originate here.
func CodeOf(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func internalError() *ServiceError {
	return Internal("INTERNAL", "internal server error")
}

func messageNotFound() *ServiceError {
	return NotFound("MESSAGE_NOT_FOUND", "message not found")
}

func conversationNotFound() *ServiceError {
	return NotFound("CONVERSATION_NOT_FOUND", "conversation not found")
}
