package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeNotIdentified = "not_identified"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeStorage       = "storage_error"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotIdentified = errors.New("connection not identified")
	ErrBadRequest    = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
