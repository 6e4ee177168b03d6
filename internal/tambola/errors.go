package tambola

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures surfaced to clients
type ErrorCode string

const (
	CodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	CodeDuplicateNumber    ErrorCode = "DUPLICATE_NUMBER"
	CodeOutOfRange         ErrorCode = "OUT_OF_RANGE"
	CodeGameNotFound       ErrorCode = "GAME_NOT_FOUND"
	CodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	CodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeInternal           ErrorCode = "INTERNAL"
)

// GameError is the error type returned by game operations
type GameError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *GameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GameError) Unwrap() error {
	return e.Err
}

// Is matches any GameError carrying the same code
func (e *GameError) Is(target error) bool {
	t, ok := target.(*GameError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is
var (
	ErrInvalidTransition  = &GameError{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrDuplicateNumber    = &GameError{Code: CodeDuplicateNumber, Message: "duplicate number"}
	ErrOutOfRange         = &GameError{Code: CodeOutOfRange, Message: "number out of range"}
	ErrGameNotFound       = &GameError{Code: CodeGameNotFound, Message: "Game not found"}
	ErrPersistenceFailure = &GameError{Code: CodePersistenceFailure, Message: "persistence failure"}
	ErrInvalidPayload     = &GameError{Code: CodeInvalidPayload, Message: "invalid payload"}
	ErrForbidden          = &GameError{Code: CodeForbidden, Message: "forbidden"}
	ErrRateLimited        = &GameError{Code: CodeRateLimited, Message: "too many requests"}
)

// InvalidTransition reports an operation the current state forbids
func InvalidTransition(format string, args ...interface{}) error {
	return &GameError{Code: CodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// DuplicateNumber reports a manual draw of an already called number
func DuplicateNumber(n int) error {
	return &GameError{Code: CodeDuplicateNumber, Message: fmt.Sprintf("Number %d already called", n)}
}

// OutOfRange reports a manual draw outside the pool
func OutOfRange(n int) error {
	return &GameError{Code: CodeOutOfRange, Message: fmt.Sprintf("Number %d is out of range", n)}
}

// GameNotFound reports an unknown game id
func GameNotFound(err error) error {
	return &GameError{Code: CodeGameNotFound, Message: "Game not found", Err: err}
}

// PersistenceFailure wraps a store failure
func PersistenceFailure(err error) error {
	return &GameError{Code: CodePersistenceFailure, Message: "failed to persist game", Err: err}
}

// InvalidPayload reports a malformed inbound command
func InvalidPayload(format string, args ...interface{}) error {
	return &GameError{Code: CodeInvalidPayload, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports a command the caller is not allowed to issue
func Forbidden(message string) error {
	return &GameError{Code: CodeForbidden, Message: message}
}

// CodeOf extracts the error code, defaulting to CodeInternal
func CodeOf(err error) ErrorCode {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// MessageOf returns the client facing message of err
func MessageOf(err error) string {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return "Internal error"
}
