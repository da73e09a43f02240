package openai

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every *Error unwraps to exactly one of them.
var (
	ErrNotConfigured = errors.New("ai gateway not configured")
	ErrRateLimited   = errors.New("ai gateway rate limited")
	ErrUnauthorized  = errors.New("ai gateway rejected credentials")
	ErrUnavailable   = errors.New("ai gateway unavailable")
	ErrContentPolicy = errors.New("ai gateway content policy violation")
	ErrTimeout       = errors.New("ai gateway timeout")
	ErrBadResponse   = errors.New("ai gateway bad response")
	ErrRequest       = errors.New("ai gateway request failed")
)

// Error carries a user-readable message next to the failure kind.
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

// UserMessage extracts the user-facing text from err, or a generic fallback.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong talking to the assistant. Please try again."
}

// BadResponse reports gateway output that could not be used, such as a
// completion that is not the JSON the caller asked for.
func BadResponse(op, detail string) *Error {
	return newError(ErrBadResponse, op, 0, detail)
}

func newError(kind error, op string, status int, detail string) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Message: messageFor(kind), Detail: detail}
}

func messageFor(kind error) string {
	switch kind {
	case ErrNotConfigured:
		return "AI features are not configured on this server."
	case ErrRateLimited:
		return "The assistant is busy right now. Please wait a moment and try again."
	case ErrUnauthorized:
		return "The assistant could not authenticate. Check the API key."
	case ErrUnavailable:
		return "The assistant is temporarily unavailable. Please try again later."
	case ErrContentPolicy:
		return "That request was blocked by the content policy. Try describing it differently."
	case ErrTimeout:
		return "The assistant took too long to respond. Please try again."
	case ErrBadResponse:
		return "The assistant returned an unexpected response."
	default:
		return "The assistant request failed."
	}
}
