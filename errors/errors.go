package imapkit_errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error per the failure policy it implies.
type Kind string

const (
	KindValidation Kind = "validation" // client-side precondition, never retried
	KindConnection Kind = "connection" // transport failure, retryable on connect
	KindAuth       Kind = "auth"       // LOGIN rejected, never retried
	KindMailbox    Kind = "mailbox"    // folder-level refusal (SELECT, CREATE, ...)
	KindOperation  Kind = "operation"  // server NO/BAD on a command
	KindPartial    Kind = "partial"    // bulk operation with mixed outcomes
)

var (
	ErrEmptyMessageSet   = errors.New("message set is empty")
	ErrEmptyResult       = errors.New("operation produced an empty result")
	ErrMixedSetTypes     = errors.New("cannot combine UID and sequence-number message sets")
	ErrNotConnected      = errors.New("connection is not authenticated")
	ErrNoMailboxSelected = errors.New("no mailbox selected")
	ErrPoolExhausted     = errors.New("no pooled connection available")
	ErrProtectedMailbox  = errors.New("refusing to delete a protected mailbox")
)

// Error carries the kind, a message, and optionally the server's response text.
type Error struct {
	Kind           Kind
	Message        string
	ServerResponse string
	Err            error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.ServerResponse != "" {
		b.WriteString(" (server: ")
		b.WriteString(e.ServerResponse)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewValidationError(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

func NewConnectionError(err error, format string, args ...interface{}) *Error {
	return newError(KindConnection, err, format, args...)
}

func NewAuthError(err error, format string, args ...interface{}) *Error {
	return newError(KindAuth, err, format, args...)
}

func NewMailboxError(err error, format string, args ...interface{}) *Error {
	return newError(KindMailbox, err, format, args...)
}

func NewOperationError(err error, format string, args ...interface{}) *Error {
	return newError(KindOperation, err, format, args...)
}

// WithServerResponse attaches the raw server response text.
func (e *Error) WithServerResponse(resp string) *Error {
	e.ServerResponse = resp
	return e
}

// KindOf returns the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsAuthError(err error) bool {
	return IsKind(err, KindAuth)
}

func IsValidationError(err error) bool {
	return IsKind(err, KindValidation)
}

// IsConnectionError reports whether err looks like a transport failure.
// Typed checks first, then the error-text heuristics the go-imap client
// forces on us for mid-stream disconnects.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, KindConnection) {
		return true
	}

	errorMsg := err.Error()
	return strings.Contains(errorMsg, "connection closed") ||
		strings.Contains(errorMsg, "i/o timeout") ||
		strings.Contains(errorMsg, "EOF") ||
		strings.Contains(errorMsg, "connection reset") ||
		strings.Contains(errorMsg, "broken pipe")
}
