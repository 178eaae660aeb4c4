// Package apperr defines the error kinds surfaced by marketplace operations.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the API boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindNotAuthenticated
	KindForbidden
	KindNotFound
	KindDuplicateEmail
	KindEmailAlreadyRegistered
	KindInvalidState
	KindInvalidToken
	KindExpired
	KindAlreadyAccepted
	KindAlreadyMember
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindInternal:               "internal",
	KindNotAuthenticated:       "not_authenticated",
	KindForbidden:              "forbidden",
	KindNotFound:               "not_found",
	KindDuplicateEmail:         "duplicate_email",
	KindEmailAlreadyRegistered: "email_already_registered",
	KindInvalidState:           "invalid_state",
	KindInvalidToken:           "invalid_token",
	KindExpired:                "expired",
	KindAlreadyAccepted:        "already_accepted",
	KindAlreadyMember:          "already_member",
	KindInvalidInput:           "invalid_input",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure with a message safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err, or fallback when err is
// not classified or is internal.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	return fallback
}

func NotAuthenticated() *Error { return New(KindNotAuthenticated, "User not authenticated") }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func InvalidState(message string) *Error { return New(KindInvalidState, message) }

func InvalidInput(message string) *Error { return New(KindInvalidInput, message) }

func AlreadyMember() *Error {
	return New(KindAlreadyMember, "User already belongs to an organization")
}

func Internal(message string, cause error) *Error { return Wrap(KindInternal, message, cause) }
