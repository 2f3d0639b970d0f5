package session

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("session closed")

const (
	OpCreate = "create"
	OpDelete = "delete"
)

// AuthError is the fatal startup failure. Err is the last sign-in attempt's
// error: the token error when the token fallback ran, else the anonymous one.
type AuthError struct {
	Method     string
	Restricted bool
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sign-in failed (%s): %v", e.Method, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid note: " + e.Reason }

type NotReadyError struct {
	Status Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("not signed in (status %s)", e.Status)
}

type WriteError struct {
	Op     string
	NoteID string
	Err    error
}

func (e *WriteError) Error() string {
	if e.NoteID != "" {
		return fmt.Sprintf("%s note %s: %v", e.Op, e.NoteID, e.Err)
	}
	return fmt.Sprintf("%s note: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SubscriptionError ends the live feed for the rest of the session.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string { return "note feed failed: " + e.Err.Error() }

func (e *SubscriptionError) Unwrap() error { return e.Err }
