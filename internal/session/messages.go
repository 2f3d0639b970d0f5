package session

import "github.com/pkg/errors"

const (
	MsgStartupFailed     = "Failed to start the app."
	MsgStartupRestricted = "Failed to start the app: authentication is restricted. Check the project configuration, for example whether anonymous sign-in is enabled or whether an admin token is being used by mistake."
	MsgEmptyNote         = "Please provide content or a link."
	MsgNotSignedIn       = "You are not signed in. Please wait until sign-in has completed."
	MsgSaveFailed        = "The note could not be saved."
	MsgDeleteFailed      = "The note could not be deleted."
	MsgLoadFailed        = "Failed to load notes."
	MsgClosed            = "The session has ended."
	MsgUnexpected        = "Something went wrong."
)

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var authErr *AuthError
	var validationErr *ValidationError
	var notReadyErr *NotReadyError
	var writeErr *WriteError
	var subErr *SubscriptionError

	switch {
	case errors.As(err, &authErr):
		if authErr.Restricted {
			return MsgStartupRestricted
		}
		return MsgStartupFailed
	case errors.As(err, &validationErr):
		return MsgEmptyNote
	case errors.As(err, &notReadyErr):
		return MsgNotSignedIn
	case errors.As(err, &writeErr):
		if writeErr.Op == OpDelete {
			return MsgDeleteFailed
		}
		return MsgSaveFailed
	case errors.As(err, &subErr):
		return MsgLoadFailed
	case errors.Is(err, ErrClosed):
		return MsgClosed
	}
	return MsgUnexpected
}
