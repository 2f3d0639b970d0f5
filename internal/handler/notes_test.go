package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"

	"memory-assistant/internal/session"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &session.ValidationError{Reason: "empty"}, http.StatusUnprocessableEntity},
		{"not ready", &session.NotReadyError{Status: session.StatusSigningIn}, http.StatusConflict},
		{"closed", session.ErrClosed, http.StatusConflict},
		{"write", &session.WriteError{Op: session.OpCreate, Err: errors.New("boom")}, http.StatusBadGateway},
		{"wrapped write", errors.Wrap(&session.WriteError{Op: session.OpDelete, NoteID: "n1", Err: errors.New("boom")}, "handler"), http.StatusBadGateway},
		{"other", context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorStatus(tc.err); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
