package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"memory-assistant/internal/identity"
	"memory-assistant/internal/session"
	"memory-assistant/internal/store"
)

func newSession(t *testing.T, allowAnonymous, start bool) *session.Session {
	t.Helper()
	idp := identity.NewLocalProvider(identity.LocalOptions{AllowAnonymous: allowAnonymous})
	sess := session.New(session.Config{AppID: "test-app"}, idp, store.New())
	t.Cleanup(sess.Close)

	if start {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sess.Start(ctx)
		if allowAnonymous {
			if _, err := sess.AwaitSync(ctx); err != nil {
				t.Fatalf("AwaitSync: %v", err)
			}
		}
	}
	return sess
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Session: newSession(t, true, false)})

	w := do(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestNotesFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sess := newSession(t, true, true)
	r := NewRouter(Deps{Session: sess})

	w := do(r, http.MethodGet, "/v1/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if notes := decode(t, w)["notes"].([]any); len(notes) != 0 {
		t.Fatalf("expected empty list, got %v", notes)
	}

	w = do(r, http.MethodPost, "/v1/notes", map[string]string{"content": "  Buy milk ", "link": ""})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	note := decode(t, w)["note"].(map[string]any)
	if note["content"] != "Buy milk" {
		t.Fatalf("expected trimmed content, got %v", note["content"])
	}
	id, _ := note["id"].(string)
	if id == "" {
		t.Fatalf("expected note id")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sess.View().Notes) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("note never reached the list")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = do(r, http.MethodGet, "/v1/notes", nil)
	if notes := decode(t, w)["notes"].([]any); len(notes) != 1 {
		t.Fatalf("expected 1 note, got %v", notes)
	}

	w = do(r, http.MethodGet, "/v1/session", nil)
	view := decode(t, w)
	if view["status"] != string(session.StatusAuthenticated) || view["userId"] == "" {
		t.Fatalf("unexpected view: %v", view)
	}

	w = do(r, http.MethodDelete, "/v1/notes/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decode(t, w)["success"] != true {
		t.Fatalf("expected success")
	}
}

func TestCreateNote_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Session: newSession(t, true, true)})

	w := do(r, http.MethodPost, "/v1/notes", map[string]string{"content": "   ", "link": " "})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if decode(t, w)["error"] != session.MsgEmptyNote {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}

	w = do(r, http.MethodPost, "/v1/notes", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing body, got %d", w.Code)
	}
}

func TestNotes_NotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Session: newSession(t, true, false)})

	w := do(r, http.MethodGet, "/v1/notes", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/v1/notes", map[string]string{"content": "x"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodDelete, "/v1/notes/abc", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestNotes_AuthFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Session: newSession(t, false, true)})

	w := do(r, http.MethodGet, "/v1/notes", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if decode(t, w)["error"] != session.MsgStartupRestricted {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
}

func TestCreateNote_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Session: newSession(t, true, true), NotesRateLimit: 1})

	w := do(r, http.MethodPost, "/v1/notes", map[string]string{"content": "one"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	w = do(r, http.MethodPost, "/v1/notes", map[string]string{"content": "two"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
