package config

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.AppID != DefaultAppID {
		t.Fatalf("expected default app id, got %q", cfg.AppID)
	}
	if cfg.IdentityBackend != IdentityLocal || cfg.StoreBackend != StoreMemory {
		t.Fatalf("unexpected backends %q/%q", cfg.IdentityBackend, cfg.StoreBackend)
	}
	if !cfg.LocalAllowAnonymous {
		t.Fatalf("expected anonymous sign-in enabled by default")
	}
	if cfg.LogLevel != logrus.InfoLevel {
		t.Fatalf("expected info level, got %v", cfg.LogLevel)
	}
	if cfg.NotesRateLimit != 30 {
		t.Fatalf("expected rate limit 30, got %d", cfg.NotesRateLimit)
	}
	if cfg.NeedsFirebase() {
		t.Fatalf("local defaults should not need firebase")
	}
}

func TestLoadConfigFromEnv_PortOverride(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"PORT": "1234"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
}

func TestLoadConfigFromEnv_TrimsToken(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"NOTES_AUTH_TOKEN": "  tok \n", "NOTES_APP_ID": "my-app"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.AuthToken != "tok" {
		t.Fatalf("expected trimmed token, got %q", cfg.AuthToken)
	}
	if cfg.AppID != "my-app" {
		t.Fatalf("expected app id override, got %q", cfg.AppID)
	}
}

func TestLoadConfigFromEnv_Firebase(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"IDENTITY_BACKEND":    "Firebase",
		"STORE_BACKEND":       "firestore",
		"FIREBASE_PROJECT_ID": "proj",
		"FIREBASE_API_KEY":    "key",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.NeedsFirebase() {
		t.Fatalf("expected firebase to be needed")
	}

	_, err = LoadConfigFromEnv(mapEnv{"STORE_BACKEND": "firestore"})
	if err == nil || !strings.Contains(err.Error(), "FIREBASE_PROJECT_ID") {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestLoadConfigFromEnv_AccumulatesErrors(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{
		"PORT":             "99999",
		"LOG_LEVEL":        "loud",
		"NOTES_APP_ID":     "a/b",
		"STORE_BACKEND":    "postgres",
		"NOTES_RATE_LIMIT": "0",
		"TLS_CERT_FILE":    "cert.pem",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"PORT", "LOG_LEVEL", "NOTES_APP_ID", "STORE_BACKEND", "NOTES_RATE_LIMIT", "TLS_KEY_FILE"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in error %q", want, msg)
		}
	}
}

func TestLoadConfigFromEnv_AllowAnonymous(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"LOCAL_ALLOW_ANONYMOUS": "false"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.LocalAllowAnonymous {
		t.Fatalf("expected anonymous sign-in disabled")
	}
	if _, err := LoadConfigFromEnv(mapEnv{"LOCAL_ALLOW_ANONYMOUS": "maybe"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
