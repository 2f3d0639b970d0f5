package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"memory-assistant/internal/auth"
	"memory-assistant/internal/model"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "notes.db"))
	t.Setenv("IDENTITY_STATE_FILE", filepath.Join(dir, "identity.json"))
	t.Setenv("LOG_LEVEL", "error")
}

func TestAddListDelete(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "add", "--content", "Buy milk", "--link", "https://example.com")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Note saved: "), out)
	id := strings.TrimSpace(strings.TrimPrefix(out, "Note saved: "))

	out, err = run(t, "list", "--json")
	require.NoError(t, err)
	var notes []model.Note
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, id, notes[0].ID)
	assert.Equal(t, "Buy milk", notes[0].Content)
	assert.Equal(t, "https://example.com", notes[0].Link)

	out, err = run(t, "list", "--yaml")
	require.NoError(t, err)
	var fromYAML []model.Note
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, notes, fromYAML)

	out, err = run(t, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No notes yet.")
}

func TestAddRejectsEmptyNote(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "add", "--content", "   ")
	require.Error(t, err)
	assert.Equal(t, "Please provide content or a link.", err.Error())
}

func TestListRejectsBothFormats(t *testing.T) {
	_, err := run(t, "list", "--json", "--yaml")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	t.Setenv("LOCAL_TOKEN_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "token", "--uid", "user-7")
	require.NoError(t, err)

	claims, err := auth.VerifyToken(strings.TrimSpace(out), auth.DefaultTokenConfig("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UID)
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("LOCAL_TOKEN_SECRET", "")
	_, err := run(t, "token", "--uid", "user-7")
	assert.Error(t, err)
}

func TestWriteNotes_Text(t *testing.T) {
	var buf bytes.Buffer
	notes := []model.Note{
		{ID: "n1", Content: "with link", Link: "https://example.com", CreatedAt: "2026-01-02T03:04:05.000Z"},
		{ID: "n2", Content: "bad time", CreatedAt: "yesterday"},
	}
	require.NoError(t, writeNotes(&buf, notes, "text"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "n1  "))
	assert.Equal(t, "    https://example.com", lines[1])
	assert.Equal(t, "n2  -  bad time", lines[2])
}
