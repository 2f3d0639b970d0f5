package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout matches JavaScript's Date.toISOString, which is what every
// client of the shared collection writes into createdAt.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Note struct {
	ID        string `json:"id" firestore:"-" yaml:"id"`
	Content   string `json:"content" firestore:"content" yaml:"content"`
	Link      string `json:"link" firestore:"link" yaml:"link,omitempty"`
	CreatedAt string `json:"createdAt" firestore:"createdAt" yaml:"createdAt"`
}

// Fields returns the document body as stored; the id lives in the document key.
func (n Note) Fields() map[string]any {
	return map[string]any{
		"content":   n.Content,
		"link":      n.Link,
		"createdAt": n.CreatedAt,
	}
}

func (n Note) Record() Record {
	return Record{ID: n.ID, Fields: n.Fields()}
}

// Record is a raw document delivered by a store snapshot.
type Record struct {
	ID     string
	Fields map[string]any
}

// Snapshot is the full current set of a user's records.
type Snapshot []Record

type Identity struct {
	UID       string `json:"uid"`
	Anonymous bool   `json:"anonymous"`
	Method    string `json:"method"`
}

const (
	MethodAnonymous = "anonymous"
	MethodToken     = "token"
)

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp, with or without fraction.
func ParseTimestamp(raw string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CollectionPath is the per-user notes collection: one flat collection per
// user under the application id.
func CollectionPath(appID, uid string) (string, error) {
	segments := [][2]string{{"app id", appID}, {"uid", uid}}
	for _, s := range segments {
		name, value := s[0], s[1]
		if value == "" {
			return "", fmt.Errorf("empty %s", name)
		}
		if strings.Contains(value, "/") {
			return "", fmt.Errorf("invalid %s %q", name, value)
		}
	}
	return "artifacts/" + appID + "/users/" + uid + "/notes", nil
}

// Scope names one user's notes collection within an application.
type Scope struct {
	AppID string
	UID   string
}

func (s Scope) Path() (string, error) {
	return CollectionPath(s.AppID, s.UID)
}
