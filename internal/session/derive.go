package session

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"memory-assistant/internal/model"
)

// DeriveList turns a raw snapshot into the display list: newest createdAt
// first, unparsable timestamps last, equal keys ordered by id.
func DeriveList(snapshot model.Snapshot) []model.Note {
	type keyed struct {
		note model.Note
		at   time.Time
		ok   bool
	}

	items := make([]keyed, 0, len(snapshot))
	for _, r := range snapshot {
		n := NoteFromRecord(r)
		at, ok := model.ParseTimestamp(n.CreatedAt)
		items = append(items, keyed{note: n, at: at, ok: ok})
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case a.ok && b.ok:
			if c := b.at.Compare(a.at); c != 0 {
				return c
			}
		}
		return strings.Compare(a.note.ID, b.note.ID)
	})

	notes := make([]model.Note, len(items))
	for i, it := range items {
		notes[i] = it.note
	}
	return notes
}

// NoteFromRecord maps a stored document onto a Note. Documents written by
// other clients may carry a native timestamp or non-string values.
func NoteFromRecord(r model.Record) model.Note {
	n := model.Note{
		ID:      r.ID,
		Content: stringField(r.Fields["content"]),
		Link:    stringField(r.Fields["link"]),
	}

	switch v := r.Fields["createdAt"].(type) {
	case time.Time:
		n.CreatedAt = model.FormatTimestamp(v)
	case *time.Time:
		if v != nil {
			n.CreatedAt = model.FormatTimestamp(*v)
		}
	default:
		n.CreatedAt = stringField(v)
	}
	return n
}

func stringField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
