package session

import (
	"context"

	"memory-assistant/internal/model"
)

// Draft is the caller's pending input.
type Draft struct {
	Content string `json:"content"`
	Link    string `json:"link"`
}

// SubmitDraft submits d and clears it once the store accepted the note,
// without waiting for the snapshot that will show it. On error d is kept.
func (s *Session) SubmitDraft(ctx context.Context, d *Draft) (model.Note, error) {
	note, err := s.Submit(ctx, d.Content, d.Link)
	if err != nil {
		return model.Note{}, err
	}
	*d = Draft{}
	return note, nil
}
