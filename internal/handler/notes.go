package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"memory-assistant/internal/model"
	"memory-assistant/internal/session"
)

// NoteSession is the part of a session the HTTP surface drives.
type NoteSession interface {
	View() session.View
	Submit(ctx context.Context, content, link string) (model.Note, error)
	Delete(ctx context.Context, noteID string) error
	OnChange(fn func(session.View)) (unsubscribe func())
}

type NotesHandler struct {
	Session NoteSession
}

type createNoteBody struct {
	Content string `json:"content"`
	Link    string `json:"link"`
}

func (h *NotesHandler) View(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.View())
}

func (h *NotesHandler) List(c *gin.Context) {
	v := h.Session.View()
	switch {
	case v.Fatal != "":
		c.JSON(http.StatusInternalServerError, gin.H{"error": v.Fatal})
		return
	case v.FeedError != "":
		c.JSON(http.StatusInternalServerError, gin.H{"error": v.FeedError})
		return
	case v.Loading || (v.UserID != "" && !v.Synced):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notes are still loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": v.Notes})
}

func (h *NotesHandler) Create(c *gin.Context) {
	var body createNoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	note, err := h.Session.Submit(c.Request.Context(), body.Content, body.Link)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": session.UserMessage(err)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

func (h *NotesHandler) Delete(c *gin.Context) {
	if err := h.Session.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": session.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func errorStatus(err error) int {
	var validationErr *session.ValidationError
	var notReadyErr *session.NotReadyError
	var writeErr *session.WriteError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notReadyErr), errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	case errors.As(err, &writeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
