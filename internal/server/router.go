package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"memory-assistant/internal/handler"
	"memory-assistant/internal/middleware"
)

type Deps struct {
	Session handler.NoteSession
	// NotesRateLimit caps note writes per client IP per minute; zero
	// disables the limit.
	NotesRateLimit int
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recover())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	notesHandler := &handler.NotesHandler{Session: deps.Session}
	writes := []gin.HandlerFunc{}
	if deps.NotesRateLimit > 0 {
		writes = append(writes, middleware.Limit(middleware.NewRateLimiter(deps.NotesRateLimit, time.Minute)))
	}

	v1 := r.Group("/v1")
	v1.GET("/session", notesHandler.View)
	v1.GET("/notes", notesHandler.List)
	v1.POST("/notes", append(writes, notesHandler.Create)...)
	v1.DELETE("/notes/:id", append(writes, notesHandler.Delete)...)

	updatesHandler := handler.NewUpdatesHandler(deps.Session)
	v1.GET("/updates", updatesHandler.Serve)

	return r
}
