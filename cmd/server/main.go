package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"memory-assistant/internal/app"
	"memory-assistant/internal/config"
	"memory-assistant/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	app.ConfigureLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("assembling note session")
	}
	defer a.Close()

	// A failed sign-in stays visible through /v1/session and /v1/notes.
	go func() {
		if err := a.Session.Start(ctx); err != nil {
			logrus.WithError(err).Error("note session did not start")
		}
	}()

	router := server.NewRouter(server.Deps{Session: a.Session, NotesRateLimit: cfg.NotesRateLimit})
	if err := server.Run(ctx, cfg, router); err != nil {
		logrus.WithError(err).Error("server stopped")
	}
}
