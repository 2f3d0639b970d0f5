// Package app assembles a note session from configuration.
package app

import (
	"context"
	"encoding/json"
	"strings"

	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"memory-assistant/internal/auth"
	"memory-assistant/internal/config"
	"memory-assistant/internal/identity"
	firebaseidentity "memory-assistant/internal/identity/firebase"
	"memory-assistant/internal/session"
	"memory-assistant/internal/store"
	firestorestore "memory-assistant/internal/store/firestore"
	"memory-assistant/internal/store/sqlstore"
)

type App struct {
	Config  config.Config
	Session *session.Session

	closers []func() error
}

func ConfigureLogging(cfg config.Config) {
	logrus.SetLevel(cfg.LogLevel)
	if cfg.GinMode == "release" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// New builds the identity provider and note store named by cfg and a session
// over them. The session is not started.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	var fbApp *firebase.App
	if cfg.NeedsFirebase() {
		var err error
		fbApp, err = newFirebaseApp(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	idp, err := newIdentityProvider(ctx, cfg, fbApp)
	if err != nil {
		return nil, err
	}

	notes, err := a.newNoteStore(ctx, cfg, fbApp)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Session = session.New(session.Config{AppID: cfg.AppID, Token: cfg.AuthToken}, idp, notes)
	logrus.WithFields(logrus.Fields{
		"identity": cfg.IdentityBackend,
		"store":    cfg.StoreBackend,
		"app_id":   cfg.AppID,
	}).Info("note session assembled")
	return a, nil
}

// Close shuts the session down and releases the store.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func newIdentityProvider(ctx context.Context, cfg config.Config, fbApp *firebase.App) (session.IdentityProvider, error) {
	switch cfg.IdentityBackend {
	case config.IdentityFirebase:
		p, err := firebaseidentity.New(ctx, firebaseidentity.Options{APIKey: cfg.FirebaseAPIKey, App: fbApp})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.IdentityLocal:
		tokenCfg := auth.DefaultTokenConfig(cfg.LocalTokenSecret)
		return identity.NewLocalProvider(identity.LocalOptions{
			TokenConfig:    tokenCfg,
			AllowAnonymous: cfg.LocalAllowAnonymous,
			StateFile:      cfg.IdentityStateFile,
		}), nil
	default:
		return nil, errors.Errorf("unknown identity backend %q", cfg.IdentityBackend)
	}
}

func (a *App) newNoteStore(ctx context.Context, cfg config.Config, fbApp *firebase.App) (session.NoteStore, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return store.NewWithOptions(store.Options{StateFile: cfg.NotesStateFile}), nil
	case config.StoreSQLite:
		s, err := sqlstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.StoreFirestore:
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "getting Firestore client")
		}
		s := firestorestore.New(client)
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newFirebaseApp(ctx context.Context, cfg config.Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsJSON != "" {
		creds, err := RepairCredentialsJSON(cfg.FirebaseCredentialsJSON)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}
	return fbApp, nil
}

// RepairCredentialsJSON turns literal "\n" sequences in a service-account
// private key back into newlines, as left behind by single-line env values.
func RepairCredentialsJSON(raw string) ([]byte, error) {
	var keyData map[string]any
	if err := json.Unmarshal([]byte(raw), &keyData); err != nil {
		return nil, errors.Wrap(err, "unmarshalling credentials")
	}
	if key, ok := keyData["private_key"].(string); ok {
		keyData["private_key"] = strings.ReplaceAll(key, "\\n", "\n")
	}
	out, err := json.Marshal(keyData)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling credentials")
	}
	return out, nil
}
