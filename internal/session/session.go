// Package session implements the note session: it signs the user in, keeps
// one live subscription to the user's notes, derives the display list from
// every snapshot and turns user intents into store writes.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"memory-assistant/internal/identity"
	"memory-assistant/internal/model"
)

type Status string

const (
	StatusInitializing  Status = "initializing"
	StatusSigningIn     Status = "signing-in"
	StatusAuthenticated Status = "authenticated"
	StatusAuthFailed    Status = "auth-failed"
)

// DefaultAppID scopes the notes collection when no app id is configured.
const DefaultAppID = "digital-memory-assistant-local"

type IdentityProvider interface {
	SignInAnonymously(ctx context.Context) (model.Identity, error)
	SignInWithToken(ctx context.Context, token string) (model.Identity, error)
	// OnIdentityChange calls fn with the current identity (nil when signed
	// out) on registration and after every change.
	OnIdentityChange(fn func(*model.Identity)) (unsubscribe func())
}

type NoteStore interface {
	Create(ctx context.Context, scope model.Scope, note model.Note) (model.Note, error)
	// Subscribe delivers the full snapshot of scope on open and after every
	// change until unsubscribe is called. onError is called at most once
	// and ends delivery.
	Subscribe(scope model.Scope, onSnapshot func(model.Snapshot), onError func(error)) (unsubscribe func(), err error)
	Delete(ctx context.Context, scope model.Scope, noteID string) error
}

type Config struct {
	AppID string
	// Token is the optional pre-issued credential tried when anonymous
	// sign-in fails.
	Token string
	Now   func() time.Time
}

// View is what the presentation layer renders.
type View struct {
	Status    Status       `json:"status"`
	UserID    string       `json:"userId,omitempty"`
	Loading   bool         `json:"loading"`
	Synced    bool         `json:"synced"`
	Notes     []model.Note `json:"notes"`
	Fatal     string       `json:"fatal,omitempty"`
	FeedError string       `json:"feedError,omitempty"`
}

type Session struct {
	cfg   Config
	idp   IdentityProvider
	store NoteStore
	log   *logrus.Entry

	mu                  sync.Mutex
	status              Status
	identity            *model.Identity
	notes               []model.Note
	synced              bool
	fatal               error
	feedErr             error
	feedGen             uint64
	unsubscribeFeed     func()
	unsubscribeIdentity func()
	closed              bool

	listenersMu  sync.Mutex
	listeners    map[int]func(View)
	nextListener int

	changed chan struct{}
	stop    chan struct{}
}

func New(cfg Config, idp IdentityProvider, store NoteStore) *Session {
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Session{
		cfg:       cfg,
		idp:       idp,
		store:     store,
		log:       logrus.WithFields(logrus.Fields{"component": "session", "app_id": cfg.AppID}),
		status:    StatusInitializing,
		listeners: make(map[int]func(View)),
		changed:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Start runs the sign-in sequence and, on success, opens the note feed.
// The returned error is the fatal AuthError, also reflected in View.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != StatusInitializing {
		s.mu.Unlock()
		return errors.Errorf("session already started (status %s)", s.status)
	}
	s.status = StatusSigningIn
	s.mu.Unlock()
	s.notify()

	id, err := s.signIn(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = StatusAuthFailed
		s.fatal = err
		s.mu.Unlock()
		s.log.WithError(err).Error("startup failed")
		s.notify()
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.status = StatusAuthenticated
	s.mu.Unlock()

	s.switchIdentity(&id)

	unsubscribe := s.idp.OnIdentityChange(s.switchIdentity)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	s.unsubscribeIdentity = unsubscribe
	s.mu.Unlock()
	return nil
}

func (s *Session) signIn(ctx context.Context) (model.Identity, error) {
	s.log.Debug("trying anonymous sign-in")
	id, anonErr := s.idp.SignInAnonymously(ctx)
	if anonErr == nil {
		s.log.WithField("uid", id.UID).Info("signed in anonymously")
		return id, nil
	}
	s.log.WithError(anonErr).Warn("anonymous sign-in failed")

	token := strings.TrimSpace(s.cfg.Token)
	if token == "" {
		return model.Identity{}, &AuthError{
			Method:     model.MethodAnonymous,
			Restricted: identity.IsRestricted(anonErr),
			Err:        anonErr,
		}
	}

	s.log.Debug("trying token sign-in")
	id, tokenErr := s.idp.SignInWithToken(ctx, token)
	if tokenErr != nil {
		return model.Identity{}, &AuthError{
			Method:     model.MethodToken,
			Restricted: identity.IsRestricted(tokenErr),
			Err:        tokenErr,
		}
	}
	s.log.WithField("uid", id.UID).Info("signed in with token")
	return id, nil
}

// switchIdentity records a new identity. A different uid replaces the feed;
// signing out closes it and clears the list.
func (s *Session) switchIdentity(id *model.Identity) {
	s.mu.Lock()
	if s.closed || s.status != StatusAuthenticated {
		s.mu.Unlock()
		return
	}
	if uidOf(s.identity) == uidOf(id) {
		if id != nil {
			s.identity = id
		}
		s.mu.Unlock()
		return
	}

	s.identity = id
	unsubscribe := s.unsubscribeFeed
	s.unsubscribeFeed = nil
	s.feedGen++
	gen := s.feedGen
	s.notes = nil
	s.synced = false
	s.feedErr = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if id == nil {
		s.log.Info("signed out")
	} else {
		s.log.WithField("uid", id.UID).Debug("opening note feed")
		s.openFeed(gen, model.Scope{AppID: s.cfg.AppID, UID: id.UID})
	}
	s.notify()
}

func (s *Session) openFeed(gen uint64, scope model.Scope) {
	unsubscribe, err := s.store.Subscribe(scope,
		func(snap model.Snapshot) { s.handleSnapshot(gen, snap) },
		func(err error) { s.handleFeedError(gen, err) },
	)
	if err != nil {
		s.handleFeedError(gen, err)
		return
	}

	s.mu.Lock()
	if s.closed || gen != s.feedGen {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribeFeed = unsubscribe
	s.mu.Unlock()
}

func (s *Session) handleSnapshot(gen uint64, snap model.Snapshot) {
	notes := DeriveList(snap)

	s.mu.Lock()
	if s.closed || gen != s.feedGen || s.feedErr != nil {
		s.mu.Unlock()
		return
	}
	s.notes = notes
	s.synced = true
	s.mu.Unlock()

	s.log.WithField("notes", len(notes)).Debug("snapshot received")
	s.notify()
}

func (s *Session) handleFeedError(gen uint64, err error) {
	s.mu.Lock()
	if s.closed || gen != s.feedGen || s.feedErr != nil {
		s.mu.Unlock()
		return
	}
	s.feedErr = &SubscriptionError{Err: err}
	s.mu.Unlock()

	s.log.WithError(err).Error("note feed failed")
	s.notify()
}

// Submit validates and stores a new note. The list only changes when the
// store's next snapshot arrives.
func (s *Session) Submit(ctx context.Context, content, link string) (model.Note, error) {
	content = strings.TrimSpace(content)
	link = strings.TrimSpace(link)
	if content == "" && link == "" {
		return model.Note{}, &ValidationError{Reason: "content or link required"}
	}

	scope, err := s.writeScope()
	if err != nil {
		return model.Note{}, err
	}

	note := model.Note{
		Content:   content,
		Link:      link,
		CreatedAt: model.FormatTimestamp(s.cfg.Now()),
	}
	stored, err := s.store.Create(ctx, scope, note)
	if err != nil {
		s.log.WithError(err).WithField("uid", scope.UID).Error("saving note failed")
		return model.Note{}, &WriteError{Op: OpCreate, Err: err}
	}
	s.log.WithFields(logrus.Fields{"uid": scope.UID, "note_id": stored.ID}).Debug("note saved")
	return stored, nil
}

// Delete removes noteID from the store. There is no local existence check
// and no optimistic removal from the list.
func (s *Session) Delete(ctx context.Context, noteID string) error {
	scope, err := s.writeScope()
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, scope, noteID); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"uid": scope.UID, "note_id": noteID}).Error("deleting note failed")
		return &WriteError{Op: OpDelete, NoteID: noteID, Err: err}
	}
	s.log.WithFields(logrus.Fields{"uid": scope.UID, "note_id": noteID}).Debug("note deleted")
	return nil
}

func (s *Session) writeScope() (model.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Scope{}, ErrClosed
	}
	if s.status != StatusAuthenticated || s.identity == nil {
		return model.Scope{}, &NotReadyError{Status: s.status}
	}
	return model.Scope{AppID: s.cfg.AppID, UID: s.identity.UID}, nil
}

func (s *Session) Identity() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Status:  s.status,
		UserID:  uidOf(s.identity),
		Loading: s.status == StatusInitializing || s.status == StatusSigningIn,
		Synced:  s.synced,
		Notes:   append([]model.Note(nil), s.notes...),
	}
	if v.Notes == nil {
		v.Notes = []model.Note{}
	}
	if s.fatal != nil {
		v.Fatal = UserMessage(s.fatal)
	}
	if s.feedErr != nil {
		v.FeedError = UserMessage(s.feedErr)
	}
	return v
}

// Err returns the fatal startup error or, failing that, the feed error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal != nil {
		return s.fatal
	}
	return s.feedErr
}

// OnChange registers fn to receive the view after state changes. Calls are
// made from a single goroutine, in order; bursts of changes are coalesced
// into the latest view.
func (s *Session) OnChange(fn func(View)) func() {
	s.listenersMu.Lock()
	key := s.nextListener
	s.nextListener++
	s.listeners[key] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, key)
			s.listenersMu.Unlock()
		})
	}
}

// AwaitSync blocks until the first snapshot has been applied or the session
// has failed.
func (s *Session) AwaitSync(ctx context.Context) (View, error) {
	done := make(chan struct{}, 1)
	unsubscribe := s.OnChange(func(v View) {
		if v.Synced || v.Fatal != "" || v.FeedError != "" {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	for {
		v := s.View()
		if err := s.Err(); err != nil {
			return v, err
		}
		if v.Synced {
			return v, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return s.View(), ctx.Err()
		}
	}
}

// Close ends the session: the identity listener and the note feed are
// released exactly once. Listeners receive one final view.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.feedGen++
	unsubscribeFeed := s.unsubscribeFeed
	unsubscribeIdentity := s.unsubscribeIdentity
	s.unsubscribeFeed = nil
	s.unsubscribeIdentity = nil
	s.mu.Unlock()

	if unsubscribeIdentity != nil {
		unsubscribeIdentity()
	}
	if unsubscribeFeed != nil {
		unsubscribeFeed()
	}
	close(s.stop)
	s.log.Debug("session closed")
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Session) dispatch() {
	for {
		select {
		case <-s.changed:
			s.deliver()
		case <-s.stop:
			s.deliver()
			return
		}
	}
}

func (s *Session) deliver() {
	v := s.View()

	s.listenersMu.Lock()
	fns := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func uidOf(id *model.Identity) string {
	if id == nil {
		return ""
	}
	return id.UID
}
