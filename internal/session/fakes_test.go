package session

import (
	"context"
	"errors"
	"sync"

	"memory-assistant/internal/identity"
	"memory-assistant/internal/model"
)

type fakeIdentity struct {
	identity.Notifier

	anonID   model.Identity
	anonErr  error
	tokenID  model.Identity
	tokenErr error

	mu         sync.Mutex
	anonCalls  int
	tokenCalls []string
}

func (f *fakeIdentity) SignInAnonymously(ctx context.Context) (model.Identity, error) {
	f.mu.Lock()
	f.anonCalls++
	f.mu.Unlock()
	if f.anonErr != nil {
		return model.Identity{}, f.anonErr
	}
	f.Set(&f.anonID)
	return f.anonID, nil
}

func (f *fakeIdentity) SignInWithToken(ctx context.Context, token string) (model.Identity, error) {
	f.mu.Lock()
	f.tokenCalls = append(f.tokenCalls, token)
	f.mu.Unlock()
	if f.tokenErr != nil {
		return model.Identity{}, f.tokenErr
	}
	f.Set(&f.tokenID)
	return f.tokenID, nil
}

func (f *fakeIdentity) OnIdentityChange(fn func(*model.Identity)) func() {
	return f.Subscribe(fn)
}

type fakeSubscription struct {
	scope        model.Scope
	onSnapshot   func(model.Snapshot)
	onError      func(error)
	unsubscribed int
}

type fakeStore struct {
	mu            sync.Mutex
	created       []model.Note
	createdScopes []model.Scope
	deleted       []string
	subs          []*fakeSubscription
	createErr     error
	deleteErr     error
	subscribeErr  error
	initial       model.Snapshot
}

func (f *fakeStore) Create(ctx context.Context, scope model.Scope, note model.Note) (model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Note{}, f.createErr
	}
	note.ID = "generated"
	f.created = append(f.created, note)
	f.createdScopes = append(f.createdScopes, scope)
	return note, nil
}

func (f *fakeStore) Subscribe(scope model.Scope, onSnapshot func(model.Snapshot), onError func(error)) (func(), error) {
	f.mu.Lock()
	if f.subscribeErr != nil {
		f.mu.Unlock()
		return nil, f.subscribeErr
	}
	sub := &fakeSubscription{scope: scope, onSnapshot: onSnapshot, onError: onError}
	f.subs = append(f.subs, sub)
	initial := f.initial
	f.mu.Unlock()

	if initial != nil {
		onSnapshot(initial)
	}
	return func() {
		f.mu.Lock()
		sub.unsubscribed++
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) Delete(ctx context.Context, scope model.Scope, noteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, noteID)
	return f.deleteErr
}

func (f *fakeStore) subscriptions() []*fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSubscription(nil), f.subs...)
}

func (f *fakeStore) unsubscribedCount(sub *fakeSubscription) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sub.unsubscribed
}

var errNetwork = errors.New("network unreachable")
