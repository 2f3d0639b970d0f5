// Package identity holds the identity provider adapters used by the note
// session and the pieces they share.
package identity

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"memory-assistant/internal/model"
)

const (
	OpAnonymous = "sign-in-anonymously"
	OpToken     = "sign-in-with-token"
)

const (
	// CodeRestricted means the provider refuses the operation by policy,
	// e.g. anonymous sign-in disabled for the project.
	CodeRestricted   = "restricted"
	CodeInvalidToken = "invalid-token"
	CodeUnavailable  = "unavailable"
	CodeUnknown      = "unknown"
)

type Error struct {
	Op   string
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func IsRestricted(err error) bool {
	var ierr *Error
	return errors.As(err, &ierr) && ierr.Code == CodeRestricted
}

// Notifier tracks the current identity and fans changes out to listeners.
// New listeners are called with the current identity right away.
type Notifier struct {
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *model.Identity
	listeners map[int]func(*model.Identity)
	nextID    int
}

func (n *Notifier) Current() *model.Identity {
	n.mu.Lock()
	defer n.mu.Unlock()
	return clone(n.current)
}

func (n *Notifier) Set(id *model.Identity) {
	n.notifyMu.Lock()
	defer n.notifyMu.Unlock()

	n.mu.Lock()
	n.current = clone(id)
	fns := make([]func(*model.Identity), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(clone(id))
	}
}

func (n *Notifier) Subscribe(fn func(*model.Identity)) func() {
	n.notifyMu.Lock()
	defer n.notifyMu.Unlock()

	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(*model.Identity))
	}
	key := n.nextID
	n.nextID++
	n.listeners[key] = fn
	current := clone(n.current)
	n.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, key)
			n.mu.Unlock()
		})
	}
}

func clone(id *model.Identity) *model.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
