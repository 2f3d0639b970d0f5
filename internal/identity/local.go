package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"memory-assistant/internal/auth"
	"memory-assistant/internal/model"
	"memory-assistant/internal/persist"
)

var (
	ErrAnonymousDisabled = errors.New("anonymous sign-in is disabled")
	ErrTokenNotSupported = errors.New("token sign-in is not configured")
)

type LocalOptions struct {
	// TokenConfig verifies pre-issued tokens. An empty secret disables
	// token sign-in.
	TokenConfig    auth.TokenConfig
	AllowAnonymous bool
	// StateFile keeps the anonymous uid across restarts when set.
	StateFile string
}

// LocalProvider is a self-contained identity provider: anonymous users get a
// random uid, token users are whoever the signed token names.
type LocalProvider struct {
	opts     LocalOptions
	notifier Notifier
	stateMu  sync.Mutex
}

type anonymousState struct {
	Version int    `json:"version"`
	UID     string `json:"uid"`
}

func NewLocalProvider(opts LocalOptions) *LocalProvider {
	return &LocalProvider{opts: opts}
}

func (p *LocalProvider) SignInAnonymously(ctx context.Context) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, &Error{Op: OpAnonymous, Code: CodeUnavailable, Err: err}
	}
	if !p.opts.AllowAnonymous {
		return model.Identity{}, &Error{Op: OpAnonymous, Code: CodeRestricted, Err: ErrAnonymousDisabled}
	}

	uid, err := p.anonymousUID()
	if err != nil {
		return model.Identity{}, &Error{Op: OpAnonymous, Code: CodeUnavailable, Err: err}
	}

	id := model.Identity{UID: uid, Anonymous: true, Method: model.MethodAnonymous}
	logrus.WithFields(logrus.Fields{"component": "identity", "uid": uid}).Debug("anonymous sign-in")
	p.notifier.Set(&id)
	return id, nil
}

func (p *LocalProvider) SignInWithToken(ctx context.Context, token string) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, &Error{Op: OpToken, Code: CodeUnavailable, Err: err}
	}
	if p.opts.TokenConfig.Secret == "" {
		return model.Identity{}, &Error{Op: OpToken, Code: CodeRestricted, Err: ErrTokenNotSupported}
	}

	claims, err := auth.VerifyToken(strings.TrimSpace(token), p.opts.TokenConfig)
	if err != nil {
		return model.Identity{}, &Error{Op: OpToken, Code: CodeInvalidToken, Err: err}
	}

	id := model.Identity{UID: claims.UID, Method: model.MethodToken}
	logrus.WithFields(logrus.Fields{"component": "identity", "uid": id.UID}).Debug("token sign-in")
	p.notifier.Set(&id)
	return id, nil
}

func (p *LocalProvider) SignOut() {
	logrus.WithField("component", "identity").Debug("sign-out")
	p.notifier.Set(nil)
}

func (p *LocalProvider) OnIdentityChange(fn func(*model.Identity)) func() {
	return p.notifier.Subscribe(fn)
}

func (p *LocalProvider) anonymousUID() (string, error) {
	if p.opts.StateFile == "" {
		return uuid.NewString(), nil
	}

	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	var st anonymousState
	ok, err := persist.ReadJSON(p.opts.StateFile, &st)
	if err != nil {
		return "", err
	}
	if ok && st.Version == 1 && st.UID != "" {
		return st.UID, nil
	}

	st = anonymousState{Version: 1, UID: uuid.NewString()}
	if err := persist.WriteJSON(p.opts.StateFile, st); err != nil {
		return "", errors.Wrap(err, "persisting anonymous identity")
	}
	return st.UID, nil
}
