// Package firebase signs the note session in against a Firebase project.
//
// Anonymous and custom-token sign-in go through the Identity Toolkit API with
// the project's web API key. The ID token returned for a custom token is
// verified with the Admin SDK so the uid comes from a checked token rather
// than from the request that carried it.
package firebase

import (
	"context"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"memory-assistant/internal/identity"
	"memory-assistant/internal/model"
)

type accountAPI interface {
	SignUpAnonymous(ctx context.Context) (uid string, err error)
	ExchangeCustomToken(ctx context.Context, token string) (idToken string, err error)
}

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type Provider struct {
	accounts accountAPI
	verifier tokenVerifier
	notifier identity.Notifier
}

type Options struct {
	APIKey string
	App    *firebase.App
}

func New(ctx context.Context, opts Options) (*Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("firebase identity: missing API key")
	}
	if opts.App == nil {
		return nil, errors.New("firebase identity: missing app")
	}

	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating identity toolkit client")
	}
	authClient, err := opts.App.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting Auth client")
	}

	return newProvider(&toolkitAccounts{svc: svc}, authClient), nil
}

func newProvider(accounts accountAPI, verifier tokenVerifier) *Provider {
	return &Provider{accounts: accounts, verifier: verifier}
}

func (p *Provider) SignInAnonymously(ctx context.Context) (model.Identity, error) {
	uid, err := p.accounts.SignUpAnonymous(ctx)
	if err != nil {
		return model.Identity{}, &identity.Error{Op: identity.OpAnonymous, Code: classify(err), Err: err}
	}
	if uid == "" {
		return model.Identity{}, &identity.Error{Op: identity.OpAnonymous, Code: identity.CodeUnknown, Err: errors.New("empty local id")}
	}

	id := model.Identity{UID: uid, Anonymous: true, Method: model.MethodAnonymous}
	logrus.WithFields(logrus.Fields{"component": "identity", "backend": "firebase", "uid": uid}).Debug("anonymous sign-in")
	p.notifier.Set(&id)
	return id, nil
}

func (p *Provider) SignInWithToken(ctx context.Context, token string) (model.Identity, error) {
	idToken, err := p.accounts.ExchangeCustomToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return model.Identity{}, &identity.Error{Op: identity.OpToken, Code: classify(err), Err: err}
	}

	verified, err := p.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return model.Identity{}, &identity.Error{Op: identity.OpToken, Code: identity.CodeInvalidToken, Err: errors.Wrap(err, "verifying ID token")}
	}

	id := model.Identity{UID: verified.UID, Method: model.MethodToken}
	if verified.Firebase.SignInProvider == "anonymous" {
		id.Anonymous = true
	}
	logrus.WithFields(logrus.Fields{"component": "identity", "backend": "firebase", "uid": id.UID}).Debug("token sign-in")
	p.notifier.Set(&id)
	return id, nil
}

// SignOut forgets the current identity. Firebase has no server-side
// session to end for these credentials.
func (p *Provider) SignOut() {
	p.notifier.Set(nil)
}

func (p *Provider) OnIdentityChange(fn func(*model.Identity)) func() {
	return p.notifier.Subscribe(fn)
}

// classify maps Identity Toolkit error reasons onto identity error codes.
func classify(err error) string {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return identity.CodeUnavailable
		}
		return identity.CodeUnknown
	}

	reason := gerr.Message
	if len(gerr.Errors) > 0 && gerr.Errors[0].Message != "" {
		reason = gerr.Errors[0].Message
	}
	switch {
	case strings.HasPrefix(reason, "ADMIN_ONLY_OPERATION"), strings.HasPrefix(reason, "OPERATION_NOT_ALLOWED"):
		return identity.CodeRestricted
	case strings.HasPrefix(reason, "INVALID_CUSTOM_TOKEN"), strings.HasPrefix(reason, "CREDENTIAL_MISMATCH"), strings.HasPrefix(reason, "TOKEN_EXPIRED"):
		return identity.CodeInvalidToken
	}
	if gerr.Code >= 500 || gerr.Code == 429 {
		return identity.CodeUnavailable
	}
	return identity.CodeUnknown
}

type toolkitAccounts struct {
	svc *identitytoolkit.Service
}

func (a *toolkitAccounts) SignUpAnonymous(ctx context.Context) (string, error) {
	resp, err := a.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.LocalId, nil
}

func (a *toolkitAccounts) ExchangeCustomToken(ctx context.Context, token string) (string, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyCustomTokenRequest{
		Token:             token,
		ReturnSecureToken: true,
	}
	resp, err := a.svc.Relyingparty.VerifyCustomToken(req).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.IdToken, nil
}
