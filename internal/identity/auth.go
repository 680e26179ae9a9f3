package identity

import (
	"context"
	"log/slog"
	"sync"
)

// Signer is the account service a client signs in against. Directory
// implements it.
type Signer interface {
	SignIn(ctx context.Context, method Method, creds Credentials) (Identity, string, error)
	SignOut(ctx context.Context, token string) error
}

// Auth tracks the one identity a single client (the MCP tool server, a CLI
// run) is acting as.
type Auth struct {
	signer Signer
	logger *slog.Logger

	mu        sync.Mutex
	current   *Identity
	token     string
	listeners map[int]func(prev, next *Identity)
	nextID    int
}

// NewAuth returns a client starting as initial, or signed out when nil.
func NewAuth(signer Signer, initial *Identity, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Auth{signer: signer, logger: logger, listeners: make(map[int]func(prev, next *Identity))}
	if initial != nil {
		ident := *initial
		a.current = &ident
	}
	return a
}

// CurrentIdentity returns the signed-in identity.
func (a *Auth) CurrentIdentity() (Identity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Identity{}, false
	}
	return *a.current, true
}

// OnIdentityChange registers fn to run after every sign-in or sign-out.
// prev or next is nil when there was, or now is, no identity.
func (a *Auth) OnIdentityChange(fn func(prev, next *Identity)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// SignIn replaces the current identity. The previous session, if any, is
// signed out first.
func (a *Auth) SignIn(ctx context.Context, method Method, creds Credentials) (Identity, error) {
	ident, token, err := a.signer.SignIn(ctx, method, creds)
	if err != nil {
		return Identity{}, err
	}

	a.mu.Lock()
	prev, prevToken := a.current, a.token
	a.current, a.token = &ident, token
	a.mu.Unlock()

	if prevToken != "" && prevToken != token {
		if err := a.signer.SignOut(ctx, prevToken); err != nil {
			a.logger.Warn("identity: revoke previous session failed",
				slog.String("owner", prev.ID),
				slog.String("error", err.Error()))
		}
	}
	a.changed(prev, &ident)
	return ident, nil
}

// SignOut drops the current identity.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	prev, token := a.current, a.token
	a.current, a.token = nil, ""
	a.mu.Unlock()

	if prev == nil {
		return nil
	}
	var err error
	if token != "" {
		err = a.signer.SignOut(ctx, token)
	}
	a.changed(prev, nil)
	return err
}

func (a *Auth) changed(prev, next *Identity) {
	a.mu.Lock()
	fns := make([]func(prev, next *Identity), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(prev, next)
	}
}
