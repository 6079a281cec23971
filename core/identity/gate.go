// Package identity tracks the signed-in user principal and gates which
// backend the task service uses. The external auth provider is consumed
// through the Authenticator interface only.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrazmi/lexprep/sdk/logger"
)

// Sign-in failure taxonomy. Authenticator implementations wrap their
// provider errors so these classify with errors.Is.
var (
	ErrCanceled = errors.New("sign-in canceled")
	ErrBlocked  = errors.New("sign-in blocked")
	ErrNetwork  = errors.New("network failure")
)

// Identity is the external user principal. The application only reads it.
type Identity struct {
	UID         string
	DisplayName string
	PhotoURL    string
	Email       string
}

// Authenticator is the external auth collaborator.
type Authenticator interface {
	// SignIn runs the interactive sign-in round trip.
	SignIn(ctx context.Context) (Identity, error)
	// SignOut discards any cached session.
	SignOut(ctx context.Context) error
	// Current returns the cached identity from a previous session, if any.
	Current(ctx context.Context) (Identity, bool, error)
}

// Listener is notified whenever the signed-in identity changes. The task
// service re-evaluates its backend on every notification.
type Listener func(ident *Identity)

// Gate surfaces the identity as present-or-absent plus a loading flag
// for the initial session check, and a displayable error message for
// failed sign-ins.
type Gate struct {
	log  *logger.Logger
	auth Authenticator

	mu        sync.Mutex
	ident     *Identity
	loading   bool
	errMsg    string
	listeners []Listener
}

func NewGate(log *logger.Logger, auth Authenticator) *Gate {
	return &Gate{
		log:     log,
		auth:    auth,
		loading: true,
	}
}

// Restore performs the initial session check, loading any cached
// identity. It clears the loading flag regardless of the outcome.
func (g *Gate) Restore(ctx context.Context) {
	ident, ok, err := g.auth.Current(ctx)

	g.mu.Lock()
	g.loading = false
	if err != nil {
		g.errMsg = "Authentication error occurred"
		g.mu.Unlock()
		g.log.Error("session restore failed", "error", err)
		return
	}
	if ok {
		g.ident = &ident
	}
	g.mu.Unlock()

	if ok {
		g.log.Info("restored session", "email", ident.Email)
		g.notify(&ident)
	}
}

// SignIn runs the interactive sign-in flow. Failures are classified into
// a short user-facing message and also returned to the caller.
func (g *Gate) SignIn(ctx context.Context) error {
	g.mu.Lock()
	g.errMsg = ""
	g.loading = true
	g.mu.Unlock()

	ident, err := g.auth.SignIn(ctx)

	g.mu.Lock()
	g.loading = false
	if err != nil {
		g.errMsg = signInMessage(err)
		g.mu.Unlock()
		g.log.Error("sign-in failed", "error", err)
		return fmt.Errorf("sign in: %w", err)
	}
	g.ident = &ident
	g.mu.Unlock()

	g.log.Info("signed in", "email", ident.Email)
	g.notify(&ident)
	return nil
}

// SignOut discards the session and reverts to guest identity.
func (g *Gate) SignOut(ctx context.Context) error {
	g.mu.Lock()
	g.errMsg = ""
	g.mu.Unlock()

	if err := g.auth.SignOut(ctx); err != nil {
		g.mu.Lock()
		g.errMsg = "Failed to sign out"
		g.mu.Unlock()
		g.log.Error("sign-out failed", "error", err)
		return fmt.Errorf("sign out: %w", err)
	}

	g.mu.Lock()
	g.ident = nil
	g.mu.Unlock()

	g.log.Info("signed out")
	g.notify(nil)
	return nil
}

// Identity returns the current identity, or nil in guest mode.
func (g *Gate) Identity() *Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ident
}

// Loading reports whether a session check or sign-in is in flight.
func (g *Gate) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// Err returns the displayable error message from the last failed
// operation, or "".
func (g *Gate) Err() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errMsg
}

// ClearErr dismisses the displayed error message.
func (g *Gate) ClearErr() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errMsg = ""
}

// OnChange registers a listener for identity changes.
func (g *Gate) OnChange(fn Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gate) notify(ident *Identity) {
	g.mu.Lock()
	listeners := make([]Listener, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
}

func signInMessage(err error) string {
	switch {
	case errors.Is(err, ErrCanceled):
		return "Sign-in was cancelled. Please try again."
	case errors.Is(err, ErrBlocked):
		return "Sign-in was blocked. Please allow the browser flow and try again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection and try again."
	default:
		return "Failed to sign in. Please try again."
	}
}
