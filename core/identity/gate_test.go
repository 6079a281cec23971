package identity_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"

	"github.com/jrazmi/lexprep/core/identity"
	"github.com/jrazmi/lexprep/sdk/logger"
)

type stubAuth struct {
	ident     identity.Identity
	cached    bool
	signInErr error
	signOutErr error
}

func (s *stubAuth) SignIn(ctx context.Context) (identity.Identity, error) {
	if s.signInErr != nil {
		return identity.Identity{}, s.signInErr
	}
	return s.ident, nil
}

func (s *stubAuth) SignOut(ctx context.Context) error {
	return s.signOutErr
}

func (s *stubAuth) Current(ctx context.Context) (identity.Identity, bool, error) {
	return s.ident, s.cached, nil
}

func TestGateSignInAndOut(t *testing.T) {
	is := is.New(t)

	auth := &stubAuth{ident: identity.Identity{UID: "u1", Email: "a@b.c"}}
	gate := identity.NewGate(logger.NewDiscard(), auth)

	var changes []*identity.Identity
	gate.OnChange(func(ident *identity.Identity) {
		changes = append(changes, ident)
	})

	gate.Restore(context.Background())
	is.True(!gate.Loading())
	is.Equal(gate.Identity(), nil) // nothing cached

	is.NoErr(gate.SignIn(context.Background()))
	is.True(gate.Identity() != nil)
	is.Equal(gate.Identity().UID, "u1")
	is.Equal(gate.Err(), "")

	is.NoErr(gate.SignOut(context.Background()))
	is.Equal(gate.Identity(), nil)

	is.Equal(len(changes), 2)
	is.True(changes[0] != nil)
	is.Equal(changes[1], nil)
}

func TestGateRestoresCachedSession(t *testing.T) {
	is := is.New(t)

	auth := &stubAuth{ident: identity.Identity{UID: "u2"}, cached: true}
	gate := identity.NewGate(logger.NewDiscard(), auth)

	is.True(gate.Loading()) // initial check pending
	gate.Restore(context.Background())
	is.True(!gate.Loading())
	is.True(gate.Identity() != nil)
	is.Equal(gate.Identity().UID, "u2")
}

func TestGateErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"canceled", fmt.Errorf("provider: %w", identity.ErrCanceled), "Sign-in was cancelled. Please try again."},
		{"blocked", identity.ErrBlocked, "Sign-in was blocked. Please allow the browser flow and try again."},
		{"network", fmt.Errorf("dial: %w", identity.ErrNetwork), "Network error. Please check your connection and try again."},
		{"unknown", errors.New("weird"), "Failed to sign in. Please try again."},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is := is.New(t)

			gate := identity.NewGate(logger.NewDiscard(), &stubAuth{signInErr: c.err})
			err := gate.SignIn(context.Background())
			is.True(err != nil)
			is.Equal(gate.Err(), c.want)
			is.Equal(gate.Identity(), nil)

			gate.ClearErr()
			is.Equal(gate.Err(), "")
		})
	}
}
