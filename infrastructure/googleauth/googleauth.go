// Package googleauth implements the identity.Authenticator port against
// Google's OAuth2 endpoints. The obtained token is cached on disk so the
// session survives restarts; sign-out deletes the cache.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jrazmi/lexprep/core/identity"
	"github.com/jrazmi/lexprep/sdk/environment"
	"github.com/jrazmi/lexprep/sdk/logger"
)

const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var scopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Options represents the exportable authenticator configuration.
type Options struct {
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" default:"credentials.json"`
	TokenFile       string `env:"GOOGLE_TOKEN_FILE" default:"token.json"`
	CallbackPort    string `env:"GOOGLE_CALLBACK_PORT" default:"6789"`
}

type Authenticator struct {
	log       *logger.Logger
	config    *oauth2.Config
	tokenFile string
	port      string
}

// NewFromEnv builds an authenticator from environment variables under
// the given prefix.
func NewFromEnv(prefix string, log *logger.Logger) (*Authenticator, error) {
	var opts Options
	if err := environment.ParseEnvTags(prefix, &opts); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	return New(log, opts)
}

func New(log *logger.Logger, opts Options) (*Authenticator, error) {
	b, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client credentials %s: %w", opts.CredentialsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client credentials: %w", err)
	}
	config.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", opts.CallbackPort)

	return &Authenticator{
		log:       log,
		config:    config,
		tokenFile: opts.TokenFile,
		port:      opts.CallbackPort,
	}, nil
}

// SignIn runs the browser-based authorization flow: a local listener
// captures the redirect, the code is exchanged for a token, and the
// token is cached on disk.
func (a *Authenticator) SignIn(ctx context.Context) (identity.Identity, error) {
	listener, err := net.Listen("tcp", "localhost:"+a.port)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("callback listener on port %s: %w", a.port, identity.ErrBlocked)
	}
	defer listener.Close()

	state, authURL := a.authURL()
	a.log.Info("opening browser for sign-in", "url", authURL)
	openBrowser(authURL)

	code, err := a.waitForCode(ctx, listener, state)
	if err != nil {
		return identity.Identity{}, err
	}

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return identity.Identity{}, classifyNetErr(fmt.Errorf("exchanging auth code: %w", err))
	}

	if err := a.saveToken(token); err != nil {
		a.log.Error("caching token failed", "error", err)
	}

	return a.fetchIdentity(ctx, token)
}

// SignOut discards the cached token.
func (a *Authenticator) SignOut(ctx context.Context) error {
	if err := os.Remove(a.tokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cached token: %w", err)
	}
	return nil
}

// Current restores the identity from a cached token, refreshing it if
// needed. ok is false when no usable session exists.
func (a *Authenticator) Current(ctx context.Context) (identity.Identity, bool, error) {
	token, err := a.loadToken()
	if err != nil {
		return identity.Identity{}, false, nil
	}

	ident, err := a.fetchIdentity(ctx, token)
	if err != nil {
		// A stale or revoked token means guest mode, not a hard failure.
		a.log.Warn("cached session unusable", "error", err)
		return identity.Identity{}, false, nil
	}
	return ident, true, nil
}

func (a *Authenticator) authURL() (state, authURL string) {
	state = fmt.Sprintf("lexprep-%d", os.Getpid())
	return state, a.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// waitForCode serves a single callback request and returns the auth code.
func (a *Authenticator) waitForCode(ctx context.Context, listener net.Listener, state string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			// The user declined the consent screen.
			fmt.Fprintln(w, "Sign-in canceled. You can close this window.")
			results <- result{err: fmt.Errorf("consent declined: %w", identity.ErrCanceled)}
		case q.Get("state") != state:
			fmt.Fprintln(w, "Sign-in failed. You can close this window.")
			results <- result{err: errors.New("state mismatch in oauth callback")}
		default:
			fmt.Fprintln(w, "Signed in. You can close this window and return to lexprep.")
			results <- result{code: q.Get("code")}
		}
	})}
	go server.Serve(listener)
	defer server.Close()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for callback: %w", identity.ErrCanceled)
	case r := <-results:
		return r.code, r.err
	}
}

func (a *Authenticator) fetchIdentity(ctx context.Context, token *oauth2.Token) (identity.Identity, error) {
	client := a.config.Client(ctx, token)
	resp, err := client.Get(userinfoURL)
	if err != nil {
		return identity.Identity{}, classifyNetErr(fmt.Errorf("fetching user info: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return identity.Identity{}, fmt.Errorf("user info status %d", resp.StatusCode)
	}

	var info struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return identity.Identity{}, fmt.Errorf("decoding user info: %w", err)
	}

	return identity.Identity{
		UID:         info.ID,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
		Email:       info.Email,
	}, nil
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	f, err := os.Open(a.tokenFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decoding cached token: %w", err)
	}
	return token, nil
}

func (a *Authenticator) saveToken(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenFile), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(a.tokenFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// classifyNetErr wraps transport-level failures with identity.ErrNetwork
// so the gate can surface the right message.
func classifyNetErr(err error) error {
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return fmt.Errorf("%v: %w", err, identity.ErrNetwork)
	}
	return err
}

func openBrowser(u string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}
	if err := cmd.Start(); err == nil {
		go cmd.Wait()
	}
}
