package gmail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"

	"g2gmail/internal/model"
)

// TokenStore persists the OAuth token between runs. Load returns
// model.ErrNotAuthenticated when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
	Delete(ctx context.Context) error
}

// LoadConfig reads the OAuth client credentials downloaded from the Google
// Cloud console. Scopes: gmail.readonly and gmail.modify (for mark-as-read).
func LoadConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(b,
		gmailv1.GmailReadonlyScope,
		gmailv1.GmailModifyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}
	return cfg, nil
}

// Authenticator owns the OAuth token: it answers whether we are signed in,
// hands out an HTTP client that persists refreshed tokens, and runs the
// interactive login.
type Authenticator struct {
	cfg   *oauth2.Config
	store TokenStore
	log   *slog.Logger

	mu  sync.Mutex
	tok *oauth2.Token
}

func NewAuthenticator(cfg *oauth2.Config, store TokenStore, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{cfg: cfg, store: store, log: log}
}

// IsAuthenticated reports whether a usable token is stored.
func (a *Authenticator) IsAuthenticated(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, err := a.loadLocked(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrNotAuthenticated) {
			a.log.Warn("load token failed", "err", err)
		}
		return false
	}
	return tok.RefreshToken != "" || tok.Valid()
}

func (a *Authenticator) loadLocked(ctx context.Context) (*oauth2.Token, error) {
	if a.tok != nil {
		return a.tok, nil
	}
	tok, err := a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.tok = tok
	return tok, nil
}

// Refresh forces a refresh-token grant and persists the result.
func (a *Authenticator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, err := a.loadLocked(ctx)
	if err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		return &model.AuthError{Source: "gmail", Message: "no refresh token; run login again"}
	}
	fresh, err := a.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		return &model.AuthError{Source: "gmail", Message: "refresh token: " + err.Error()}
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	a.log.Info("oauth token refreshed", "expiry", fresh.Expiry)
	return a.saveLocked(ctx, fresh)
}

func (a *Authenticator) saveLocked(ctx context.Context, tok *oauth2.Token) error {
	a.tok = tok
	if err := a.store.Save(ctx, tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Logout removes the stored token.
func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tok = nil
	return a.store.Delete(ctx)
}

// HTTPClient returns a client that authorizes requests with the current
// token, refreshing and persisting it as needed. Every request reads the
// token through the Authenticator, so a forced Refresh applies to the next
// request.
func (a *Authenticator) HTTPClient(ctx context.Context) *http.Client {
	return &http.Client{Transport: &oauth2.Transport{Source: &persistingSource{ctx: ctx, a: a}}}
}

type persistingSource struct {
	ctx context.Context
	a   *Authenticator
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	a := s.a
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, err := a.loadLocked(s.ctx)
	if err != nil {
		return nil, err
	}
	if tok.Valid() {
		return tok, nil
	}
	fresh, err := a.cfg.TokenSource(s.ctx, tok).Token()
	if err != nil {
		return nil, err
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := a.saveLocked(s.ctx, fresh); err != nil {
			a.log.Warn("persist refreshed token failed", "err", err)
		}
	}
	return fresh, nil
}

// Login runs the authorization code flow with PKCE. A loopback HTTP server
// captures the redirect; if it does not arrive in time, the code (or the full
// redirect URL) can be pasted into in.
func (a *Authenticator) Login(ctx context.Context, in io.Reader, out io.Writer) error {
	tok, err := a.tokenFromWeb(ctx, in, out)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveLocked(ctx, tok)
}

func (a *Authenticator) tokenFromWeb(ctx context.Context, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	cfg := *a.cfg
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	resCh := make(chan result, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err == nil {
		port := ln.Addr().(*net.TCPAddr).Port
		cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", port)

		mux := http.NewServeMux()
		srv := &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
			Handler:           mux,
		}
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "State mismatch", http.StatusBadRequest)
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case resCh <- result{code: code}:
			default:
			}
			go func() { _ = srv.Shutdown(context.Background()) }()
		})
		go func() { _ = srv.Serve(ln) }()
		defer func() { _ = srv.Shutdown(context.Background()) }()

		authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))
		fmt.Fprintln(out, "A browser window will open. If it does not, copy this URL:")
		fmt.Fprintln(out, authURL)
		if err := OpenBrowser(authURL); err != nil {
			a.log.Debug("open browser failed", "err", err)
		}
		fmt.Fprintf(out, "Waiting for redirect on %s …\n", cfg.RedirectURL)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-resCh:
			if r.err != nil {
				return nil, r.err
			}
			return exchange(ctx, &cfg, r.code, verifier, out)
		case <-time.After(120 * time.Second):
			fmt.Fprintln(out, "Timeout waiting for redirect; falling back to manual paste.")
		}
	} else {
		a.log.Warn("loopback listener unavailable", "err", err)
		cfg.RedirectURL = "http://127.0.0.1/"
	}

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintln(out, "Open this URL in your browser to authorize g2gmail:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(out, "> ")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}
	code, err := codeFromInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(ctx, &cfg, code, verifier, out)
}

// codeFromInput accepts either a bare code or a redirect URL carrying one.
func codeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	c := u.Query().Get("code")
	if c == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return c, nil
}

func exchange(ctx context.Context, cfg *oauth2.Config, code, verifier string, out io.Writer) (*oauth2.Token, error) {
	fmt.Fprintln(out, "Exchanging code for token…")
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(code), oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	fmt.Fprintln(out, "Authentication successful.")
	return tok, nil
}
