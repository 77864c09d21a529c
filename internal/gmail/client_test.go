package gmail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"g2gmail/internal/model"
)

type memStore struct {
	mu    sync.Mutex
	tok   *oauth2.Token
	saves int
}

func (m *memStore) Load(context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, model.ErrNotAuthenticated
	}
	t := *m.tok
	return &t, nil
}

func (m *memStore) Save(_ context.Context, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *tok
	m.tok = &t
	m.saves++
	return nil
}

func (m *memStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}

func newTokenServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	n := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		n++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"fresh-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testAuthenticator(store TokenStore, tokenURL string) *Authenticator {
	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	return NewAuthenticator(cfg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthenticator_IsAuthenticated(t *testing.T) {
	store := &memStore{}
	a := testAuthenticator(store, "http://unused")
	if a.IsAuthenticated(context.Background()) {
		t.Fatal("authenticated with empty store")
	}

	store.tok = &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour), RefreshToken: "r"}
	if !a.IsAuthenticated(context.Background()) {
		t.Fatal("refresh token should count as authenticated")
	}

	if err := a.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if a.IsAuthenticated(context.Background()) {
		t.Fatal("authenticated after logout")
	}
}

func TestAuthenticator_RefreshPersists(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK)
	store := &memStore{tok: &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}}
	a := testAuthenticator(store, srv.URL)

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if store.tok.AccessToken != "fresh-1" || store.tok.RefreshToken != "r" {
		t.Fatalf("stored = %+v", store.tok)
	}
}

func TestAuthenticator_RefreshFailureIsAuthError(t *testing.T) {
	srv := newTokenServer(t, http.StatusBadRequest)
	a := testAuthenticator(&memStore{tok: &oauth2.Token{RefreshToken: "r"}}, srv.URL)
	if err := a.Refresh(context.Background()); !model.IsAuthError(err) {
		t.Fatalf("err = %v; want AuthError", err)
	}

	a = testAuthenticator(&memStore{tok: &oauth2.Token{AccessToken: "x"}}, srv.URL)
	if err := a.Refresh(context.Background()); !model.IsAuthError(err) {
		t.Fatalf("no refresh token: err = %v", err)
	}
}

func TestPersistingSource_SavesRefreshedToken(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK)
	store := &memStore{tok: &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(-time.Minute)}}
	a := testAuthenticator(store, srv.URL)

	src := &persistingSource{ctx: context.Background(), a: a}
	tok, err := src.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "fresh-1" || store.saves != 1 {
		t.Fatalf("tok=%s saves=%d", tok.AccessToken, store.saves)
	}

	if tok, _ := src.Token(); tok.AccessToken != "fresh-1" || store.saves != 1 {
		t.Fatalf("valid token refreshed again: %s saves=%d", tok.AccessToken, store.saves)
	}
}

func TestNewClient_RetryUsesRefreshedToken(t *testing.T) {
	tokenSrv := newTokenServer(t, http.StatusOK)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer fresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":401,"message":"revoked"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"labels":[]}`)
	}))
	t.Cleanup(api.Close)

	store := &memStore{tok: &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}}
	a := testAuthenticator(store, tokenSrv.URL)
	ctx := context.Background()
	c, err := NewClient(ctx, a, slog.New(slog.NewTextHandler(io.Discard, nil)), option.WithEndpoint(api.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.ListLabels(ctx); !model.IsAuthError(err) {
		t.Fatalf("stale token: err = %v; want AuthError", err)
	}
	if err := a.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := c.ListLabels(ctx); err != nil {
		t.Fatalf("after refresh: %v", err)
	}
}
