package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"g2gmail/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMeta(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	v, err := s.GetMeta(ctx, "k")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if v != "" {
		t.Fatalf("expected empty, got %q", v)
	}

	if err := s.SetMeta(ctx, "k", "one"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := s.SetMeta(ctx, "k", "two"); err != nil {
		t.Fatalf("SetMeta overwrite: %v", err)
	}
	v, _ = s.GetMeta(ctx, "k")
	if v != "two" {
		t.Fatalf("expected two, got %q", v)
	}

	if err := s.DeleteMeta(ctx, "k"); err != nil {
		t.Fatalf("DeleteMeta: %v", err)
	}
	if err := s.DeleteMeta(ctx, "k"); err != nil {
		t.Fatalf("DeleteMeta missing: %v", err)
	}
	v, _ = s.GetMeta(ctx, "k")
	if v != "" {
		t.Fatalf("expected empty after delete, got %q", v)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, model.ErrNotAuthenticated) {
		t.Fatalf("Load on empty store: %v", err)
	}

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry}
	if err := s.Save(ctx, tok); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" || !got.Expiry.Equal(expiry) {
		t.Fatalf("loaded %+v", got)
	}

	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, model.ErrNotAuthenticated) {
		t.Fatalf("Load after delete: %v", err)
	}
}

func TestReopenKeepsToken(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "g2gmail.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Save(ctx, &oauth2.Token{AccessToken: "persisted"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Load(ctx)
	if err != nil || got.AccessToken != "persisted" {
		t.Fatalf("Load after reopen = %+v, %v", got, err)
	}
}
