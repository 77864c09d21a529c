package mbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `From alice@example.com Mon Mar  4 09:00:00 2024
From: Alice <alice@example.com>
To: me@example.com
Subject: first
Date: Mon, 4 Mar 2024 09:00:00 +0000
Message-ID: <1@example.com>

one

From bob@example.com Tue Mar  5 09:00:00 2024
From: Bob <bob@example.com>
To: me@example.com
Subject: second
Date: Tue, 5 Mar 2024 09:00:00 +0000
Message-ID: <2@example.com>
Content-Type: text/html; charset=utf-8

<p>two</p>

From carol@example.com Wed Mar  6 09:00:00 2024
From: carol@example.com
To: me@example.com
Subject: third
Date: Wed, 6 Mar 2024 09:00:00 +0000
Message-ID: <3@example.com>

three
`

func newSample(t *testing.T) *Source {
	t.Helper()
	s := NewFromBytes([]byte(sample), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSource_Labels(t *testing.T) {
	s := newSample(t)
	labels, err := s.ListLabels(context.Background())
	if err != nil {
		t.Fatalf("ListLabels: %v", err)
	}
	if len(labels) != 1 || labels[0].ID != "INBOX" || *labels[0].MessagesTotal != 3 || *labels[0].MessagesUnread != 3 {
		t.Fatalf("labels = %+v", labels)
	}
	if !s.IsAuthenticated(context.Background()) || s.Refresh(context.Background()) != nil {
		t.Fatal("mbox should always be authenticated")
	}
}

func TestSource_PagesNewestFirst(t *testing.T) {
	s := newSample(t)
	ctx := context.Background()

	page, err := s.ListMessages(ctx, "INBOX", 2, "")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	var subjects []string
	for _, m := range page.Messages {
		subjects = append(subjects, m.Subject)
	}
	if strings.Join(subjects, ",") != "third,second" || page.NextPageToken != "2" {
		t.Fatalf("page 1 = %v token=%q", subjects, page.NextPageToken)
	}
	if page.Messages[0].From != "carol@example.com" || page.Messages[1].From != "Bob" || page.Messages[1].Date != "3/5" {
		t.Fatalf("headers = %+v", page.Messages)
	}

	page, err = s.ListMessages(ctx, "INBOX", 2, page.NextPageToken)
	if err != nil || len(page.Messages) != 1 || page.Messages[0].Subject != "first" || page.NextPageToken != "" {
		t.Fatalf("page 2 = %+v, %v", page, err)
	}

	if page, _ := s.ListMessages(ctx, "SENT", 2, ""); len(page.Messages) != 0 {
		t.Fatalf("unknown label returned %+v", page)
	}
	if _, err := s.ListMessages(ctx, "INBOX", 2, "x"); err == nil {
		t.Fatal("expected bad token error")
	}
}

func TestSource_GetAndMarkRead(t *testing.T) {
	s := newSample(t)
	ctx := context.Background()
	page, _ := s.ListMessages(ctx, "INBOX", 10, "")
	second := page.Messages[1]

	raw, err := s.GetMessage(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if raw.Subject != "second" || !strings.Contains(raw.HTML, "<p>two</p>") {
		t.Fatalf("raw = %+v", raw)
	}

	if err := s.MarkAsRead(ctx, second.ID); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	page, _ = s.ListMessages(ctx, "INBOX", 10, "")
	if page.Messages[1].Unread || !page.Messages[0].Unread {
		t.Fatalf("unread flags = %+v", page.Messages)
	}
	if _, err := s.GetMessage(ctx, "99"); err == nil {
		t.Fatal("expected not found")
	}
}

func TestNew_ReadsFile(t *testing.T) {
	if _, err := New("  ", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
	path := filepath.Join(t.TempDir(), "inbox.mbox")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	page, err := s.ListMessages(context.Background(), "INBOX", 0, "")
	if err != nil || len(page.Messages) != 3 {
		t.Fatalf("page = %+v, %v", page, err)
	}

	missing, _ := New(filepath.Join(t.TempDir(), "nope"), nil)
	if _, err := missing.ListLabels(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
}
