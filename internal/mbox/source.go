// Package mbox serves a local mbox file as a single-label mailbox.
package mbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"g2gmail/internal/mailparse"
	"g2gmail/internal/model"
)

const inboxID = "INBOX"

type entry struct {
	header model.MessageHeader
	raw    []byte
}

// Source reads the whole file on first use and keeps it in memory. Read
// state lives only in memory.
type Source struct {
	path string
	log  *slog.Logger
	now  func() time.Time
	open func() (io.ReadCloser, error)

	mu      sync.Mutex
	loaded  bool
	entries []entry // newest first
	byID    map[string]int
}

func New(path string, log *slog.Logger) (*Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		path: path,
		log:  log,
		now:  time.Now,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NewFromBytes serves an mbox held in memory.
func NewFromBytes(data []byte, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		path: "<memory>",
		log:  log,
		now:  time.Now,
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func (s *Source) IsAuthenticated(context.Context) bool { return true }
func (s *Source) Refresh(context.Context) error        { return nil }

func (s *Source) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	f, err := s.open()
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer f.Close()

	reader := mboxlib.NewReader(f)
	now := s.now()
	var entries []entry
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}
		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("message %d read: %w", idx, err)
		}
		id := strconv.Itoa(idx)
		h, err := mailparse.Summary(id, raw, now)
		if err != nil {
			s.log.Warn("skipping unparsable message", "path", s.path, "index", idx, "err", err)
			continue
		}
		h.Unread = true
		entries = append(entries, entry{header: h, raw: raw})
	}

	// mbox files append; newest is last.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	s.entries = entries
	s.byID = make(map[string]int, len(entries))
	for i, e := range entries {
		s.byID[e.header.ID] = i
	}
	s.loaded = true
	s.log.Info("mbox loaded", "path", s.path, "messages", len(entries))
	return nil
}

func (s *Source) ListLabels(ctx context.Context) ([]model.Label, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	total, unread := len(s.entries), 0
	for _, e := range s.entries {
		if e.header.Unread {
			unread++
		}
	}
	return []model.Label{{
		ID:             inboxID,
		Name:           inboxID,
		Type:           model.LabelTypeSystem,
		MessagesTotal:  &total,
		MessagesUnread: &unread,
	}}, nil
}

// ListMessages pages through the file newest first. The token is the offset
// of the next page.
func (s *Source) ListMessages(ctx context.Context, labelID string, pageSize int, pageToken string) (model.MessagePage, error) {
	if labelID != inboxID {
		return model.MessagePage{}, nil
	}
	if err := s.load(ctx); err != nil {
		return model.MessagePage{}, err
	}
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return model.MessagePage{}, fmt.Errorf("bad page token %q", pageToken)
		}
		offset = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.entries) {
		return model.MessagePage{}, nil
	}
	end := len(s.entries)
	if pageSize > 0 {
		end = min(offset+pageSize, len(s.entries))
	}
	page := model.MessagePage{Messages: make([]model.MessageHeader, 0, end-offset)}
	for _, e := range s.entries[offset:end] {
		page.Messages = append(page.Messages, e.header)
	}
	if end < len(s.entries) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (s *Source) GetMessage(ctx context.Context, id string) (*model.RawMessage, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	i, ok := s.byID[id]
	var raw []byte
	if ok {
		raw = s.entries[i].raw
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return mailparse.Parse(id, raw), nil
}

func (s *Source) MarkAsRead(ctx context.Context, id string) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("message %s not found", id)
	}
	s.entries[i].header.Unread = false
	return nil
}
