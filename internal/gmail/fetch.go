package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"g2gmail/internal/model"
	"g2gmail/internal/util"
)

const (
	user        = "me"
	unreadLabel = "UNREAD"
	workerCount = 8
)

// Client is the Gmail mailbox.
type Client struct {
	svc *gmailv1.Service
	log *slog.Logger
	now func() time.Time
}

// NewClient builds a Client that authorizes through auth.
func NewClient(ctx context.Context, auth *Authenticator, log *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(auth.HTTPClient(ctx))}, opts...)
	return NewClientWithOptions(ctx, log, opts...)
}

// NewClientWithOptions builds a Client from raw API options.
func NewClientWithOptions(ctx context.Context, log *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{svc: svc, log: log, now: time.Now}, nil
}

// ListLabels returns every label with its counts. Counts come from one
// Labels.Get per label; a failed lookup leaves them nil.
func (c *Client) ListLabels(ctx context.Context) ([]model.Label, error) {
	resp, err := c.svc.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("list labels", err)
	}

	labels := make([]model.Label, len(resp.Labels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)
	for i, l := range resp.Labels {
		labels[i] = model.Label{ID: l.Id, Name: l.Name, Type: labelType(l.Type)}
		g.Go(func() error {
			full, err := c.svc.Users.Labels.Get(user, l.Id).Context(gctx).Do()
			if err != nil {
				c.log.Debug("label counts unavailable", "label", l.Id, "err", err)
				return nil
			}
			total, unread := int(full.MessagesTotal), int(full.MessagesUnread)
			labels[i].MessagesTotal = &total
			labels[i].MessagesUnread = &unread
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

func labelType(t string) model.LabelType {
	if strings.EqualFold(t, "user") {
		return model.LabelTypeUser
	}
	return model.LabelTypeSystem
}

// ListMessages returns one page of headers for a label, newest first as
// Gmail orders them. Metadata is fetched concurrently; list order is kept.
func (c *Client) ListMessages(ctx context.Context, labelID string, pageSize int, pageToken string) (model.MessagePage, error) {
	call := c.svc.Users.Messages.List(user).
		LabelIds(labelID).
		MaxResults(int64(pageSize)).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return model.MessagePage{}, wrapErr("list messages", err)
	}

	type result struct {
		header model.MessageHeader
		err    error
	}
	results := make([]result, len(resp.Messages))
	jobs := make(chan int)

	var wg sync.WaitGroup
	n := min(workerCount, len(resp.Messages))
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i].err = err
					continue
				}
				msg, err := c.svc.Users.Messages.Get(user, resp.Messages[i].Id).
					Format("metadata").
					MetadataHeaders("From", "Subject", "Date").
					Context(ctx).
					Do()
				if err != nil {
					results[i].err = err
					continue
				}
				results[i].header = headerFromMessage(msg, c.now())
			}
		}()
	}
	for i := range resp.Messages {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	page := model.MessagePage{NextPageToken: resp.NextPageToken}
	for i, r := range results {
		if r.err != nil {
			if isAuthFailure(r.err) || errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded) {
				return model.MessagePage{}, wrapErr("get message metadata", r.err)
			}
			c.log.Warn("skipping message", "id", resp.Messages[i].Id, "err", r.err)
			continue
		}
		page.Messages = append(page.Messages, r.header)
	}
	return page, nil
}

func headerFromMessage(msg *gmailv1.Message, now time.Time) model.MessageHeader {
	h := model.MessageHeader{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	var from, date string
	if msg.Payload != nil {
		for _, hd := range msg.Payload.Headers {
			switch strings.ToLower(hd.Name) {
			case "from":
				from = hd.Value
			case "subject":
				h.Subject = hd.Value
			case "date":
				date = hd.Value
			}
		}
	}
	h.From = util.SenderName(from)
	h.Date = util.ShortDate(receivedAt(msg.InternalDate, date), now)
	for _, id := range msg.LabelIds {
		if id == unreadLabel {
			h.Unread = true
			break
		}
	}
	return h
}

// receivedAt prefers Gmail's internal timestamp and falls back to the Date header.
func receivedAt(internalMillis int64, dateHeader string) time.Time {
	if internalMillis > 0 {
		return time.UnixMilli(internalMillis)
	}
	return parseDate(dateHeader)
}

func parseDate(h string) time.Time {
	h = strings.TrimSpace(h)
	if h == "" {
		return time.Time{}
	}
	// Common formats seen in the Date header.
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC850,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
	}
	// Drop a trailing zone comment such as "(UTC)".
	if i := strings.Index(h, " ("); i > 0 {
		h = h[:i]
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, h); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isAuthFailure(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return true
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return true
	}
	return errors.Is(err, model.ErrNotAuthenticated)
}

// wrapErr adds op context and marks authorization failures as model.AuthError.
func wrapErr(op string, err error) error {
	if isAuthFailure(err) {
		return fmt.Errorf("%s: %w", op, &model.AuthError{Source: "gmail", Message: err.Error()})
	}
	return fmt.Errorf("%s: %w", op, err)
}
