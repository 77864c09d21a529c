// Package imap is a mailbox backed by an IMAP server. Each call opens its own
// connection; mailboxes stand in for labels.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"g2gmail/internal/mailparse"
	"g2gmail/internal/model"
	"g2gmail/internal/util"
)

type Options struct {
	Host               string
	Port               int
	Username           string
	UseTLS             bool
	StartTLS           bool
	InsecureSkipVerify bool
}

// PasswordFunc returns the current password for the configured user.
type PasswordFunc func() (string, error)

// Client implements the mailbox and auth collaborators over IMAP.
type Client struct {
	opts     Options
	password PasswordFunc
	log      *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	pass      string
	mailboxes map[string]string // label id -> mailbox name
}

func New(opts Options, password PasswordFunc, log *slog.Logger) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		opts:      opts,
		password:  password,
		log:       log,
		now:       time.Now,
		mailboxes: map[string]string{},
	}, nil
}

// IsAuthenticated reports whether a password is available.
func (c *Client) IsAuthenticated(context.Context) bool {
	_, err := c.currentPassword()
	return err == nil
}

// Refresh drops the cached password and reads it again.
func (c *Client) Refresh(context.Context) error {
	c.mu.Lock()
	c.pass = ""
	c.mu.Unlock()
	if _, err := c.currentPassword(); err != nil {
		return &model.AuthError{Source: "imap", Message: err.Error()}
	}
	return nil
}

func (c *Client) currentPassword() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pass != "" {
		return c.pass, nil
	}
	p, err := c.password()
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", model.ErrNotAuthenticated
	}
	c.pass = p
	return p, nil
}

// dial connects and logs in. The connection is closed when ctx ends.
func (c *Client) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	pass, err := c.currentPassword()
	if err != nil {
		return nil, nil, &model.AuthError{Source: "imap", Message: err.Error()}
	}

	address := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
	options := &imapclient.Options{
		TLSConfig: &tls.Config{
			ServerName:         c.opts.Host,
			InsecureSkipVerify: c.opts.InsecureSkipVerify,
		},
	}

	var client *imapclient.Client
	switch {
	case c.opts.UseTLS:
		client, err = imapclient.DialTLS(address, options)
	case c.opts.StartTLS:
		client, err = imapclient.DialStartTLS(address, options)
	default:
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(c.opts.Username, pass).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, &model.AuthError{
			Source:  "imap",
			Message: fmt.Sprintf("authentication failed for %s: %v", c.opts.Username, err),
		}
	}

	stopClose := context.AfterFunc(ctx, func() { _ = client.Close() })
	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				c.log.Debug("imap logout failed", "err", err)
			}
		}
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ListLabels lists selectable mailboxes with their counts.
func (c *Client) ListLabels(ctx context.Context) ([]model.Label, error) {
	client, cleanup, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	list, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}

	ids := map[string]string{}
	var labels []model.Label
	for _, mb := range list {
		if slices.Contains(mb.Attrs, imapv2.MailboxAttrNoSelect) || slices.Contains(mb.Attrs, imapv2.MailboxAttrNonExistent) {
			continue
		}
		label := labelFor(mb.Mailbox, mb.Attrs, mb.Delim)
		if _, dup := ids[label.ID]; dup {
			label = model.Label{ID: mb.Mailbox, Name: label.Name, Type: model.LabelTypeUser}
		}
		ids[label.ID] = mb.Mailbox

		st, err := client.Status(mb.Mailbox, &imapv2.StatusOptions{NumMessages: true, NumUnseen: true}).Wait()
		if err != nil {
			c.log.Debug("mailbox status unavailable", "mailbox", mb.Mailbox, "err", err)
		} else {
			if st.NumMessages != nil {
				n := int(*st.NumMessages)
				label.MessagesTotal = &n
			}
			if st.NumUnseen != nil {
				n := int(*st.NumUnseen)
				label.MessagesUnread = &n
			}
		}
		labels = append(labels, label)
	}

	c.mu.Lock()
	c.mailboxes = ids
	c.mu.Unlock()
	return labels, nil
}

// wellKnown maps common mailbox names to system label ids for servers that
// do not advertise special-use attributes.
var wellKnown = map[string]string{
	"sent":          "SENT",
	"sent items":    "SENT",
	"sent messages": "SENT",
	"sent mail":     "SENT",
	"drafts":        "DRAFT",
	"trash":         "TRASH",
	"deleted items": "TRASH",
	"spam":          "SPAM",
	"junk":          "SPAM",
	"starred":       "STARRED",
	"flagged":       "STARRED",
}

func labelFor(mailbox string, attrs []imapv2.MailboxAttr, delim rune) model.Label {
	name := mailbox
	if delim != 0 {
		if i := strings.LastIndex(mailbox, string(delim)); i >= 0 {
			name = mailbox[i+1:]
		}
	}
	if strings.EqualFold(mailbox, "INBOX") {
		return model.Label{ID: "INBOX", Name: "INBOX", Type: model.LabelTypeSystem}
	}
	special := map[imapv2.MailboxAttr]string{
		imapv2.MailboxAttrSent:    "SENT",
		imapv2.MailboxAttrDrafts:  "DRAFT",
		imapv2.MailboxAttrTrash:   "TRASH",
		imapv2.MailboxAttrJunk:    "SPAM",
		imapv2.MailboxAttrFlagged: "STARRED",
	}
	for _, a := range attrs {
		if id, ok := special[a]; ok {
			return model.Label{ID: id, Name: name, Type: model.LabelTypeSystem}
		}
	}
	if id, ok := wellKnown[strings.ToLower(name)]; ok {
		return model.Label{ID: id, Name: name, Type: model.LabelTypeSystem}
	}
	return model.Label{ID: mailbox, Name: name, Type: model.LabelTypeUser}
}

func (c *Client) mailboxFor(labelID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mb, ok := c.mailboxes[labelID]; ok {
		return mb
	}
	return labelID
}

// ListMessages returns one page of a mailbox, newest first. The continuation
// token is the lowest UID already returned.
func (c *Client) ListMessages(ctx context.Context, labelID string, pageSize int, pageToken string) (model.MessagePage, error) {
	mailbox := c.mailboxFor(labelID)
	criteria := &imapv2.SearchCriteria{}
	if pageToken != "" {
		before, err := strconv.ParseUint(pageToken, 10, 32)
		if err != nil {
			return model.MessagePage{}, fmt.Errorf("bad page token %q: %w", pageToken, err)
		}
		if before <= 1 {
			return model.MessagePage{}, nil
		}
		criteria.UID = []imapv2.UIDSet{{imapv2.UIDRange{Start: 1, Stop: imapv2.UID(before - 1)}}}
	}

	client, cleanup, err := c.dial(ctx)
	if err != nil {
		return model.MessagePage{}, err
	}
	defer cleanup()

	if _, err := client.Select(mailbox, &imapv2.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return model.MessagePage{}, fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return model.MessagePage{}, fmt.Errorf("searching %s: %w", mailbox, err)
	}

	uids := searchData.AllUIDs()
	slices.Sort(uids)
	var page model.MessagePage
	if pageSize > 0 && len(uids) > pageSize {
		uids = uids[len(uids)-pageSize:]
		page.NextPageToken = strconv.FormatUint(uint64(uids[0]), 10)
	}
	if len(uids) == 0 {
		return page, nil
	}
	slices.Reverse(uids)

	bufs, err := client.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
	}).Collect()
	if err != nil {
		return model.MessagePage{}, fmt.Errorf("fetching envelopes: %w", err)
	}
	byUID := make(map[imapv2.UID]*imapclient.FetchMessageBuffer, len(bufs))
	for _, b := range bufs {
		byUID[b.UID] = b
	}
	now := c.now()
	for _, uid := range uids {
		b, ok := byUID[uid]
		if !ok {
			continue
		}
		page.Messages = append(page.Messages, headerFromBuffer(messageID(mailbox, uid), b, now))
	}
	return page, nil
}

func headerFromBuffer(id string, buf *imapclient.FetchMessageBuffer, now time.Time) model.MessageHeader {
	h := model.MessageHeader{ID: id, Unread: !slices.Contains(buf.Flags, imapv2.FlagSeen)}
	date := buf.InternalDate
	if buf.Envelope != nil {
		h.ThreadID = buf.Envelope.MessageID
		h.Subject = buf.Envelope.Subject
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				h.From = from.Name
			} else {
				h.From = from.Addr()
			}
		}
		if !buf.Envelope.Date.IsZero() {
			date = buf.Envelope.Date
		}
	}
	h.Date = util.ShortDate(date, now)
	return h
}

// GetMessage fetches and parses the full message without setting \Seen.
func (c *Client) GetMessage(ctx context.Context, id string) (*model.RawMessage, error) {
	mailbox, uid, err := parseMessageID(id)
	if err != nil {
		return nil, err
	}
	client, cleanup, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := client.Select(mailbox, &imapv2.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	section := &imapv2.FetchItemBodySection{Peek: true}
	bufs, err := client.Fetch(imapv2.UIDSetNum(uid), &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", id, err)
	}
	if len(bufs) == 0 {
		return nil, fmt.Errorf("message %s not found", id)
	}
	raw := bufs[0].FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message %s has no body", id)
	}
	return mailparse.Parse(id, raw), nil
}

// MarkAsRead sets \Seen on the message.
func (c *Client) MarkAsRead(ctx context.Context, id string) error {
	mailbox, uid, err := parseMessageID(id)
	if err != nil {
		return err
	}
	client, cleanup, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	err = client.Store(imapv2.UIDSetNum(uid), &imapv2.StoreFlags{
		Op:     imapv2.StoreFlagsAdd,
		Silent: true,
		Flags:  []imapv2.Flag{imapv2.FlagSeen},
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("mark %s read: %w", id, err)
	}
	return nil
}

// messageID joins mailbox and UID; the UID follows the last colon.
func messageID(mailbox string, uid imapv2.UID) string {
	return mailbox + ":" + strconv.FormatUint(uint64(uid), 10)
}

var errBadMessageID = errors.New("malformed message id")

func parseMessageID(id string) (string, imapv2.UID, error) {
	i := strings.LastIndexByte(id, ':')
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: %q", errBadMessageID, id)
	}
	n, err := strconv.ParseUint(id[i+1:], 10, 32)
	if err != nil || n == 0 {
		return "", 0, fmt.Errorf("%w: %q", errBadMessageID, id)
	}
	return id[:i], imapv2.UID(n), nil
}
