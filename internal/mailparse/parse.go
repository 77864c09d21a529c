// Package mailparse reads RFC 5322 messages with go-message for the IMAP and
// mbox mailboxes.
package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"g2gmail/internal/model"
	"g2gmail/internal/util"
)

// Parse extracts headers and the first text/plain and text/html bodies.
// Input that is not a parseable MIME message becomes a plain body.
func Parse(id string, raw []byte) *model.RawMessage {
	out := &model.RawMessage{ID: id}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		out.Plain = string(raw)
		return out
	}
	defer mr.Close()

	fillHeader(out, mr.Header)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && out.Plain == "":
			out.Plain = string(body)
		case strings.HasPrefix(contentType, "text/html") && out.HTML == "":
			out.HTML = string(body)
		}
	}
	return out
}

func fillHeader(out *model.RawMessage, h mail.Header) {
	out.Subject, _ = h.Subject()
	out.From = text(h, "From")
	out.To = text(h, "To")
	out.Date = h.Get("Date")
	if t, err := h.Date(); err == nil {
		out.Received = t
	}
}

// text returns the decoded header value, or the raw value if decoding fails.
func text(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return v
	}
	return h.Get(key)
}

// Summary reads only the header block of raw and returns a list row.
func Summary(id string, raw []byte, now time.Time) (model.MessageHeader, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return model.MessageHeader{}, fmt.Errorf("read header: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	subject, _ := h.Subject()
	messageID, _ := h.MessageID()
	received, _ := h.Date()
	return model.MessageHeader{
		ID:       id,
		ThreadID: messageID,
		Subject:  subject,
		From:     Sender(h),
		Date:     util.ShortDate(received, now),
	}, nil
}

// Sender returns the display name of the first From address, falling back
// to its address and then to the raw header.
func Sender(h mail.Header) string {
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		if addrs[0].Name != "" {
			return addrs[0].Name
		}
		return addrs[0].Address
	}
	return util.SenderName(text(h, "From"))
}
