package gmail

import (
	"context"
	"fmt"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"

	"g2gmail/internal/model"
)

// GetMessage fetches the full message with its plain and HTML bodies. When
// neither body is present the snippet stands in as plain text.
func (c *Client) GetMessage(ctx context.Context, id string) (*model.RawMessage, error) {
	msg, err := c.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get message %s", id), err)
	}
	raw := &model.RawMessage{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}
	var date string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				raw.From = h.Value
			case "to":
				raw.To = h.Value
			case "subject":
				raw.Subject = h.Value
			case "date":
				date = h.Value
			}
		}
		raw.Plain = extractPlainText(msg.Payload)
		raw.HTML = extractHTML(msg.Payload)
	}
	raw.Date = date
	raw.Received = receivedAt(msg.InternalDate, date)
	if raw.Plain == "" && raw.HTML == "" {
		raw.Plain = msg.Snippet
	}
	return raw, nil
}

// MarkAsRead removes the UNREAD label from a message.
func (c *Client) MarkAsRead(ctx context.Context, id string) error {
	req := &gmailv1.ModifyMessageRequest{
		RemoveLabelIds: []string{unreadLabel},
	}
	if _, err := c.svc.Users.Messages.Modify(user, id, req).Context(ctx).Do(); err != nil {
		return wrapErr(fmt.Sprintf("mark message %s read", id), err)
	}
	return nil
}
