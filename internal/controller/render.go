package controller

import (
	"context"
	"fmt"
	"strings"

	"g2gmail/internal/content"
	"g2gmail/internal/layout"
	"g2gmail/internal/model"
	"g2gmail/internal/nav"
)

const (
	emptyListLine  = "(empty)"
	loadingText    = "Loading..."
	authText       = "Not signed in. Run g2gmail login, then tap to retry."
	retryHint      = "Tap to retry"
	authStatusText = "sign in required"
)

// render redraws the current mode from scratch.
func (c *Controller) render(ctx context.Context) {
	switch c.machine.Mode() {
	case nav.ModeBoot:
		c.showText(ctx, nav.ModeBoot, loadingText, "starting")
	case nav.ModeAuthRequired:
		c.showText(ctx, nav.ModeAuthRequired, authText, authStatusText)
	case nav.ModeError:
		c.showText(ctx, nav.ModeError, c.machine.Err()+"\n\n"+retryHint, "error")
	case nav.ModeLabels:
		c.renderLabels(ctx)
	case nav.ModeMessageList:
		c.renderMessageList(ctx)
	case nav.ModeReader:
		c.renderReader(ctx, true)
	}
}

func (c *Controller) showText(ctx context.Context, mode nav.Mode, text, statusText string) {
	lines := layout.WrapLines(strings.Split(text, "\n"), c.opts.Width)
	msg := strings.Join(lines, "\n")
	c.publish(mode, statusText)
	_ = c.deviceCall(ctx, "show message", func() error { return c.device.ShowMessage(msg) })
}

func (c *Controller) listItems(lines []string, cursor int) []string {
	if len(lines) == 0 {
		return []string{emptyListLine}
	}
	return c.presenter.Items(lines, cursor)
}

func (c *Controller) renderLabels(ctx context.Context) {
	cursor := c.machine.LabelCursor()
	items := c.listItems(c.machine.LabelLines(), cursor)
	st := fmt.Sprintf("%d labels", len(c.machine.Labels()))
	c.publish(nav.ModeLabels, st)
	_ = c.deviceCall(ctx, "show labels", func() error { return c.device.ShowLabels(items, cursor, st) })
}

func (c *Controller) renderMessageList(ctx context.Context) {
	cursor := c.machine.MessageCursor()
	items := c.listItems(c.machine.MessageLines(), cursor)
	st := c.messageListStatus()
	c.publish(nav.ModeMessageList, st)
	_ = c.deviceCall(ctx, "show message list", func() error { return c.device.ShowMessageList(items, cursor, st) })
}

func (c *Controller) messageListStatus() string {
	n := len(c.machine.MessageLines())
	pos := c.machine.MessageCursor() + 1
	if n == 0 {
		pos = 0
	}
	st := fmt.Sprintf("%s %d/%d", c.machine.LabelName(), pos, n)
	if c.machine.HasMore() {
		st += "+"
	}
	return st
}

// renderReader draws the current page. full is set on first entry and
// after foregrounding; page flips update the text in place.
func (c *Controller) renderReader(ctx context.Context, full bool) {
	v := c.machine.ReaderView(c.opts.LinesPerPage)
	st := fmt.Sprintf("%d/%d", v.Page+1, v.Total)
	c.publish(nav.ModeReader, st)
	if full {
		_ = c.deviceCall(ctx, "show reader", func() error { return c.device.ShowReader(v.Text, st) })
		return
	}
	_ = c.deviceCall(ctx, "update reader", func() error { return c.device.UpdateReaderText(v.Text, st) })
}

// buildDocument turns a fetched message into header-prefixed body lines and
// fixed-height pages.
func buildDocument(raw *model.RawMessage, width, linesPerPage int) (model.MessageBody, [][]string) {
	body := model.MessageBody{
		ID:      raw.ID,
		Subject: content.Header(raw.Subject),
		From:    content.Header(raw.From),
		To:      content.Header(raw.To),
		Date:    content.Header(raw.Date),
		Lines:   content.Normalize(raw.HTML, raw.Plain),
	}
	lines := []string{
		"From: " + body.From,
		"To: " + body.To,
		"Date: " + body.Date,
		"Subject: " + body.Subject,
		"",
	}
	lines = append(lines, body.Lines...)
	return body, layout.Paginate(layout.WrapLines(lines, width), linesPerPage)
}
