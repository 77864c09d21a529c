// Package controller drives the navigation state machine against a device
// and a mailbox. It is the only part of the client that performs I/O.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"g2gmail/internal/model"
	"g2gmail/internal/nav"
	"g2gmail/internal/status"
	"g2gmail/internal/util"
)

// Device is the display and gesture source.
type Device interface {
	Connect(ctx context.Context) error
	OnGesture(handler func(model.Gesture)) (unsubscribe func())
	// ShowLabels and ShowMessageList draw a list screen. selected is the
	// controller's cursor; a device with native list selection highlights it.
	ShowLabels(items []string, selected int, status string) error
	ShowMessageList(items []string, selected int, status string) error
	ShowReader(text, status string) error
	UpdateReaderText(text, status string) error
	ShowMessage(text string) error
}

// Mailbox is the remote data source.
type Mailbox interface {
	ListLabels(ctx context.Context) ([]model.Label, error)
	ListMessages(ctx context.Context, labelID string, pageSize int, pageToken string) (model.MessagePage, error)
	GetMessage(ctx context.Context, id string) (*model.RawMessage, error)
	MarkAsRead(ctx context.Context, id string) error
}

// Auth gates fetches and recovers from rejected credentials.
type Auth interface {
	IsAuthenticated(ctx context.Context) bool
	Refresh(ctx context.Context) error
}

// WakeLock keeps the display on while reading. Best effort.
type WakeLock interface {
	Acquire()
	Release()
}

var errEmptyMessage = errors.New("mailbox returned no message")

// Options tunes the controller. Zero values fall back to defaults.
type Options struct {
	Width          int
	LinesPerPage   int
	ListRows       int
	NativeList     bool
	PageSize       int
	ScrollCooldown time.Duration
	RetryDelay     time.Duration
	FetchTimeout   time.Duration
	ErrorMaxLen    int

	Logger *slog.Logger
	Status *status.Value
	// Now is the clock used for scroll debouncing.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.Width <= 0 {
		o.Width = 48
	}
	if o.LinesPerPage <= 0 {
		o.LinesPerPage = 9
	}
	if o.ListRows <= 0 {
		o.ListRows = 9
	}
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
	if o.ScrollCooldown <= 0 {
		o.ScrollCooldown = 300 * time.Millisecond
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.ErrorMaxLen <= 0 {
		o.ErrorMaxLen = 120
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Status == nil {
		o.Status = status.NewValue()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Controller serializes gesture handling and owns the state machine.
type Controller struct {
	opts      Options
	device    Device
	mailbox   Mailbox
	auth      Auth
	wake      WakeLock
	log       *slog.Logger
	status    *status.Value
	presenter ListPresenter
	machine   *nav.Machine
	queue     *taskQueue

	mu         sync.Mutex
	lastScroll time.Time

	// background tracks fire-and-forget calls.
	background sync.WaitGroup
}

// New returns a Controller. wake may be nil.
func New(device Device, mailbox Mailbox, auth Auth, wake WakeLock, opts Options) *Controller {
	opts.setDefaults()
	if wake == nil {
		wake = noWake{}
	}
	presenter := NewListPresenter(opts.NativeList, opts.ListRows)
	return &Controller{
		opts:      opts,
		device:    device,
		mailbox:   mailbox,
		auth:      auth,
		wake:      wake,
		log:       opts.Logger,
		status:    opts.Status,
		presenter: presenter,
		machine: nav.New(nav.Options{
			Width:         opts.Width,
			CursorMarkers: presenter.CursorMarkers(),
		}),
		queue: newTaskQueue(opts.Logger),
	}
}

// Status returns the observable status owned by the controller.
func (c *Controller) Status() *status.Value { return c.status }

// Run connects to the device, subscribes to gestures, queues the bootstrap
// step and processes tasks until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.deviceCall(ctx, "connect", func() error { return c.device.Connect(ctx) }); err != nil {
		return fmt.Errorf("connect device: %w", err)
	}
	unsubscribe := c.device.OnGesture(c.HandleGesture)
	defer unsubscribe()

	c.enqueue("bootstrap", c.bootstrap)
	c.queue.run(ctx)
	c.background.Wait()
	return nil
}

// HandleGesture accepts a device event. It never blocks on handling; the
// event is queued behind any running task. Scrolls arriving within the
// cooldown of the last accepted scroll are dropped.
func (c *Controller) HandleGesture(g model.Gesture) {
	if g.Kind.IsScroll() && !c.acceptScroll() {
		c.log.Debug("scroll debounced", "gesture", g.Kind.String())
		return
	}
	c.enqueue(g.Kind.String(), func(ctx context.Context) { c.dispatch(ctx, g) })
}

func (c *Controller) acceptScroll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.Now()
	if !c.lastScroll.IsZero() && now.Sub(c.lastScroll) < c.opts.ScrollCooldown {
		return false
	}
	c.lastScroll = now
	return true
}

func (c *Controller) enqueue(name string, fn func(ctx context.Context)) {
	c.queue.push(task{id: uuid.NewString(), name: name, run: fn})
}

func (c *Controller) dispatch(ctx context.Context, g model.Gesture) {
	switch g.Kind {
	case model.ForegroundEnter:
		c.render(ctx)
		return
	case model.ForegroundExit:
		c.wake.Release()
		return
	}

	switch c.machine.Mode() {
	case nav.ModeBoot:
		// bootstrap is still queued or running
	case nav.ModeAuthRequired, nav.ModeError:
		if g.Kind == model.Tap {
			c.bootstrap(ctx)
		}
	case nav.ModeLabels:
		c.onLabels(ctx, g)
	case nav.ModeMessageList:
		c.onMessageList(ctx, g)
	case nav.ModeReader:
		c.onReader(ctx, g)
	}
}

func (c *Controller) bootstrap(ctx context.Context) {
	if !c.auth.IsAuthenticated(ctx) {
		c.log.Info("not authenticated")
		c.machine.SetAuthRequired()
		c.render(ctx)
		return
	}
	var labels []model.Label
	err := c.fetch(ctx, "list labels", func(ctx context.Context) error {
		var err error
		labels, err = c.mailbox.ListLabels(ctx)
		return err
	})
	if err != nil {
		c.fail(ctx, "load labels", err)
		return
	}
	c.log.Info("labels loaded", "count", len(labels))
	c.machine.SetLabels(labels)
	c.renderLabels(ctx)
}

func (c *Controller) onLabels(ctx context.Context, g model.Gesture) {
	switch g.Kind {
	case model.ScrollForward, model.ScrollBackward:
		if !c.presenter.MovesCursor() {
			if g.HasIndex {
				c.machine.SetLabelCursor(g.Index)
			}
			return
		}
		if c.machine.MoveLabelCursor(scrollDelta(g.Kind)) {
			c.renderLabels(ctx)
		}
	case model.Tap:
		idx := c.presenter.Resolve(g, c.machine.LabelCursor())
		label := c.machine.LabelAt(idx)
		if label == nil {
			return
		}
		c.machine.SetLabelCursor(idx)
		c.openLabel(ctx, *label)
	}
}

func (c *Controller) openLabel(ctx context.Context, label model.Label) {
	c.publish(nav.ModeLabels, "loading "+label.Name)
	var page model.MessagePage
	err := c.fetch(ctx, "list messages", func(ctx context.Context) error {
		var err error
		page, err = c.mailbox.ListMessages(ctx, label.ID, c.opts.PageSize, "")
		return err
	})
	if err != nil {
		c.fail(ctx, "load messages", err)
		return
	}
	c.log.Info("messages loaded", "label", label.ID, "count", len(page.Messages), "more", page.NextPageToken != "")
	c.machine.SetMessages(label.ID, label.Name, page.Messages, page.NextPageToken)
	c.renderMessageList(ctx)
}

func (c *Controller) onMessageList(ctx context.Context, g model.Gesture) {
	switch g.Kind {
	case model.ScrollForward:
		if !c.presenter.MovesCursor() && g.HasIndex {
			c.machine.SetMessageCursor(g.Index)
		}
		if c.machine.AtLastMessage() && c.machine.HasMore() {
			c.loadMore(ctx)
			return
		}
		if c.presenter.MovesCursor() && c.machine.MoveMessageCursor(1) {
			c.renderMessageList(ctx)
		}
	case model.ScrollBackward:
		if !c.presenter.MovesCursor() {
			if g.HasIndex {
				c.machine.SetMessageCursor(g.Index)
			}
			return
		}
		if c.machine.MoveMessageCursor(-1) {
			c.renderMessageList(ctx)
		}
	case model.Tap:
		idx := c.presenter.Resolve(g, c.machine.MessageCursor())
		h := c.machine.MessageAt(idx)
		if h == nil {
			return
		}
		c.machine.SetMessageCursor(idx)
		c.openMessage(ctx, *h)
	case model.DoubleTap:
		c.machine.BackToLabels()
		c.renderLabels(ctx)
	}
}

// loadMore appends the next batch. A failure keeps the current list.
func (c *Controller) loadMore(ctx context.Context) {
	labelID, token := c.machine.LabelID(), c.machine.NextPageToken()
	var page model.MessagePage
	err := c.fetch(ctx, "list more messages", func(ctx context.Context) error {
		var err error
		page, err = c.mailbox.ListMessages(ctx, labelID, c.opts.PageSize, token)
		return err
	})
	if err != nil {
		c.log.Warn("load more failed", "label", labelID, "err", err)
		c.renderMessageList(ctx)
		c.publish(nav.ModeMessageList, "more failed")
		return
	}
	c.machine.AppendMessages(page.Messages, page.NextPageToken)
	c.machine.MoveMessageCursor(1)
	c.log.Debug("messages appended", "label", labelID, "count", len(page.Messages))
	c.renderMessageList(ctx)
}

func (c *Controller) openMessage(ctx context.Context, h model.MessageHeader) {
	var raw *model.RawMessage
	err := c.fetch(ctx, "get message", func(ctx context.Context) error {
		var err error
		raw, err = c.mailbox.GetMessage(ctx, h.ID)
		if err == nil && raw == nil {
			err = errEmptyMessage
		}
		return err
	})
	if err != nil {
		c.log.Error("open message failed", "id", h.ID, "err", err)
		c.renderMessageList(ctx)
		return
	}

	if h.Unread {
		c.machine.MarkMessageRead(h.ID)
		c.markReadAsync(ctx, h.ID)
	}

	body, pages := buildDocument(raw, c.opts.Width, c.opts.LinesPerPage)
	c.machine.EnterReader(body.ID, body.Subject, pages)
	c.wake.Acquire()
	c.renderReader(ctx, true)
}

// markReadAsync tells the mailbox without holding up the queue.
func (c *Controller) markReadAsync(ctx context.Context, id string) {
	bg := context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		err := c.fetch(bg, "mark read", func(ctx context.Context) error {
			return c.mailbox.MarkAsRead(ctx, id)
		})
		if err != nil {
			c.log.Warn("mark read failed", "id", id, "err", err)
		}
	}()
}

func (c *Controller) onReader(ctx context.Context, g model.Gesture) {
	switch g.Kind {
	case model.ScrollForward:
		if c.machine.NextPage() {
			c.renderReader(ctx, false)
		}
	case model.ScrollBackward:
		if c.machine.PrevPage() {
			c.renderReader(ctx, false)
		}
	case model.Tap, model.DoubleTap:
		c.machine.BackToMessageList()
		c.wake.Release()
		c.renderMessageList(ctx)
	}
}

// fetch runs fn under the fetch timeout. An authorization failure triggers
// one credential refresh and one more attempt.
func (c *Controller) fetch(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := func() error {
		fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
		return fn(fctx)
	}
	err := attempt()
	if err == nil || !model.IsAuthError(err) {
		return err
	}
	c.log.Warn("authorization rejected, refreshing", "op", op, "err", err)
	if rerr := c.auth.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%s: refresh credentials: %w", op, rerr)
	}
	return attempt()
}

// fail logs err and shows the error screen with a retry hint.
func (c *Controller) fail(ctx context.Context, what string, err error) {
	c.log.Error(what+" failed", "err", err)
	c.machine.SetError(util.Truncate(err.Error(), c.opts.ErrorMaxLen))
	c.render(ctx)
}

// deviceCall retries a failed device command once after RetryDelay.
func (c *Controller) deviceCall(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	c.log.Warn("device call failed, retrying", "op", op, "err", err)
	t := time.NewTimer(c.opts.RetryDelay)
	select {
	case <-ctx.Done():
		t.Stop()
		return err
	case <-t.C:
	}
	if err = fn(); err != nil {
		c.log.Error("device call failed", "op", op, "err", err)
	}
	return err
}

func (c *Controller) publish(mode nav.Mode, text string) {
	c.status.Set(status.Status{Mode: mode.String(), Text: text})
}

func scrollDelta(k model.GestureKind) int {
	if k == model.ScrollBackward {
		return -1
	}
	return 1
}

type noWake struct{}

func (noWake) Acquire() {}
func (noWake) Release() {}
