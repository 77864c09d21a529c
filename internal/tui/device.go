// Package tui simulates the glasses in a terminal. Device implements the
// controller's Device and WakeLock on top of a Bubble Tea program.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"g2gmail/internal/model"
	"g2gmail/internal/status"
)

// ErrNotRunning is returned by display calls made while no program runs.
var ErrNotRunning = errors.New("device is not running")

type Options struct {
	Width      int
	Rows       int
	NativeList bool
	Logger     *slog.Logger
	// ProgramOptions are passed to tea.NewProgram after the defaults.
	ProgramOptions []tea.ProgramOption
}

type Device struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	program  *tea.Program
	stopped  bool
	ready    chan struct{}
	done     chan struct{}
	handlers map[int]func(model.Gesture)
	nextID   int

	readyOnce sync.Once
}

func NewDevice(opts Options) *Device {
	if opts.Width <= 0 {
		opts.Width = 48
	}
	if opts.Rows <= 0 {
		opts.Rows = 9
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Device{
		opts:     opts,
		log:      opts.Logger,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		handlers: make(map[int]func(model.Gesture)),
	}
}

// Run starts the program and blocks until it quits or ctx is done.
func (d *Device) Run(ctx context.Context) error {
	m := newModel(d)
	opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithReportFocus()}, d.opts.ProgramOptions...)
	p := tea.NewProgram(m, opts...)

	d.mu.Lock()
	if d.program != nil || d.stopped {
		d.mu.Unlock()
		return errors.New("device already started")
	}
	d.program = p
	d.mu.Unlock()

	_, err := p.Run()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	close(d.done)

	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run device: %w", err)
	}
	return nil
}

// Done is closed once the program has exited.
func (d *Device) Done() <-chan struct{} { return d.done }

func (d *Device) markReady() {
	d.readyOnce.Do(func() { close(d.ready) })
}

// Connect waits until the program is accepting messages.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return ErrNotRunning
	}
	select {
	case <-d.ready:
		return nil
	case <-d.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Device) OnGesture(handler func(model.Gesture)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = handler
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers, id)
	}
}

func (d *Device) emit(g model.Gesture) {
	d.mu.Lock()
	hs := make([]func(model.Gesture), 0, len(d.handlers))
	for _, h := range d.handlers {
		hs = append(hs, h)
	}
	d.mu.Unlock()
	d.log.Debug("gesture", "kind", g.Kind.String(), "index", g.Index, "has_index", g.HasIndex)
	for _, h := range hs {
		h(g)
	}
}

func (d *Device) send(msg tea.Msg) error {
	d.mu.Lock()
	p, stopped := d.program, d.stopped
	d.mu.Unlock()
	if p == nil || stopped {
		return ErrNotRunning
	}
	p.Send(msg)
	return nil
}

func (d *Device) ShowLabels(items []string, selected int, status string) error {
	return d.send(listMsg{screen: screenLabels, items: items, selected: selected, status: status})
}

func (d *Device) ShowMessageList(items []string, selected int, status string) error {
	return d.send(listMsg{screen: screenMessages, items: items, selected: selected, status: status})
}

func (d *Device) ShowReader(text, status string) error {
	return d.send(readerMsg{text: text, status: status})
}

func (d *Device) UpdateReaderText(text, status string) error {
	return d.send(readerMsg{text: text, status: status, update: true})
}

func (d *Device) ShowMessage(text string) error {
	return d.send(textMsg(text))
}

func (d *Device) Acquire() { d.setAwake(true) }
func (d *Device) Release() { d.setAwake(false) }

func (d *Device) setAwake(on bool) {
	if err := d.send(wakeMsg(on)); err != nil {
		d.log.Debug("wake lock ignored", "on", on, "err", err)
	}
}

// Follow mirrors v on the companion status line until the returned func is
// called.
func (d *Device) Follow(v *status.Value) func() {
	return v.Subscribe(func(s status.Status) {
		_ = d.send(companionMsg(s))
	})
}
