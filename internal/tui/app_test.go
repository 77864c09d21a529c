package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"g2gmail/internal/model"
	"g2gmail/internal/status"
)

type recorder struct {
	mu  sync.Mutex
	got []model.Gesture
}

func (r *recorder) handle(g model.Gesture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, g)
}

func (r *recorder) last(t *testing.T) model.Gesture {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		t.Fatal("no gesture emitted")
	}
	return r.got[len(r.got)-1]
}

func testDevice(native bool) (*Device, *Model, *recorder) {
	d := NewDevice(Options{
		Width:      24,
		Rows:       4,
		NativeList: native,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	rec := &recorder{}
	d.OnGesture(rec.handle)
	return d, newModel(d), rec
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestKeysMapToGestures(t *testing.T) {
	_, m, rec := testDevice(false)
	tests := []struct {
		msg  tea.KeyMsg
		want model.GestureKind
	}{
		{keyRunes("j"), model.ScrollForward},
		{tea.KeyMsg{Type: tea.KeyDown}, model.ScrollForward},
		{keyRunes("k"), model.ScrollBackward},
		{tea.KeyMsg{Type: tea.KeyUp}, model.ScrollBackward},
		{tea.KeyMsg{Type: tea.KeyEnter}, model.Tap},
		{tea.KeyMsg{Type: tea.KeyEsc}, model.DoubleTap},
		{tea.KeyMsg{Type: tea.KeyBackspace}, model.DoubleTap},
	}
	for _, tt := range tests {
		m.Update(tt.msg)
		g := rec.last(t)
		if g.Kind != tt.want || g.HasIndex {
			t.Errorf("%s -> %+v; want %s", tt.msg, g, tt.want)
		}
	}

	m.Update(tea.FocusMsg{})
	if g := rec.last(t); g.Kind != model.ForegroundEnter {
		t.Fatalf("focus -> %s", g.Kind)
	}
	m.Update(tea.BlurMsg{})
	if g := rec.last(t); g.Kind != model.ForegroundExit {
		t.Fatalf("blur -> %s", g.Kind)
	}

	n := len(rec.got)
	_, cmd := m.Update(keyRunes("q"))
	if cmd == nil || len(rec.got) != n {
		t.Fatal("q should quit without a gesture")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not return tea.Quit")
	}
}

func TestCursorListRendering(t *testing.T) {
	_, m, _ := testDevice(false)
	m.Update(listMsg{screen: screenLabels, items: []string{"> Inbox", "  Sent", "  A label far too long for the box"}, status: "3 labels"})

	view := m.View()
	for _, want := range []string{"Labels", "Inbox", "Sent", "3 labels", "A label far too long …"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "for the box") {
		t.Errorf("line not clamped to display width:\n%s", view)
	}
}

func TestNativeListReportsIndex(t *testing.T) {
	_, m, rec := testDevice(true)
	m.Update(listMsg{screen: screenMessages, items: []string{"one", "two", "three"}, status: "Inbox 1/3"})

	m.Update(keyRunes("j"))
	if g := rec.last(t); g.Kind != model.ScrollForward || !g.HasIndex || g.Index != 1 {
		t.Fatalf("scroll = %+v", g)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if g := rec.last(t); g.Kind != model.Tap || !g.HasIndex || g.Index != 1 {
		t.Fatalf("tap = %+v", g)
	}

	m.Update(readerMsg{text: "body", status: "1/1"})
	m.Update(keyRunes("j"))
	if g := rec.last(t); g.HasIndex {
		t.Fatalf("reader scroll carried an index: %+v", g)
	}
	m.Update(listMsg{screen: screenMessages, items: []string{"one", "two", "three"}, selected: 1, status: "Inbox 2/3"})
	if m.list.Index() != 1 {
		t.Fatalf("selection = %d; want 1", m.list.Index())
	}

	// A shorter list clamps the selection.
	m.Update(listMsg{screen: screenMessages, items: []string{"only"}, selected: 2, status: "Inbox 1/1"})
	if m.list.Index() != 0 {
		t.Fatalf("selection = %d; want 0", m.list.Index())
	}
}

func TestNativeListFollowsControllerSelection(t *testing.T) {
	_, m, rec := testDevice(true)
	m.Update(listMsg{screen: screenMessages, items: []string{"one", "two"}, selected: 0, status: "Inbox 1/2+"})
	m.Update(keyRunes("j"))
	if g := rec.last(t); g.Index != 1 {
		t.Fatalf("scroll = %+v", g)
	}

	// Same screen re-rendered after appending: the device moves to the
	// controller's cursor rather than keeping its own index.
	m.Update(listMsg{screen: screenMessages, items: []string{"one", "two", "three", "four"}, selected: 2, status: "Inbox 3/4"})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if g := rec.last(t); g.Kind != model.Tap || g.Index != 2 {
		t.Fatalf("tap = %+v; want index 2", g)
	}
}

func TestReaderTextAndFooter(t *testing.T) {
	_, m, _ := testDevice(false)
	m.Update(readerMsg{text: "From: Ann\nSubject: Hi", status: "1/2"})
	m.Update(wakeMsg(true))
	m.Update(companionMsg(status.Status{Mode: "reader", Text: "1/2"}))

	view := m.View()
	for _, want := range []string{"Reader", "From: Ann", "Subject: Hi", "awake", "reader: 1/2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m.Update(readerMsg{text: "page two", status: "2/2", update: true})
	m.Update(wakeMsg(false))
	view = m.View()
	if !strings.Contains(view, "page two") || strings.Contains(view, "awake") {
		t.Fatalf("view after flip:\n%s", view)
	}

	m.Update(textMsg("Loading..."))
	if view := m.View(); !strings.Contains(view, "Loading...") {
		t.Fatalf("text screen:\n%s", view)
	}
}

func TestDevice_NotRunning(t *testing.T) {
	d, _, _ := testDevice(false)
	if err := d.ShowLabels([]string{"x"}, 0, ""); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("ShowLabels before run: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Connect before run: %v", err)
	}
}

func TestDevice_RunLifecycle(t *testing.T) {
	var out bytes.Buffer
	d := NewDevice(Options{
		Width:          24,
		Rows:           4,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		ProgramOptions: []tea.ProgramOption{tea.WithInput(nil), tea.WithOutput(&out)},
	})
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ccancel()
	if err := d.Connect(cctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := d.ShowLabels([]string{"> Inbox"}, 0, "1 labels"); err != nil {
		t.Fatalf("ShowLabels: %v", err)
	}
	d.Acquire()

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-d.Done()

	if err := d.ShowMessage("late"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("ShowMessage after quit: %v", err)
	}
	if err := d.Connect(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Connect after quit: %v", err)
	}
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("second Run should fail")
	}
}
