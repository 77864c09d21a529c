package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"g2gmail/internal/model"
	"g2gmail/internal/status"
)

type screen int

const (
	screenBlank screen = iota
	screenLabels
	screenMessages
	screenReader
	screenText
)

func (s screen) isList() bool { return s == screenLabels || s == screenMessages }

// lineItem is one row of a native list.
type lineItem string

func (i lineItem) FilterValue() string { return string(i) }
func (i lineItem) Title() string       { return string(i) }
func (i lineItem) Description() string { return "" }

type Model struct {
	dev  *Device
	keys keyMap

	width  int
	rows   int
	native bool

	screen screen
	lines  []string // cursor-mode list lines
	list   list.Model
	pane   viewport.Model

	status    string
	companion status.Status
	awake     bool
	blurred   bool
}

func newModel(d *Device) *Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, d.opts.Width, d.opts.Rows)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)

	return &Model{
		dev:    d,
		keys:   defaultKeyMap(),
		width:  d.opts.Width,
		rows:   d.opts.Rows,
		native: d.opts.NativeList,
		list:   l,
		pane:   viewport.New(d.opts.Width, d.opts.Rows),
	}
}

func (m *Model) Init() tea.Cmd {
	return func() tea.Msg { return readyMsg{} }
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case readyMsg:
		m.dev.markReady()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.FocusMsg:
		m.blurred = false
		m.dev.emit(model.Gesture{Kind: model.ForegroundEnter})
		return m, nil

	case tea.BlurMsg:
		m.blurred = true
		m.dev.emit(model.Gesture{Kind: model.ForegroundExit})
		return m, nil

	case listMsg:
		m.showList(msg)
		return m, nil

	case readerMsg:
		m.screen = screenReader
		m.status = msg.status
		m.pane.SetContent(msg.text)
		m.pane.GotoTop()
		return m, nil

	case textMsg:
		m.screen = screenText
		m.status = ""
		m.pane.SetContent(string(msg))
		m.pane.GotoTop()
		return m, nil

	case wakeMsg:
		m.awake = bool(msg)
		return m, nil

	case companionMsg:
		m.companion = status.Status(msg)
		return m, nil
	}
	return m, nil
}

// showList draws a list screen. In native mode the selection follows the
// controller's cursor, clamped to the new items.
func (m *Model) showList(msg listMsg) {
	m.screen = msg.screen
	m.status = msg.status
	if !m.native {
		m.lines = msg.items
		return
	}
	items := make([]list.Item, len(msg.items))
	for i, s := range msg.items {
		items[i] = lineItem(s)
	}
	m.list.SetItems(items)
	m.list.Select(min(max(msg.selected, 0), max(len(items)-1, 0)))
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Forward):
		m.emitScroll(model.ScrollForward)
	case key.Matches(msg, m.keys.Backward):
		m.emitScroll(model.ScrollBackward)
	case key.Matches(msg, m.keys.Tap):
		g := model.Gesture{Kind: model.Tap}
		if m.nativeList() {
			g.Index, g.HasIndex = m.list.Index(), true
		}
		m.dev.emit(g)
	case key.Matches(msg, m.keys.Back):
		m.dev.emit(model.Gesture{Kind: model.DoubleTap})
	}
	return m, nil
}

func (m *Model) nativeList() bool {
	return m.native && m.screen.isList()
}

func (m *Model) emitScroll(kind model.GestureKind) {
	g := model.Gesture{Kind: kind}
	if m.nativeList() {
		if kind == model.ScrollForward {
			m.list.CursorDown()
		} else {
			m.list.CursorUp()
		}
		g.Index, g.HasIndex = m.list.Index(), true
	}
	m.dev.emit(g)
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title()))
	b.WriteString("\n")
	b.WriteString(m.displayView())
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m *Model) title() string {
	switch m.screen {
	case screenLabels:
		return "Labels"
	case screenMessages:
		return "Messages"
	case screenReader:
		return "Reader"
	case screenText:
		return "g2gmail"
	}
	return "connecting…"
}
