// Package nav is the navigation state machine: label list, message list and
// paginated reader. It performs no I/O and never panics on bad indices;
// out-of-range requests are reported with nil or false.
package nav

import (
	"fmt"
	"unicode/utf8"

	"g2gmail/internal/layout"
	"g2gmail/internal/model"
	"g2gmail/internal/util"
)

// Mode is the active screen.
type Mode int

const (
	ModeBoot Mode = iota
	ModeAuthRequired
	ModeLabels
	ModeMessageList
	ModeReader
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeBoot:
		return "boot"
	case ModeAuthRequired:
		return "auth-required"
	case ModeLabels:
		return "labels"
	case ModeMessageList:
		return "message-list"
	case ModeReader:
		return "reader"
	case ModeError:
		return "error"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

const (
	// CursorColumns is reserved at the start of each list line when the
	// client draws its own cursor marker.
	CursorColumns = 2
	// SenderWidth caps the sender part of a message line.
	SenderWidth = 14

	unreadMarker = "*"
	readMarker   = " "
	separator    = " · "
)

// Options configures display-dependent formatting.
type Options struct {
	Width         int  // characters per device line
	CursorMarkers bool // reserve CursorColumns on list lines
}

// ReaderView is everything needed to draw one reader page.
type ReaderView struct {
	Page    int
	Total   int
	Text    string
	Subject string
}

// Machine holds all UI state.
type Machine struct {
	opts Options
	mode Mode
	err  string

	labels      []model.Label
	labelLines  []string
	labelCursor int

	labelID       string
	labelName     string
	messages      []model.MessageHeader
	messageLines  []string
	messageCursor int
	nextPageToken string

	readerID      string
	readerSubject string
	pages         [][]string
	page          int
}

// New returns a Machine in ModeBoot.
func New(opts Options) *Machine {
	return &Machine{opts: opts}
}

func (m *Machine) Mode() Mode       { return m.mode }
func (m *Machine) Err() string      { return m.err }
func (m *Machine) Options() Options { return m.opts }

// SetAuthRequired switches to the auth-required screen.
func (m *Machine) SetAuthRequired() {
	m.mode = ModeAuthRequired
	m.err = ""
}

// SetError switches to the error screen with msg.
func (m *Machine) SetError(msg string) {
	m.mode = ModeError
	m.err = msg
}

// listWidth is the room for list text after any cursor marker.
func (m *Machine) listWidth() int {
	w := m.opts.Width
	if m.opts.CursorMarkers {
		w -= CursorColumns
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Labels

// SetLabels replaces the label list and shows it.
func (m *Machine) SetLabels(labels []model.Label) {
	m.labels = SortLabels(labels)
	m.labelLines = make([]string, len(m.labels))
	for i, l := range m.labels {
		m.labelLines[i] = m.labelLine(l)
	}
	m.labelCursor = 0
	m.mode = ModeLabels
	m.err = ""
}

func (m *Machine) labelLine(l model.Label) string {
	name := l.Name
	if l.MessagesUnread != nil && *l.MessagesUnread > 0 {
		name = fmt.Sprintf("%s (%d)", name, *l.MessagesUnread)
	}
	return util.Truncate(name, m.listWidth())
}

func (m *Machine) Labels() []model.Label { return append([]model.Label(nil), m.labels...) }
func (m *Machine) LabelLines() []string  { return append([]string(nil), m.labelLines...) }
func (m *Machine) LabelCursor() int      { return m.labelCursor }

// LabelAt returns a copy of label i, or nil when out of range.
func (m *Machine) LabelAt(i int) *model.Label {
	if i < 0 || i >= len(m.labels) {
		return nil
	}
	l := m.labels[i]
	return &l
}

// LabelAtCursor returns the label under the cursor, or nil.
func (m *Machine) LabelAtCursor() *model.Label {
	return m.LabelAt(m.labelCursor)
}

// MoveLabelCursor moves the cursor by delta within bounds and reports
// whether it moved.
func (m *Machine) MoveLabelCursor(delta int) bool {
	return moveCursor(&m.labelCursor, len(m.labels), delta)
}

// SetLabelCursor places the cursor at i when i is in range.
func (m *Machine) SetLabelCursor(i int) bool {
	if i < 0 || i >= len(m.labels) {
		return false
	}
	m.labelCursor = i
	return true
}

// Messages

// SetMessages replaces the message list for a label and shows it.
func (m *Machine) SetMessages(labelID, labelName string, msgs []model.MessageHeader, nextPageToken string) {
	m.labelID = labelID
	m.labelName = labelName
	m.messages = append([]model.MessageHeader(nil), msgs...)
	m.messageLines = make([]string, len(m.messages))
	for i, h := range m.messages {
		m.messageLines[i] = m.messageLine(h)
	}
	m.messageCursor = 0
	m.nextPageToken = nextPageToken
	m.mode = ModeMessageList
	m.err = ""
}

// AppendMessages extends the loaded list, keeping the cursor, and replaces
// the continuation token.
func (m *Machine) AppendMessages(msgs []model.MessageHeader, nextPageToken string) {
	for _, h := range msgs {
		m.messages = append(m.messages, h)
		m.messageLines = append(m.messageLines, m.messageLine(h))
	}
	m.nextPageToken = nextPageToken
}

// messageLine renders "<marker><sender> · <subject>" clipped to the list width.
func (m *Machine) messageLine(h model.MessageHeader) string {
	width := m.listWidth()
	marker := readMarker
	if h.Unread {
		marker = unreadMarker
	}
	sender := util.Truncate(h.From, SenderWidth)
	prefix := marker + sender + separator
	room := width - utf8.RuneCountInString(prefix)
	if room < 1 {
		return util.Truncate(prefix, width)
	}
	return prefix + util.Truncate(h.Subject, room)
}

func (m *Machine) Messages() []model.MessageHeader {
	return append([]model.MessageHeader(nil), m.messages...)
}
func (m *Machine) MessageLines() []string { return append([]string(nil), m.messageLines...) }
func (m *Machine) MessageCursor() int     { return m.messageCursor }
func (m *Machine) LabelID() string        { return m.labelID }
func (m *Machine) LabelName() string      { return m.labelName }
func (m *Machine) NextPageToken() string  { return m.nextPageToken }

// HasMore reports whether a continuation token is held.
func (m *Machine) HasMore() bool { return m.nextPageToken != "" }

// AtLastMessage reports whether the cursor sits on the last loaded message.
func (m *Machine) AtLastMessage() bool {
	return len(m.messages) > 0 && m.messageCursor == len(m.messages)-1
}

// MessageAt returns a copy of message i, or nil when out of range.
func (m *Machine) MessageAt(i int) *model.MessageHeader {
	if i < 0 || i >= len(m.messages) {
		return nil
	}
	h := m.messages[i]
	return &h
}

// MessageAtCursor returns the message under the cursor, or nil.
func (m *Machine) MessageAtCursor() *model.MessageHeader {
	return m.MessageAt(m.messageCursor)
}

// MoveMessageCursor moves the cursor by delta within bounds and reports
// whether it moved.
func (m *Machine) MoveMessageCursor(delta int) bool {
	return moveCursor(&m.messageCursor, len(m.messages), delta)
}

// SetMessageCursor places the cursor at i when i is in range.
func (m *Machine) SetMessageCursor(i int) bool {
	if i < 0 || i >= len(m.messages) {
		return false
	}
	m.messageCursor = i
	return true
}

// MarkMessageRead clears the unread flag on id and refreshes its line.
func (m *Machine) MarkMessageRead(id string) bool {
	for i := range m.messages {
		if m.messages[i].ID != id {
			continue
		}
		m.messages[i].Unread = false
		m.messageLines[i] = m.messageLine(m.messages[i])
		return true
	}
	return false
}

// Reader

// EnterReader shows a paginated message starting at its first page.
func (m *Machine) EnterReader(messageID, subject string, pages [][]string) {
	if len(pages) == 0 {
		pages = [][]string{{""}}
	}
	m.readerID = messageID
	m.readerSubject = subject
	m.pages = pages
	m.page = 0
	m.mode = ModeReader
	m.err = ""
}

func (m *Machine) ReaderMessageID() string { return m.readerID }

// NextPage advances one page and reports whether it moved.
func (m *Machine) NextPage() bool {
	if m.page >= len(m.pages)-1 {
		return false
	}
	m.page++
	return true
}

// PrevPage goes back one page and reports whether it moved.
func (m *Machine) PrevPage() bool {
	if m.page <= 0 {
		return false
	}
	m.page--
	return true
}

// ReaderView returns the current page padded to linesPerPage.
func (m *Machine) ReaderView(linesPerPage int) ReaderView {
	return ReaderView{
		Page:    m.page,
		Total:   len(m.pages),
		Text:    layout.PageText(m.pages, m.page, linesPerPage),
		Subject: m.readerSubject,
	}
}

// Back navigation

// BackToLabels drops the message list and shows the labels again.
func (m *Machine) BackToLabels() {
	m.labelID, m.labelName = "", ""
	m.messages, m.messageLines = nil, nil
	m.messageCursor = 0
	m.nextPageToken = ""
	m.clearReader()
	m.mode = ModeLabels
	m.err = ""
}

// BackToMessageList drops the reader document and shows the list again.
func (m *Machine) BackToMessageList() {
	m.clearReader()
	m.mode = ModeMessageList
	m.err = ""
}

func (m *Machine) clearReader() {
	m.readerID, m.readerSubject = "", ""
	m.pages = nil
	m.page = 0
}

func moveCursor(cursor *int, n, delta int) bool {
	if n == 0 {
		return false
	}
	next := *cursor + delta
	if next < 0 {
		next = 0
	}
	if next > n-1 {
		next = n - 1
	}
	if next == *cursor {
		return false
	}
	*cursor = next
	return true
}
