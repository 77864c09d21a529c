package nav

import (
	"strings"
	"testing"
	"unicode/utf8"

	"g2gmail/internal/model"
)

func intp(n int) *int { return &n }

func TestSortLabels_Example(t *testing.T) {
	got := SortLabels([]model.Label{
		{ID: "SENT"},
		{ID: "INBOX"},
		{ID: "Label_1", Name: "Alpha", Type: model.LabelTypeUser},
	})
	var names []string
	for _, l := range got {
		names = append(names, l.Name)
	}
	if strings.Join(names, ",") != "Inbox,Sent,Alpha" {
		t.Fatalf("order = %v", names)
	}
	if got[0].Type != model.LabelTypeSystem {
		t.Fatalf("INBOX type = %q", got[0].Type)
	}
}

func TestSortLabels_MixedAndDropped(t *testing.T) {
	got := SortLabels([]model.Label{
		{ID: "Label_9", Name: "zeta", Type: model.LabelTypeUser},
		{ID: "TRASH", Name: "TRASH", Type: model.LabelTypeSystem},
		{ID: "CATEGORY_SOCIAL", Name: "CATEGORY_SOCIAL", Type: model.LabelTypeSystem},
		{ID: "Label_2", Name: "Beta", Type: model.LabelTypeUser},
		{ID: "STARRED", Type: model.LabelTypeSystem},
		{ID: "weird", Name: "NoType"},
		{ID: "Label_3", Name: "alpha", Type: model.LabelTypeUser},
		{ID: "INBOX", Type: model.LabelTypeSystem},
	})
	want := []string{"Inbox", "Starred", "Trash", "alpha", "Beta", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("got %d labels: %+v", len(got), got)
	}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("idx %d want %s got %s", i, w, got[i].Name)
		}
	}
}

func TestSetLabels_ResetsCursorAndTruncates(t *testing.T) {
	m := New(Options{Width: 12, CursorMarkers: true})
	m.SetLabels([]model.Label{
		{ID: "INBOX", MessagesUnread: intp(3)},
		{ID: "L1", Name: "A very long label name", Type: model.LabelTypeUser},
	})
	if m.Mode() != ModeLabels {
		t.Fatalf("mode = %v", m.Mode())
	}
	lines := m.LabelLines()
	if lines[0] != "Inbox (3)" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if lines[1] != "A very lo…" {
		t.Fatalf("line 1 = %q", lines[1])
	}
	m.MoveLabelCursor(1)
	m.SetLabels([]model.Label{{ID: "INBOX"}, {ID: "SENT"}})
	if m.LabelCursor() != 0 {
		t.Fatalf("cursor not reset: %d", m.LabelCursor())
	}
}

func TestMoveLabelCursor_Bounds(t *testing.T) {
	m := New(Options{Width: 20})
	if m.MoveLabelCursor(1) {
		t.Fatal("moved on empty list")
	}
	m.SetLabels([]model.Label{{ID: "INBOX"}, {ID: "SENT"}, {ID: "TRASH"}})

	if m.MoveLabelCursor(-1) {
		t.Fatal("moved before first")
	}
	steps := []struct {
		delta int
		moved bool
		want  int
	}{
		{1, true, 1},
		{1, true, 2},
		{1, false, 2},
		{5, false, 2},
		{-10, true, 0},
		{-1, false, 0},
	}
	for i, s := range steps {
		if got := m.MoveLabelCursor(s.delta); got != s.moved {
			t.Fatalf("step %d: moved = %v; want %v", i, got, s.moved)
		}
		if m.LabelCursor() != s.want {
			t.Fatalf("step %d: cursor = %d; want %d", i, m.LabelCursor(), s.want)
		}
	}
	if l := m.LabelAtCursor(); l == nil || l.ID != "INBOX" {
		t.Fatalf("LabelAtCursor = %+v", l)
	}
}

func TestLabelAt_OutOfRange(t *testing.T) {
	m := New(Options{Width: 20})
	if m.LabelAt(0) != nil || m.LabelAtCursor() != nil {
		t.Fatal("expected nil on empty list")
	}
	m.SetLabels([]model.Label{{ID: "INBOX"}})
	if m.LabelAt(-1) != nil || m.LabelAt(1) != nil {
		t.Fatal("expected nil out of range")
	}
	l := m.LabelAt(0)
	l.Name = "mutated"
	if m.LabelAt(0).Name != "Inbox" {
		t.Fatal("LabelAt leaked internal state")
	}
}

func TestMessageLine_Format(t *testing.T) {
	m := New(Options{Width: 40})
	m.SetMessages("INBOX", "Inbox", []model.MessageHeader{
		{ID: "1", From: "Alice", Subject: "Lunch?", Unread: true},
		{ID: "2", From: "Bartholomew Longname", Subject: "A subject that is much too long to fit on the line", Unread: false},
	}, "")
	lines := m.MessageLines()
	if lines[0] != "*Alice · Lunch?" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	want := " Bartholomew L… · A subject that is muc…"
	if lines[1] != want {
		t.Fatalf("line 1 = %q; want %q", lines[1], want)
	}
	if n := utf8.RuneCountInString(lines[1]); n != 40 {
		t.Fatalf("line 1 width = %d", n)
	}

	c := New(Options{Width: 40, CursorMarkers: true})
	c.SetMessages("INBOX", "Inbox", []model.MessageHeader{
		{ID: "2", From: "Bartholomew Longname", Subject: "A subject that is much too long to fit on the line"},
	}, "")
	if n := utf8.RuneCountInString(c.MessageLines()[0]); n != 38 {
		t.Fatalf("cursor-mode width = %d", n)
	}
}

func TestMessages_SetAppendAndMarkRead(t *testing.T) {
	m := New(Options{Width: 30})
	m.SetMessages("INBOX", "Inbox", []model.MessageHeader{
		{ID: "a", From: "A", Subject: "one", Unread: true},
		{ID: "b", From: "B", Subject: "two"},
	}, "tok1")
	if m.Mode() != ModeMessageList || !m.HasMore() {
		t.Fatalf("mode=%v more=%v", m.Mode(), m.HasMore())
	}
	m.MoveMessageCursor(1)
	if !m.AtLastMessage() {
		t.Fatal("expected cursor at last")
	}

	m.AppendMessages([]model.MessageHeader{{ID: "c", From: "C", Subject: "three"}}, "")
	if m.MessageCursor() != 1 {
		t.Fatalf("append moved cursor to %d", m.MessageCursor())
	}
	if len(m.Messages()) != 3 || len(m.MessageLines()) != 3 {
		t.Fatalf("len = %d/%d", len(m.Messages()), len(m.MessageLines()))
	}
	if m.HasMore() {
		t.Fatal("token should be cleared")
	}

	if !m.MarkMessageRead("a") {
		t.Fatal("MarkMessageRead(a) = false")
	}
	if m.MessageAt(0).Unread || !strings.HasPrefix(m.MessageLines()[0], " ") {
		t.Fatalf("message a still unread: %q", m.MessageLines()[0])
	}
	if m.MarkMessageRead("missing") {
		t.Fatal("MarkMessageRead(missing) = true")
	}

	m.SetMessages("SENT", "Sent", []model.MessageHeader{{ID: "x"}}, "")
	if m.MessageCursor() != 0 || m.LabelID() != "SENT" {
		t.Fatalf("SetMessages did not reset: cursor=%d label=%s", m.MessageCursor(), m.LabelID())
	}
}

func TestReader_Paging(t *testing.T) {
	m := New(Options{Width: 20})
	m.EnterReader("id1", "Hello", [][]string{{"a", "b"}, {"c"}})
	if m.Mode() != ModeReader {
		t.Fatalf("mode = %v", m.Mode())
	}
	if m.PrevPage() {
		t.Fatal("PrevPage at 0 moved")
	}
	v := m.ReaderView(3)
	if v.Page != 0 || v.Total != 2 || v.Text != "a\nb\n" || v.Subject != "Hello" {
		t.Fatalf("view = %+v", v)
	}
	if !m.NextPage() {
		t.Fatal("NextPage did not move")
	}
	if m.NextPage() {
		t.Fatal("NextPage at last moved")
	}
	if v := m.ReaderView(3); v.Page != 1 || v.Text != "c\n\n" {
		t.Fatalf("view = %+v", v)
	}
	if !m.PrevPage() || m.ReaderView(3).Page != 0 {
		t.Fatal("PrevPage did not return to 0")
	}
}

func TestBackNavigation_ClearsDownstream(t *testing.T) {
	m := New(Options{Width: 20})
	m.SetLabels([]model.Label{{ID: "INBOX"}, {ID: "SENT"}})
	m.MoveLabelCursor(1)
	m.SetMessages("SENT", "Sent", []model.MessageHeader{{ID: "1"}}, "tok")
	m.EnterReader("1", "s", [][]string{{"x"}})

	m.BackToMessageList()
	if m.Mode() != ModeMessageList || m.ReaderMessageID() != "" {
		t.Fatalf("mode=%v reader=%q", m.Mode(), m.ReaderMessageID())
	}
	if v := m.ReaderView(2); v.Total != 0 || v.Text != "\n" {
		t.Fatalf("reader not cleared: %+v", v)
	}
	if len(m.Messages()) != 1 {
		t.Fatal("messages dropped on BackToMessageList")
	}

	m.BackToLabels()
	if m.Mode() != ModeLabels || len(m.Messages()) != 0 || m.HasMore() {
		t.Fatalf("message list not cleared: mode=%v n=%d", m.Mode(), len(m.Messages()))
	}
	if m.LabelCursor() != 1 {
		t.Fatalf("label cursor lost: %d", m.LabelCursor())
	}
}

func TestErrorAndAuthTransitions(t *testing.T) {
	m := New(Options{Width: 20})
	if m.Mode() != ModeBoot {
		t.Fatalf("initial mode = %v", m.Mode())
	}
	m.SetError("boom")
	if m.Mode() != ModeError || m.Err() != "boom" {
		t.Fatalf("mode=%v err=%q", m.Mode(), m.Err())
	}
	m.SetAuthRequired()
	if m.Mode() != ModeAuthRequired || m.Err() != "" {
		t.Fatalf("mode=%v err=%q", m.Mode(), m.Err())
	}
	m.SetError("again")
	m.SetLabels(nil)
	if m.Mode() != ModeLabels || m.Err() != "" {
		t.Fatalf("mode=%v err=%q", m.Mode(), m.Err())
	}
}
