package controller

import (
	"strings"
	"testing"

	"g2gmail/internal/model"
)

func TestCursorPresenter_Window(t *testing.T) {
	p := NewListPresenter(false, 3)
	lines := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		cursor int
		want   string
	}{
		{0, "> a|  b|  c"},
		{2, "  a|  b|> c"},
		{3, "> d|  e"},
		{4, "  d|> e"},
	}
	for _, tt := range tests {
		got := strings.Join(p.Items(lines, tt.cursor), "|")
		if got != tt.want {
			t.Errorf("cursor %d: got %q want %q", tt.cursor, got, tt.want)
		}
	}
	if p.Items(nil, 0) != nil {
		t.Error("expected nil for empty list")
	}
	if got := p.Resolve(model.Gesture{Kind: model.Tap, Index: 4, HasIndex: true}, 1); got != 1 {
		t.Errorf("cursor presenter resolved reported index: %d", got)
	}
}

func TestNativePresenter(t *testing.T) {
	p := NewListPresenter(true, 3)
	if p.CursorMarkers() || p.MovesCursor() {
		t.Fatal("native presenter should not draw or move a cursor")
	}
	lines := []string{"a", "b", "c", "d"}
	if got := strings.Join(p.Items(lines, 2), "|"); got != "a|b|c|d" {
		t.Fatalf("items = %q", got)
	}
	if got := p.Resolve(model.Gesture{Kind: model.Tap, Index: 3, HasIndex: true}, 0); got != 3 {
		t.Fatalf("resolve = %d", got)
	}
	if got := p.Resolve(model.Gesture{Kind: model.Tap}, 2); got != 2 {
		t.Fatalf("resolve without index = %d", got)
	}
}
