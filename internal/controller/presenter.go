package controller

import "g2gmail/internal/model"

// ListPresenter decides how list screens are drawn and how a gesture maps to
// a list index. The two implementations are mutually exclusive per device.
type ListPresenter interface {
	// CursorMarkers reports whether list lines need room for a marker.
	CursorMarkers() bool
	// MovesCursor reports whether scroll gestures move the list cursor.
	MovesCursor() bool
	// Items returns the lines to send to the device.
	Items(lines []string, cursor int) []string
	// Resolve returns the list index a gesture refers to.
	Resolve(g model.Gesture, cursor int) int
}

// NewListPresenter returns the native presenter when the device reports
// selections itself, otherwise a cursor presenter showing rows lines.
func NewListPresenter(native bool, rows int) ListPresenter {
	if native {
		return nativePresenter{}
	}
	if rows < 1 {
		rows = 1
	}
	return cursorPresenter{rows: rows}
}

const (
	cursorMarker = "> "
	blankMarker  = "  "
)

// cursorPresenter draws a window of rows lines containing the cursor.
type cursorPresenter struct {
	rows int
}

func (cursorPresenter) CursorMarkers() bool { return true }
func (cursorPresenter) MovesCursor() bool   { return true }

func (p cursorPresenter) Items(lines []string, cursor int) []string {
	if len(lines) == 0 {
		return nil
	}
	start := (cursor / p.rows) * p.rows
	end := start + p.rows
	if end > len(lines) {
		end = len(lines)
	}
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		marker := blankMarker
		if i == cursor {
			marker = cursorMarker
		}
		out = append(out, marker+lines[i])
	}
	return out
}

func (cursorPresenter) Resolve(_ model.Gesture, cursor int) int { return cursor }

// nativePresenter hands the whole list to the device, which tracks its own
// selection and reports it with each gesture.
type nativePresenter struct{}

func (nativePresenter) CursorMarkers() bool { return false }
func (nativePresenter) MovesCursor() bool   { return false }

func (nativePresenter) Items(lines []string, _ int) []string {
	return append([]string(nil), lines...)
}

func (nativePresenter) Resolve(g model.Gesture, cursor int) int {
	if g.HasIndex {
		return g.Index
	}
	return cursor
}
