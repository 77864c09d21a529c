package tui

import "g2gmail/internal/status"

// Messages sent from the device side into the Bubble Tea loop.

type readyMsg struct{}

type listMsg struct {
	screen   screen
	items    []string
	selected int
	status   string
}

type readerMsg struct {
	text   string
	status string
	// update is set for in-place page flips.
	update bool
}

type textMsg string

type wakeMsg bool

type companionMsg status.Status
