package model

import (
	"errors"
	"fmt"
	"time"
)

// LabelType classifies a mailbox label.
type LabelType string

const (
	LabelTypeSystem LabelType = "system"
	LabelTypeUser   LabelType = "user"
)

// Label is a mailbox category as reported by the data source.
// MessagesTotal and MessagesUnread are nil when the source did not report them.
type Label struct {
	ID             string
	Name           string
	Type           LabelType
	MessagesTotal  *int
	MessagesUnread *int
}

// MessageHeader is one row of a message list.
type MessageHeader struct {
	ID       string
	ThreadID string
	Subject  string
	From     string // sender display name
	Date     string // short display date
	Snippet  string
	Unread   bool
}

// MessagePage is one batch of a message listing. An empty NextPageToken
// means the listing is exhausted.
type MessagePage struct {
	Messages      []MessageHeader
	NextPageToken string
}

// RawMessage is a full message as fetched, before normalization.
type RawMessage struct {
	ID       string
	Subject  string
	From     string
	To       string
	Date     string
	Snippet  string
	Plain    string
	HTML     string
	Received time.Time
}

// MessageBody is an opened message reduced to plain text lines.
type MessageBody struct {
	ID      string
	Subject string
	From    string
	To      string
	Date    string
	Lines   []string
}

// GestureKind enumerates the events a device reports.
type GestureKind int

const (
	ScrollForward GestureKind = iota
	ScrollBackward
	Tap
	DoubleTap
	ForegroundEnter
	ForegroundExit
)

func (k GestureKind) String() string {
	switch k {
	case ScrollForward:
		return "scroll-forward"
	case ScrollBackward:
		return "scroll-backward"
	case Tap:
		return "tap"
	case DoubleTap:
		return "double-tap"
	case ForegroundEnter:
		return "foreground-enter"
	case ForegroundExit:
		return "foreground-exit"
	}
	return fmt.Sprintf("gesture(%d)", int(k))
}

// IsScroll reports whether k is subject to scroll debouncing.
func (k GestureKind) IsScroll() bool {
	return k == ScrollForward || k == ScrollBackward
}

// Gesture is a single device event. Index is only meaningful when HasIndex
// is set, which happens on devices with native list selection.
type Gesture struct {
	Kind     GestureKind
	Index    int
	HasIndex bool
}

// ErrNotAuthenticated is returned by credential stores that hold nothing.
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthError indicates that the data source rejected our credentials.
type AuthError struct {
	Source  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Source, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
