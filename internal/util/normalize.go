package util

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// SenderName extracts a display name from a From header.
// - "Name <user@example.com>" -> "Name"
// - "user@example.com" or "<user@example.com>" -> "user@example.com"
// - anything unparsable is returned trimmed, as-is
func SenderName(fromHeader string) string {
	fromHeader = strings.TrimSpace(fromHeader)
	if fromHeader == "" {
		return ""
	}
	addr, err := mail.ParseAddress(fromHeader)
	if err != nil || addr == nil {
		// Some headers are lists; take the first parsable entry.
		for _, p := range strings.Split(fromHeader, ",") {
			a, e := mail.ParseAddress(strings.TrimSpace(p))
			if e == nil && a != nil {
				addr = a
				break
			}
		}
	}
	if addr == nil {
		// Crude "Name <addr>" split for headers net/mail refuses.
		if idx := strings.Index(fromHeader, "<"); idx > 0 {
			if name := strings.Trim(strings.TrimSpace(fromHeader[:idx]), `"'`); name != "" {
				return name
			}
		}
		return fromHeader
	}
	if name := strings.TrimSpace(addr.Name); name != "" {
		return name
	}
	if addr.Address != "" {
		return addr.Address
	}
	return fromHeader
}

// ShortDate renders t as a time of day when it falls on the same local day
// as now, otherwise as month/day.
func ShortDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("1/2")
}

// Ellipsis is appended to truncated display strings.
const Ellipsis = "…"

// Truncate shortens s to at most max runes, ending with Ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return string(r[:1])
	}
	return string(r[:max-1]) + Ellipsis
}

// PadRight pads s with spaces to exactly width runes, truncating first if needed.
func PadRight(s string, width int) string {
	s = Truncate(s, width)
	if n := utf8.RuneCountInString(s); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s
}
