// Package layout reflows plain text into fixed-width lines and fixed-height
// pages for a character-cell display.
//
// All widths are counted in runes. Every function is pure.
package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// WrapLine greedily word-wraps line to maxWidth. The line's leading
// whitespace is kept verbatim and repeated on every continuation line.
// Words longer than the available width are split hard.
func WrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 || utf8.RuneCountInString(line) <= maxWidth {
		return []string{line}
	}

	rest := strings.TrimLeftFunc(line, unicode.IsSpace)
	indent := line[:len(line)-len(rest)]
	words := strings.Fields(rest)
	if len(words) == 0 {
		return []string{cut(line, maxWidth)}
	}

	width := maxWidth - utf8.RuneCountInString(indent)
	if width < 1 {
		width = 1
	}

	var out []string
	flush := func(s string) {
		out = append(out, cut(indent+s, maxWidth))
	}

	cur, curLen := "", 0
	for _, w := range words {
		wLen := utf8.RuneCountInString(w)
		switch {
		case wLen > width:
			if curLen > 0 {
				flush(cur)
			}
			r := []rune(w)
			for len(r) > width {
				flush(string(r[:width]))
				r = r[width:]
			}
			cur, curLen = string(r), len(r)
		case curLen == 0:
			cur, curLen = w, wLen
		case curLen+1+wLen <= width:
			cur += " " + w
			curLen += 1 + wLen
		default:
			flush(cur)
			cur, curLen = w, wLen
		}
	}
	if curLen > 0 {
		flush(cur)
	}
	return out
}

// WrapLines wraps each line in order. The result is never empty.
func WrapLines(lines []string, maxWidth int) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, WrapLine(l, maxWidth)...)
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// Paginate chunks lines into pages of linesPerPage. The last page is not
// padded. A non-positive linesPerPage puts everything on one page, and empty
// input yields a single page holding one empty line.
func Paginate(lines []string, linesPerPage int) [][]string {
	if len(lines) == 0 {
		return [][]string{{""}}
	}
	if linesPerPage <= 0 {
		return [][]string{append([]string(nil), lines...)}
	}
	pages := make([][]string, 0, (len(lines)+linesPerPage-1)/linesPerPage)
	for start := 0; start < len(lines); start += linesPerPage {
		end := start + linesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, append([]string(nil), lines[start:end]...))
	}
	return pages
}

// PageText returns page index (clamped) right-padded with empty lines to
// linesPerPage and joined with newlines.
func PageText(pages [][]string, index, linesPerPage int) string {
	var page []string
	if len(pages) > 0 {
		if index < 0 {
			index = 0
		}
		if index > len(pages)-1 {
			index = len(pages) - 1
		}
		page = pages[index]
	}
	lines := append([]string(nil), page...)
	for len(lines) < linesPerPage {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// cut truncates s to n runes with no marker.
func cut(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
