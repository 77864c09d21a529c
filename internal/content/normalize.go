// Package content turns message bodies into flat, printable-ASCII lines.
package content

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Placeholder is the single line emitted when a message has no usable body.
const Placeholder = "(no content)"

// Normalize converts an HTML body to plain lines, falling back to the plain
// text body when the HTML is empty, unparsable, or renders to nothing. The
// result is never empty.
func Normalize(markup, plain string) []string {
	if strings.TrimSpace(markup) == "" {
		return FromPlain(plain)
	}
	lines, err := FromHTML(markup)
	if err != nil || len(lines) == 0 {
		return FromPlain(plain)
	}
	return lines
}

// FromPlain cleans a plain-text body. Leading indentation is preserved.
func FromPlain(plain string) []string {
	plain = strings.ReplaceAll(plain, "\r\n", "\n")
	plain = strings.ReplaceAll(plain, "\r", "\n")
	if strings.TrimSpace(plain) == "" {
		return []string{Placeholder}
	}
	raw := strings.Split(plain, "\n")
	for i, l := range raw {
		raw[i] = strings.TrimRightFunc(asciiOnly(l), unicode.IsSpace)
	}
	lines := collapseBlank(raw)
	if len(lines) == 0 {
		return []string{Placeholder}
	}
	return lines
}

// FromHTML renders markup to lines. It returns no lines (and no error) when
// the document has no visible text.
func FromHTML(markup string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	render(&b, doc)

	raw := strings.Split(b.String(), "\n")
	for i, l := range raw {
		raw[i] = strings.TrimSpace(asciiOnly(strings.TrimSpace(l)))
	}
	return collapseBlank(raw), nil
}

type nodeKind int

const (
	kindText nodeKind = iota
	kindBlock
	kindBreak
	kindRule
	kindListItem
	kindStripped
	kindElement
)

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Tr: true, atom.Table: true,
	atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Pre: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Nav: true, atom.Aside: true, atom.Address: true, atom.Dl: true,
	atom.Dt: true, atom.Dd: true, atom.Figure: true, atom.Figcaption: true,
	atom.Form: true, atom.Fieldset: true, atom.Main: true, atom.Center: true,
	atom.Thead: true, atom.Tbody: true, atom.Tfoot: true, atom.Caption: true,
}

var strippedTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Svg: true,
	atom.Noscript: true, atom.Template: true,
}

func classify(n *html.Node) nodeKind {
	switch n.Type {
	case html.TextNode:
		return kindText
	case html.ElementNode:
	case html.DocumentNode:
		return kindElement
	default:
		return kindStripped
	}
	switch {
	case n.DataAtom == atom.Br:
		return kindBreak
	case n.DataAtom == atom.Hr:
		return kindRule
	case n.DataAtom == atom.Li:
		return kindListItem
	case strippedTags[n.DataAtom]:
		return kindStripped
	case blockTags[n.DataAtom]:
		return kindBlock
	}
	return kindElement
}

func render(b *strings.Builder, n *html.Node) {
	switch classify(n) {
	case kindText:
		b.WriteString(collapseSpace(n.Data))
	case kindBreak:
		b.WriteByte('\n')
	case kindRule:
		b.WriteString("\n---\n")
	case kindListItem:
		b.WriteString("\n- ")
		renderChildren(b, n)
		b.WriteByte('\n')
	case kindBlock:
		b.WriteByte('\n')
		renderChildren(b, n)
		b.WriteByte('\n')
	case kindStripped:
	case kindElement:
		renderChildren(b, n)
		if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
			b.WriteByte(' ')
		}
	}
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(b, c)
	}
}

// collapseSpace folds every whitespace run (including no-break spaces) into
// a single ASCII space.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Header flattens a header value (subject, address, date) to one line of
// printable ASCII.
func Header(v string) string {
	return strings.TrimSpace(collapseSpace(asciiOnly(v)))
}

// asciiOnly drops everything outside printable ASCII, keeping tabs.
func asciiOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' || (c >= 0x20 && c <= 0x7e) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// collapseBlank keeps at most one blank line in a row and trims blank lines
// from both ends.
func collapseBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	blank := true // suppresses leading blanks
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, l)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
