// Package extract reduces HTML documents to readable text so that boundary
// rules can target prose instead of markup.
package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the readable form of an HTML page.
type Document struct {
	Title string
	Text  string
}

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Iframe:   true,
	atom.Template: true,
}

// blocks get a line break before and after their content.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Tr: true, atom.Blockquote: true, atom.Table: true,
}

// FromHTML parses input and returns its title and readable text. Content is
// taken from <main>, else <article>, else <body>. Preformatted blocks keep
// their whitespace; everything else is collapsed to single spaces per line.
func FromHTML(input []byte) Document {
	root, err := html.Parse(bytes.NewReader(input))
	if err != nil || root == nil {
		return Document{}
	}
	var doc Document
	if t := first(root, atom.Title); t != nil {
		doc.Title = strings.TrimSpace(textOf(t))
	}
	content := first(root, atom.Main)
	if content == nil {
		content = first(root, atom.Article)
	}
	if content == nil {
		content = first(root, atom.Body)
	}
	if content == nil {
		return doc
	}
	w := &writer{}
	w.walk(content, false)
	doc.Text = tidy(w.String())
	return doc
}

// LooksLikeHTML reports whether a body should be treated as HTML, either by
// its declared content type or, when none is given, by sniffing a leading tag.
func LooksLikeHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" {
		return false
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func first(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := first(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

type writer struct {
	strings.Builder
}

func (w *writer) walk(n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			// Protect preformatted newlines from tidy by marking them.
			w.WriteString(strings.ReplaceAll(n.Data, "\n", "\x00"))
		} else {
			w.WriteString(n.Data)
		}
		return
	case html.ElementNode:
		if skipped[n.DataAtom] || isConsentBanner(n) {
			return
		}
	}
	inPre := pre || n.DataAtom == atom.Pre
	switch {
	case n.DataAtom == atom.Br:
		w.WriteString("\n")
	case n.DataAtom == atom.Pre, blocks[n.DataAtom]:
		w.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, inPre)
	}
	if n.DataAtom == atom.Pre || blocks[n.DataAtom] {
		w.WriteString("\n")
	}
}

func isConsentBanner(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "id" && a.Key != "class" && a.Key != "role" && a.Key != "aria-label" && !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		v := strings.ToLower(a.Val)
		if strings.Contains(v, "cookie") || strings.Contains(v, "consent") || strings.Contains(v, "gdpr") {
			return true
		}
	}
	return false
}

// tidy collapses runs of spaces within lines and keeps at most one blank
// line between paragraphs.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var l string
		if strings.Contains(line, "\x00") {
			l = strings.TrimRight(strings.ReplaceAll(line, "\x00", "\n"), " \t\r")
			l = strings.Trim(l, "\n")
		} else {
			l = strings.Join(strings.Fields(line), " ")
		}
		if l == "" {
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
		}
		out = append(out, l)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
