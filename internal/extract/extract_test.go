package extract

import (
	"strings"
	"testing"
)

func TestFromHTML(t *testing.T) {
	cases := []struct {
		name     string
		html     string
		title    string
		contains []string
		excludes []string
	}{
		{
			name: "main wins over body chrome",
			html: `<!doctype html><html><head><title>Release notes</title></head><body>
				<nav>Home | Docs</nav>
				<main><h1>v2.1</h1><p>BEGIN fixed the parser END</p></main>
				<footer>Copyright</footer></body></html>`,
			title:    "Release notes",
			contains: []string{"v2.1", "BEGIN fixed the parser END"},
			excludes: []string{"Home | Docs", "Copyright"},
		},
		{
			name:     "article when there is no main",
			html:     `<html><body><aside>related</aside><article><p>[[article]]</p></article><p>outside</p></body></html>`,
			contains: []string{"[[article]]"},
			excludes: []string{"related", "outside"},
		},
		{
			name:     "body fallback",
			html:     `<html><head><title> Plain </title></head><body><h2>Heading</h2><p>Paragraph</p></body></html>`,
			title:    "Plain",
			contains: []string{"Heading\n", "Paragraph"},
		},
		{
			name:     "scripts and styles dropped",
			html:     `<html><body><script>var START = 1;</script><style>.END{}</style><p>START visible END</p></body></html>`,
			contains: []string{"START visible END"},
			excludes: []string{"var START", ".END{}"},
		},
		{
			name: "list items and code kept",
			html: `<html><body><article><ul><li>First item</li><li>Second item</li></ul>
				<pre><code>print("hello")
print("world")</code></pre></article></body></html>`,
			contains: []string{"First item", "Second item", "print(\"hello\")\nprint(\"world\")"},
		},
		{
			name: "consent banner dropped and pre kept verbatim",
			html: `<html><body>
				<div class="cookie-banner">Accept cookies</div>
				<p>BEGIN   report   END</p>
				<pre>line one
  line two</pre></body></html>`,
			contains: []string{"BEGIN report END", "line one\n  line two"},
			excludes: []string{"Accept cookies"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := FromHTML([]byte(tc.html))
			if doc.Title != tc.title {
				t.Fatalf("title = %q, want %q", doc.Title, tc.title)
			}
			for _, s := range tc.contains {
				if !strings.Contains(doc.Text, s) {
					t.Fatalf("expected %q in %q", s, doc.Text)
				}
			}
			for _, s := range tc.excludes {
				if strings.Contains(doc.Text, s) {
					t.Fatalf("did not expect %q in %q", s, doc.Text)
				}
			}
		})
	}
}

func TestTidy_CollapsesBlankRuns(t *testing.T) {
	got := tidy("\n\n  a   b \n\n\n c\n\n")
	if got != "a b\n\nc" {
		t.Fatalf("tidy = %q", got)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	cases := []struct {
		ct   string
		body string
		want bool
	}{
		{"text/html; charset=utf-8", "", true},
		{"application/xhtml+xml", "", true},
		{"application/json", "<html>", false},
		{"", "  <!DOCTYPE html><html></html>", true},
		{"", "plain text", false},
	}
	for _, c := range cases {
		if got := LooksLikeHTML(c.ct, []byte(c.body)); got != c.want {
			t.Fatalf("LooksLikeHTML(%q, %q) = %v, want %v", c.ct, c.body, got, c.want)
		}
	}
}
