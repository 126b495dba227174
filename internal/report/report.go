// Package report renders extraction results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperifyio/goextract/internal/boundary"
)

// Format selects an output renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts a format name or common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Entry is the outcome of one rule applied to one source.
type Entry struct {
	Source   string           `json:"source"`
	Rule     string           `json:"rule"`
	Multiple bool             `json:"multiple"`
	Matches  []boundary.Match `json:"matches"`
}

// NewEntry records res for source and rule.
func NewEntry(source, rule string, res boundary.Result) Entry {
	ms := res.Matches
	if ms == nil {
		ms = []boundary.Match{}
	}
	return Entry{Source: source, Rule: rule, Multiple: res.Multiple, Matches: ms}
}

// Report is the full set of entries for a run, in input then rule order.
type Report struct {
	RunID   string  `json:"run_id,omitempty"`
	Entries []Entry `json:"entries"`
}

// Total returns the number of matches across all entries.
func (r Report) Total() int {
	n := 0
	for _, e := range r.Entries {
		n += len(e.Matches)
	}
	return n
}

// Options tune the text renderers.
type Options struct {
	// Spans appends [start,end) offsets to each match.
	Spans bool
}

// WriteText prints one match per line. The line is prefixed with the source
// and rule when the report spans more than one of either.
func WriteText(w io.Writer, r Report, opts Options) error {
	prefix := needsPrefix(r)
	for _, e := range r.Entries {
		for _, m := range e.Matches {
			var line strings.Builder
			if prefix {
				fmt.Fprintf(&line, "%s\t%s\t", e.Source, e.Rule)
			}
			line.WriteString(m.Text)
			if opts.Spans {
				fmt.Fprintf(&line, "\t[%d,%d)", m.Span.Start, m.Span.End)
			}
			line.WriteByte('\n')
			if _, err := io.WriteString(w, line.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

func needsPrefix(r Report) bool {
	sources := map[string]bool{}
	rules := map[string]bool{}
	for _, e := range r.Entries {
		sources[e.Source] = true
		rules[e.Rule] = true
	}
	return len(sources) > 1 || len(rules) > 1
}

// WriteJSON writes the report as indented JSON. Spans are omitted unless
// requested.
func WriteJSON(w io.Writer, r Report, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if opts.Spans {
		return enc.Encode(r)
	}
	type plain struct {
		Source   string   `json:"source"`
		Rule     string   `json:"rule"`
		Multiple bool     `json:"multiple"`
		Matches  []string `json:"matches"`
	}
	out := struct {
		RunID   string  `json:"run_id,omitempty"`
		Entries []plain `json:"entries"`
	}{RunID: r.RunID, Entries: make([]plain, 0, len(r.Entries))}
	for _, e := range r.Entries {
		out.Entries = append(out.Entries, plain{
			Source:   e.Source,
			Rule:     e.Rule,
			Multiple: e.Multiple,
			Matches:  boundary.Result{Matches: e.Matches}.Strings(),
		})
	}
	return enc.Encode(out)
}

// Markdown renders the report grouped by source, one section per rule.
// Multi-line matches are fenced.
func Markdown(r Report) string {
	var b strings.Builder
	b.WriteString("# Extraction report\n\n")
	last := ""
	for _, e := range r.Entries {
		if e.Source != last {
			fmt.Fprintf(&b, "## %s\n\n", sourceLink(e.Source))
			last = e.Source
		}
		fmt.Fprintf(&b, "### %s (%d)\n\n", e.Rule, len(e.Matches))
		if len(e.Matches) == 0 {
			b.WriteString("_No matches._\n\n")
			continue
		}
		for _, m := range e.Matches {
			if strings.Contains(m.Text, "\n") {
				b.WriteString("```\n" + m.Text + "\n```\n\n")
				continue
			}
			b.WriteString("- " + m.Text + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func sourceLink(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return "[" + src + "](" + src + ")"
	}
	return src
}

// WriteMarkdown writes Markdown(r) to w.
func WriteMarkdown(w io.Writer, r Report) error {
	_, err := io.WriteString(w, Markdown(r))
	return err
}
