// Package boundary extracts spans of text delimited by start and end markers.
//
// A Scanner walks its input once, left to right. Each iteration looks for the
// start boundary from the cursor, then for the end boundary after it, emits
// the text between them and continues after the end boundary. Spans never
// overlap and consumed text is never rescanned.
package boundary

import "strings"

// Span is a half-open byte range [Start, End) in the scanned text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Match is one extracted span. Text is trimmed when the scanner trims
// results; Span always refers to the untrimmed region.
type Match struct {
	Text string `json:"text"`
	Span Span   `json:"span"`
}

// Scanner extracts spans according to a fixed Config. It holds no mutable
// state and is safe for concurrent use.
type Scanner struct {
	cfg Config
}

// New validates cfg and returns a Scanner bound to it.
func New(cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !present(cfg.Start) {
		cfg.Start = nil
	}
	if !present(cfg.End) {
		cfg.End = nil
	}
	return &Scanner{cfg: cfg}, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(cfg Config) *Scanner {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Config returns a copy of the scanner's configuration.
func (s *Scanner) Config() Config { return s.cfg }

// Extract scans text and returns the result in the shape selected by
// MultipleMatches. An empty text yields an empty result.
func (s *Scanner) Extract(text string) Result {
	return Result{Matches: s.Matches(text), Multiple: s.cfg.MultipleMatches}
}

// ExtractAll returns every extracted string in order. The slice is empty,
// never nil, when nothing matched.
func (s *Scanner) ExtractAll(text string) []string {
	return s.Extract(text).Strings()
}

// ExtractFirst returns the first extracted string. ok is false when nothing
// matched, which distinguishes "no match" from an empty match.
func (s *Scanner) ExtractFirst(text string) (string, bool) {
	ms := s.scan(text, true)
	if len(ms) == 0 {
		return "", false
	}
	return ms[0].Text, true
}

// Matches returns the extracted spans with their offsets.
func (s *Scanner) Matches(text string) []Match {
	return s.scan(text, !s.cfg.MultipleMatches)
}

func (s *Scanner) scan(text string, firstOnly bool) []Match {
	cfg := s.cfg
	out := []Match{}
	cursor := 0
	for cursor < len(text) {
		start := cursor
		if cfg.Start != nil {
			bs, be, ok := cfg.Start.Find(text, cursor)
			if !ok {
				break
			}
			cursor = be
			if cfg.IncludeDelimiters {
				start = bs
			} else {
				start = be
			}
		}

		var end int
		if cfg.End != nil {
			es, ee, ok := cfg.End.Find(text, cursor)
			if !ok {
				break
			}
			cursor = ee
			if cfg.IncludeDelimiters {
				end = ee
			} else {
				end = es
			}
		} else {
			end = len(text)
			cursor = len(text)
		}

		value := text[start:end]
		if cfg.TrimResult {
			value = strings.TrimSpace(value)
		}
		out = append(out, Match{Text: value, Span: Span{Start: start, End: end}})

		if firstOnly {
			break
		}
	}
	return out
}
