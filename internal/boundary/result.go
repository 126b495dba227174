package boundary

// Result holds the matches of one Extract call. Multiple mirrors the
// scanner's MultipleMatches setting and selects which shape callers see.
type Result struct {
	Matches  []Match
	Multiple bool
}

// Strings returns the extracted texts in order, never nil.
func (r Result) Strings() []string {
	out := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		out = append(out, m.Text)
	}
	return out
}

// First returns the first extracted text; ok is false for no match.
func (r Result) First() (string, bool) {
	if len(r.Matches) == 0 {
		return "", false
	}
	return r.Matches[0].Text, true
}

// Empty reports whether nothing matched.
func (r Result) Empty() bool { return len(r.Matches) == 0 }

// Value returns []string for multi-match results, otherwise the first string
// or nil when nothing matched.
func (r Result) Value() any {
	if r.Multiple {
		return r.Strings()
	}
	if v, ok := r.First(); ok {
		return v
	}
	return nil
}
