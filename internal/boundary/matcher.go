package boundary

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher locates a boundary marker in text. Find reports the half-open byte
// range [start, end) of the first occurrence at or after from.
type Matcher interface {
	Find(text string, from int) (start, end int, ok bool)
}

// Literal matches an exact substring.
type Literal string

// Find implements Matcher.
func (l Literal) Find(text string, from int) (int, int, bool) {
	if l == "" || from < 0 || from > len(text) {
		return 0, 0, false
	}
	i := strings.Index(text[from:], string(l))
	if i < 0 {
		return 0, 0, false
	}
	start := from + i
	return start, start + len(l), true
}

func (l Literal) String() string { return string(l) }

// Pattern matches the first occurrence of a regular expression. A match of
// zero length is treated as no match so that a scan can never stall.
type Pattern struct {
	re *regexp.Regexp
}

// CompilePattern compiles expr into a Pattern.
func CompilePattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

// MustPattern is like CompilePattern but panics on error. Intended for
// package-level variables and tests.
func MustPattern(expr string) Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Find implements Matcher.
func (p Pattern) Find(text string, from int) (int, int, bool) {
	if p.re == nil || from < 0 || from > len(text) {
		return 0, 0, false
	}
	// Slicing keeps ^ anchored at the cursor, matching how the scan treats
	// the remaining text as its own haystack.
	loc := p.re.FindStringIndex(text[from:])
	if loc == nil || loc[1] == loc[0] {
		return 0, 0, false
	}
	return from + loc[0], from + loc[1], true
}

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

// present reports whether m is a usable boundary. Nil matchers, empty
// literals and patterns without an expression count as absent.
func present(m Matcher) bool {
	switch v := m.(type) {
	case nil:
		return false
	case Literal:
		return v != ""
	case Pattern:
		return v.re != nil
	case *Pattern:
		return v != nil && v.re != nil
	}
	return true
}
