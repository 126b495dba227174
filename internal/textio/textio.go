// Package textio turns fetched bytes into scan-ready UTF-8 text.
package textio

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Decode converts body to UTF-8 using the charset parameter of contentType.
// Bodies without a declared charset, or declared as UTF-8, are returned
// unchanged and unchecked. Unknown charsets are an error.
func Decode(body []byte, contentType string) (string, error) {
	label := charsetOf(contentType)
	if label == "" {
		return string(body), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("unknown charset %q: %w", label, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return string(body), nil
	}
	r := transform.NewReader(bytes.NewReader(body), enc.NewDecoder())
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	return string(b), nil
}

// Supported reports whether label names a charset Decode understands.
func Supported(label string) bool {
	_, err := htmlindex.Get(strings.TrimSpace(label))
	return err == nil
}

func charsetOf(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}

// Normalize returns s in Unicode NFC so that composed and decomposed forms of
// the same marker compare equal during a scan.
func Normalize(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// IsText reports whether b looks like textual content.
func IsText(b []byte) bool {
	return utf8.Valid(b) && bytes.IndexByte(b, 0) < 0
}
