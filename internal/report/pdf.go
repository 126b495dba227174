package report

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// WritePDF renders the Markdown form of r as a simple A4 document. Headings
// get larger bold type, links stay clickable and fenced blocks use a
// monospaced font.
func WritePDF(w io.Writer, r Report) error {
	if w == nil {
		return errors.New("pdf output requires a writer")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Extraction report", true)
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	fenced := false
	sc := bufio.NewScanner(strings.NewReader(Markdown(r)))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "```") {
			fenced = !fenced
			if fenced {
				pdf.SetFont("Courier", "", 9)
			} else {
				pdf.SetFont("Helvetica", "", 11)
				pdf.Ln(2)
			}
			continue
		}
		if fenced {
			pdf.MultiCell(0, 4, tr(line), "", "L", false)
			continue
		}
		s := strings.TrimSpace(line)
		if s == "" {
			pdf.Ln(4)
			continue
		}
		if strings.HasPrefix(s, "#") {
			level := len(s) - len(strings.TrimLeft(s, "#"))
			size := 16.0 - 2*float64(level-1)
			pdf.SetFont("Helvetica", "B", size)
			writeInline(pdf, tr, strings.TrimSpace(s[level:]), 8)
			pdf.SetFont("Helvetica", "", 11)
			continue
		}
		writeInline(pdf, tr, s, 5)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return pdf.Output(w)
}

// writeInline writes s on its own line, turning [text](url) into links.
func writeInline(pdf *gofpdf.Fpdf, tr func(string) string, s string, h float64) {
	parts := linkRe.FindAllStringSubmatchIndex(s, -1)
	if len(parts) == 0 {
		pdf.MultiCell(0, h, tr(s), "", "L", false)
		return
	}
	pos := 0
	for _, m := range parts {
		if m[0] > pos {
			pdf.Write(h, tr(s[pos:m[0]]))
		}
		pdf.WriteLinkString(h, tr(s[m[2]:m[3]]), s[m[4]:m[5]])
		pos = m[1]
	}
	if pos < len(s) {
		pdf.Write(h, tr(s[pos:]))
	}
	pdf.Ln(h + 1)
}
