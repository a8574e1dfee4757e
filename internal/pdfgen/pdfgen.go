// Package pdfgen writes a minimal single-page PDF 1.4 document without any
// external rendering dependency. Output is a title line followed by body
// lines in Helvetica, clipped to one A4 page.
package pdfgen

import (
	"bytes"
	"fmt"
	"strings"
)

// sanitize keeps text inside the printable ASCII range and escapes the PDF
// string delimiters.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 32 || r > 126 {
			b.WriteByte('?')
			continue
		}
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '(':
			b.WriteString(`\(`)
		case ')':
			b.WriteString(`\)`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Render produces the document bytes for a title and body lines. Lines that
// would fall below the page margin are dropped.
func Render(title string, lines []string) []byte {
	header := []byte("%PDF-1.4\n")

	var objs [][]byte
	var offsets []int
	addObj := func(content []byte) {
		offset := len(header)
		for _, o := range objs {
			offset += len(o)
		}
		offsets = append(offsets, offset)
		objs = append(objs, content)
	}

	addObj([]byte("1 0 obj << /Type /Catalog /Pages 2 0 R >>\nendobj\n"))
	addObj([]byte("2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n"))
	addObj([]byte("5 0 obj << /Type /Font /Subtype /Type1 /Name /F1 /BaseFont /Helvetica >>\nendobj\n"))

	content := []string{
		"BT",
		"/F1 12 Tf",
		"50 800 Td",
		fmt.Sprintf("(%s) Tj", sanitize(title)),
	}
	y := 780
	for _, line := range lines {
		content = append(content, "0 -20 Td", fmt.Sprintf("(%s) Tj", sanitize(line)))
		y -= 20
		if y < 60 {
			break
		}
	}
	content = append(content, "ET")
	stream := []byte(strings.Join(content, "\n") + "\n")

	addObj([]byte(fmt.Sprintf("4 0 obj << /Length %d >>\nstream\n%sendstream\nendobj\n", len(stream), stream)))
	addObj([]byte("3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] " +
		"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n"))

	var body bytes.Buffer
	body.Write(header)
	for _, o := range objs {
		body.Write(o)
	}
	startXref := body.Len()

	xref := []string{"xref", fmt.Sprintf("0 %d", len(offsets)+1), "0000000000 65535 f "}
	for _, off := range offsets {
		xref = append(xref, fmt.Sprintf("%010d 00000 n ", off))
	}
	body.WriteString(strings.Join(xref, "\n") + "\n")
	body.WriteString(fmt.Sprintf("trailer << /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, startXref))
	return body.Bytes()
}
