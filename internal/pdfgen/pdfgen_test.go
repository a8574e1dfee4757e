package pdfgen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderStructure(t *testing.T) {
	out := Render("Analysis Report", []string{"line one", "line two"})

	require.True(t, bytes.HasPrefix(out, []byte("%PDF-1.4\n")))
	require.True(t, bytes.HasSuffix(out, []byte("%%EOF\n")))
	require.Contains(t, string(out), "/BaseFont /Helvetica")
	require.Contains(t, string(out), "(Analysis Report) Tj")
	require.Contains(t, string(out), "(line one) Tj")
	require.Contains(t, string(out), "trailer << /Size 6 /Root 1 0 R >>")
}

func TestRenderEscapesDelimiters(t *testing.T) {
	out := string(Render("t", []string{`a (b) c\d`}))
	require.Contains(t, out, `(a \(b\) c\\d) Tj`)
}

func TestRenderReplacesNonASCII(t *testing.T) {
	out := string(Render("t", []string{"café – report"}))
	require.Contains(t, out, "(caf? ? report) Tj")
}

func TestRenderClipsAtPageBottom(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "body line"
	}
	out := string(Render("t", lines))
	// 780 down to 60 in 20pt steps allows 37 body lines at most.
	require.LessOrEqual(t, bytes.Count([]byte(out), []byte(") Tj")), 39)
}

func TestRenderXrefOffsetsResolve(t *testing.T) {
	out := Render("t", []string{"x"})
	idx := bytes.Index(out, []byte("1 0 obj"))
	require.Contains(t, string(out), "0000000009 00000 n ")
	require.Equal(t, 9, idx)
}
