package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// writePDF writes a minimal PDF with one Helvetica text line per page.
func writePDF(t *testing.T, path string, pages []string) {
	t.Helper()
	n := len(pages)
	objs := make([]string, 0, 3+2*n)
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		objs = append(objs, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("data/a.pdf"))
	assert.True(t, Supported("data/A.PDF"))
	assert.True(t, Supported("notes.md"))
	assert.False(t, Supported("image.png"))
	assert.False(t, Supported("README"))
}

func TestParseFile_Unsupported(t *testing.T) {
	_, err := ParseFile("image.png")
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestParseFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, path, "plain text body")

	docs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plain text body", docs[0].Content)
	assert.Equal(t, path, docs[0].Source)
	assert.Equal(t, 0, docs[0].Page)
}

func TestParseFile_MalformedPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	writeFile(t, path, "this is not a pdf")

	_, err := ParseFile(path)
	assert.Error(t, err)
}

func TestLoadDirectory_PDFPagesZeroBased(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monopoly.pdf")
	writePDF(t, path, []string{"Passing GO pays 200", "Jail rules apply"})

	docs, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, 0, docs[0].Page)
	assert.Equal(t, path, docs[0].Source)
	assert.Contains(t, docs[0].Content, "Passing GO pays 200")

	assert.Equal(t, 1, docs[1].Page)
	assert.Equal(t, path, docs[1].Source)
	assert.Contains(t, docs[1].Content, "Jail rules apply")
}

func TestParseFile_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<w:document xmlns:w="w"><w:body>` +
			`<w:p><w:r><w:t>Roll two dice.</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Move clockwise.</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	})

	docs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Roll two dice.\nMove clockwise.", docs[0].Content)
	assert.Equal(t, path, docs[0].Source)
	assert.Equal(t, 0, docs[0].Page)
}

func TestParseFile_RTF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "house.rtf")
	writeFile(t, path, "{\\rtf1\\ansi\n{\\fonttbl\\f0\\fswiss\\fcharset0 Helvetica;}\n\\pard\n\n\\f0\\fs24 Hello rules world.}")

	docs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "Hello rules world.")
	assert.NotContains(t, docs[0].Content, "Helvetica")
	assert.Equal(t, 0, docs[0].Page)
}

func TestParseFile_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	writeFile(t, path, "# Title\n\nSome *bold* text with a [link](http://example.com).\n\n```go\nfmt.Println()\n```\n")

	docs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].Content
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some bold text with a link.")
	assert.Contains(t, text, "fmt.Println()")
	assert.NotContains(t, text, "*")
	assert.NotContains(t, text, "](")
	assert.NotContains(t, text, "```")
}

func TestParseFile_PPTXSlidesInNumericOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	slides := map[string]string{
		"ppt/slides/slide10.xml":           "Tenth",
		"ppt/slides/slide2.xml":            "Second",
		"ppt/slides/slide1.xml":            "First",
		"ppt/slides/_rels/slide1.xml.rels": "ignored",
	}
	for _, name := range []string{"ppt/slides/slide10.xml", "ppt/slides/slide2.xml", "ppt/slides/slide1.xml", "ppt/slides/_rels/slide1.xml.rels"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		body := `<p:sld xmlns:p="p" xmlns:a="a"><a:p><a:r><a:t>` + slides[name] + `</a:t></a:r></a:p></p:sld>`
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	docs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "First", docs[0].Content)
	assert.Equal(t, 0, docs[0].Page)
	assert.Equal(t, "Second", docs[1].Content)
	assert.Equal(t, 1, docs[1].Page)
	assert.Equal(t, "Tenth", docs[2].Content)
	assert.Equal(t, 9, docs[2].Page)
}

func TestParseFile_XLSXOnePagePerSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", "item"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B1", "price"))
	_, err := wb.NewSheet("Totals")
	require.NoError(t, err)
	require.NoError(t, wb.SetCellValue("Totals", "A1", "sum"))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	docs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].Content, "## Sheet: Sheet1")
	assert.Contains(t, docs[0].Content, "item\tprice")
	assert.Equal(t, 0, docs[0].Page)
	assert.Contains(t, docs[1].Content, "sum")
	assert.Equal(t, 1, docs[1].Page)
}

func TestExtractTextFromXML(t *testing.T) {
	body := `<w:document xmlns:w="w"><w:body>` +
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve"> world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	text, err := extractTextFromXML(body)
	require.NoError(t, err)
	assert.Equal(t, "Hello\t world\nSecond", text)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "bravo")
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "nested", "c.md"), "charlie")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "secret")
	writeFile(t, filepath.Join(dir, ".cache", "d.txt"), "cached")
	writeFile(t, filepath.Join(dir, "logo.png"), "png")

	docs, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, filepath.Join(dir, "a.txt"), docs[0].Source)
	assert.Equal(t, filepath.Join(dir, "b.txt"), docs[1].Source)
	assert.Equal(t, filepath.Join(dir, "nested", "c.md"), docs[2].Source)
	assert.Equal(t, "charlie", docs[2].Content)
}

func TestLoadDirectory_Missing(t *testing.T) {
	_, err := LoadDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadDirectory_MalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.pdf"), "garbage")

	_, err := LoadDirectory(dir)
	assert.Error(t, err)
}
