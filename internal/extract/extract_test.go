package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrefine/constants"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"one", 1},
		{"  leading and trailing  ", 3},
		{"tabs\tand\nnewlines  mixed", 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountWords(tt.in), "CountWords(%q)", tt.in)
	}
}

func TestExtract_PlainText(t *testing.T) {
	path := writeFile(t, "a.txt", []byte("  Hello  world\r\n\r\nthis is text  \n"))
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "Hello  world\n\nthis is text", res.Text)
	assert.Equal(t, 5, res.WordCount)
	assert.Equal(t, "text", res.Method)
}

func TestExtract_EmptyTextHasZeroWords(t *testing.T) {
	path := writeFile(t, "empty.txt", nil)
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypeText)
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, 0, res.WordCount)
}

func TestExtract_Latin1Text(t *testing.T) {
	path := writeFile(t, "latin.txt", []byte("caf\xe9 cr\xe8me"))
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypeText)
	require.NoError(t, err)
	assert.Equal(t, "café crème", res.Text)
}

func TestExtract_UnsupportedType(t *testing.T) {
	path := writeFile(t, "img.png", []byte{0x89, 'P', 'N', 'G'})
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	var uerr *UnsupportedFileTypeError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "image/png", uerr.MediaType)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), constants.MediaTypeText)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_TooLarge(t *testing.T) {
	path := writeFile(t, "big.txt", bytes.Repeat([]byte("a "), 100))
	_, err := NewExtractor(Config{MaxFileSize: 10}, nil).Extract(context.Background(), path, constants.MediaTypeText)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const docxBody = `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Title</w:t></w:r></w:p>` +
	`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Hello </w:t></w:r><w:r><w:t>world</w:t></w:r><w:r><w:tab/><w:t>again</w:t></w:r></w:p>` +
	`<w:p></w:p>`

func TestExtract_Docx(t *testing.T) {
	path := writeFile(t, "a.docx", buildDocx(t, docxBody))
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypeDocx)
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nHello world\tagain", res.Text)
	assert.Equal(t, 4, res.WordCount)
}

func TestExtract_DocxTextBoxKeepsSurroundingText(t *testing.T) {
	body := `<w:p><w:r><w:t xml:space="preserve">Before the box. </w:t></w:r>` +
		`<w:r><mc:AlternateContent xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006">` +
		`<mc:Choice Requires="wps"><w:drawing><wps:txbx xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape">` +
		`<w:txbxContent><w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Boxed</w:t></w:r></w:p></w:txbxContent>` +
		`</wps:txbx></w:drawing></mc:Choice>` +
		`<mc:Fallback><w:pict><w:txbxContent><w:p><w:r><w:t>Boxed</w:t></w:r></w:p></w:txbxContent></w:pict></mc:Fallback>` +
		`</mc:AlternateContent></w:r>` +
		`<w:r><w:t xml:space="preserve"> After the box.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Next paragraph</w:t></w:r></w:p>`

	path := writeFile(t, "boxed.docx", buildDocx(t, body))
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypeDocx)
	require.NoError(t, err)
	assert.Equal(t, "Boxed\n\nBefore the box.  After the box.\n\nNext paragraph", res.Text)
	assert.Equal(t, 9, res.WordCount)
}

func TestExtract_DocxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := writeFile(t, "bad.docx", buf.Bytes())
	_, err = NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypeDocx)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_MSWordWithZipPayload(t *testing.T) {
	path := writeFile(t, "renamed.doc", buildDocx(t, docxBody))
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypeDoc)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Hello world")
}

func TestExtract_MSWordCorrupt(t *testing.T) {
	path := writeFile(t, "corrupt.doc", []byte("definitely not a compound file"))
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypeDoc)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

// buildWordStreams lays out a minimal FIB + one compressed piece holding text.
func buildWordStreams(text string) map[string][]byte {
	const textOffset = 0x400
	wd := make([]byte, textOffset+len(text))
	binary.LittleEndian.PutUint16(wd[0:], fibIdent)
	binary.LittleEndian.PutUint16(wd[fibFlagsOffset:], fibWhichTblStm)
	copy(wd[textOffset:], text)

	var clx bytes.Buffer
	clx.WriteByte(clxPcdt)
	plc := make([]byte, 8+pcdSize)
	binary.LittleEndian.PutUint32(plc[0:], 0)
	binary.LittleEndian.PutUint32(plc[4:], uint32(len(text)))
	binary.LittleEndian.PutUint32(plc[8+2:], uint32(textOffset*2)|fcCompressedFlag)
	_ = binary.Write(&clx, binary.LittleEndian, uint32(len(plc)))
	clx.Write(plc)

	binary.LittleEndian.PutUint32(wd[fibFcClxOffset:], 0)
	binary.LittleEndian.PutUint32(wd[fibLcbClxOffset:], uint32(clx.Len()))
	return map[string][]byte{"WordDocument": wd, "1Table": clx.Bytes()}
}

func TestWordDocText_PieceTable(t *testing.T) {
	text, err := wordDocText(buildWordStreams("Hello\rWorld\x13 PAGE \x14" + "1\x15 end"))
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld1 end", text)
}

func TestWordDocText_Rejects(t *testing.T) {
	_, err := wordDocText(map[string][]byte{"WordDocument": make([]byte, 16)})
	assert.Error(t, err)

	streams := buildWordStreams("x")
	binary.LittleEndian.PutUint16(streams["WordDocument"][0:], 0x1234)
	_, err = wordDocText(streams)
	assert.Error(t, err)
}

func TestContentStreamFragments(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf 72 720 Td\n(Hello World) Tj\n0 -14 Td [(Sec) -250 (ond)] TJ\n" +
		"(paren \\(x\\)) ' % comment (ignored) Tj\n<48692e> Tj\n<< /MCID 0 >> BDC EMC\nET")
	frags := contentStreamFragments(stream)
	assert.Equal(t, []string{"Hello World", "Second", "paren (x)", "Hi."}, frags)
}

func buildTextPDF(text string) []byte {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Length " + strconv.Itoa(len(stream)) + " >>\nstream\n" + stream + "\nendstream\nendobj\n")
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		off := strconv.Itoa(offsets[i])
		b.WriteString(strings.Repeat("0", 10-len(off)) + off + " 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n" + strconv.Itoa(xref) + "\n%%EOF\n")
	return []byte(b.String())
}

func TestExtract_PDF(t *testing.T) {
	path := writeFile(t, "a.pdf", buildTextPDF("Hello World from PDF extraction test"))
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypePDF)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, res.Text, "Hello World from PDF")
}

func TestExtract_PDFCorrupt(t *testing.T) {
	path := writeFile(t, "bad.pdf", []byte("%PDF-1.4\nthis is not really a pdf"))
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), path, constants.MediaTypePDF)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}
