package extractor

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xhad/ragmodes/internal/mocks"
)

// writeZip creates an archive holding the given parts.
func writeZip(t *testing.T, path string, parts map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// writePDF writes a single-page PDF showing text in Helvetica.
func writePDF(t *testing.T, path, text string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, mocks.PDF(text), 0644))
	return path
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Quarterly report</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Sales grew </w:t></w:r><w:r><w:t>in the north.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Sales</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>North</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>120</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>South</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>80</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body></w:document>`

func writeDOCX(t *testing.T, dir string) string {
	return writeZip(t, filepath.Join(dir, "report.docx"), map[string]string{
		"[Content_Types].xml":    `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":      docxBody,
		"word/media/image1.png":  "png-one",
		"word/media/image2.jpeg": "jpeg-two",
		"word/media/notes.txt":   "not an image",
	})
}

func slideXML(title string, table bool) string {
	tbl := ""
	if table {
		tbl = `<p:graphicFrame><a:graphic><a:graphicData><a:tbl>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t>Name</a:t></a:r></a:p></a:txBody></a:tc><a:tc><a:txBody><a:p><a:r><a:t>Role</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t>Ada</a:t></a:r></a:p></a:txBody></a:tc><a:tc><a:txBody><a:p><a:r><a:t>Engineer</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + title + `</a:t></a:r></a:p></p:txBody></p:sp>` + tbl + `</p:spTree></p:cSld></p:sld>`
}

func writePPTX(t *testing.T, dir string) string {
	return writeZip(t, filepath.Join(dir, "deck.pptx"), map[string]string{
		"ppt/slides/slide2.xml":  slideXML("Team", true),
		"ppt/slides/slide1.xml":  slideXML("Welcome", false),
		"ppt/slides/slide10.xml": slideXML("Appendix", false),
	})
}

func writeXLSX(t *testing.T, dir string) string {
	return writeZip(t, filepath.Join(dir, "people.xlsx"), map[string]string{
		"xl/sharedStrings.xml": `<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><t>Name</t></si><si><t>Age</t></si><si><r><t>An</t></r><r><t>n</t></r></si></sst>`,
		"xl/worksheets/sheet1.xml": `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="C1" t="s"><v>1</v></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="C2"><v>31</v></c></row>
<row r="3"><c r="A3" t="inlineStr"><is><t>Bo</t></is></c><c r="C3"><v>42</v></c></row>
</sheetData></worksheet>`,
	})
}

func writeODT(t *testing.T, dir string) string {
	return writeZip(t, filepath.Join(dir, "notes.odt"), map[string]string{
		"mimetype": "application/vnd.oasis.opendocument.text",
		"content.xml": `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text><text:h>Meeting notes</text:h><text:p>Budget<text:s/>approved<text:tab/>today</text:p></office:text></office:body></office:document-content>`,
	})
}

const emlBody = "From: alice@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Contract renewal\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain body\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"<html><body><p>The contract runs for =\r\n12 months.</p></body></html>\r\n" +
	"--XYZ--\r\n"
