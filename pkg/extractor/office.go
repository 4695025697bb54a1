package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/xhad/ragmodes/internal/models"
)

// OOXML and ODF documents are zip archives of XML parts. Only the parts
// holding body text, tables and media are read.

func loadDOCX(_ context.Context, p string) ([]models.RawUnit, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	text, err := readZipXML(&zr.Reader, "word/document.xml", func(r io.Reader) (string, error) {
		paras, err := xmlParagraphs(r, []string{"p"}, "t")
		return strings.Join(paras, "\n"), err
	})
	if err != nil {
		return nil, err
	}
	return []models.RawUnit{{Modality: models.ModalityText, Text: text, Source: p}}, nil
}

func loadODT(_ context.Context, p string) ([]models.RawUnit, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	text, err := readZipXML(&zr.Reader, "content.xml", func(r io.Reader) (string, error) {
		paras, err := xmlParagraphs(r, []string{"p", "h"}, "")
		return strings.Join(paras, "\n"), err
	})
	if err != nil {
		return nil, err
	}
	return []models.RawUnit{{Modality: models.ModalityText, Text: text, Source: p}}, nil
}

func loadPPTX(_ context.Context, p string) ([]models.RawUnit, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var units []models.RawUnit
	for i, name := range numberedParts(&zr.Reader, "ppt/slides/slide") {
		text, err := readZipXML(&zr.Reader, name, func(r io.Reader) (string, error) {
			paras, err := xmlParagraphs(r, []string{"p"}, "t")
			return strings.Join(paras, "\n"), err
		})
		if err != nil {
			return nil, err
		}
		units = append(units, models.RawUnit{Modality: models.ModalityText, Text: text, Source: p, Page: i + 1})
	}
	return units, nil
}

func readZipXML(zr *zip.Reader, name string, fn func(io.Reader) (string, error)) (string, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return fn(rc)
	}
	return "", fmt.Errorf("missing part %s", name)
}

// numberedParts returns the parts named prefix<N>.xml ordered by N.
func numberedParts(zr *zip.Reader, prefix string) []string {
	type part struct {
		name string
		n    int
	}
	var parts []part
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) || path.Ext(f.Name) != ".xml" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, prefix), ".xml"))
		if err != nil {
			continue
		}
		parts = append(parts, part{f.Name, n})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.name
	}
	return names
}

// xmlParagraphs collects the text of every paragraph element. When textElem
// is set, only character data inside that element counts, as in OOXML runs.
func xmlParagraphs(r io.Reader, paraElems []string, textElem string) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paras   []string
		current strings.Builder
		inPara  int
		inText  int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case contains(paraElems, t.Name.Local):
				inPara++
			case t.Name.Local == textElem:
				inText++
			case inPara > 0 && t.Name.Local == "tab":
				current.WriteString("\t")
			case inPara > 0 && (t.Name.Local == "br" || t.Name.Local == "line-break"):
				current.WriteString("\n")
			case inPara > 0 && t.Name.Local == "s":
				current.WriteString(" ")
			}
		case xml.EndElement:
			switch {
			case contains(paraElems, t.Name.Local):
				inPara--
				if inPara == 0 {
					if s := strings.TrimSpace(current.String()); s != "" {
						paras = append(paras, s)
					}
					current.Reset()
				}
			case t.Name.Local == textElem:
				inText--
			}
		case xml.CharData:
			if inPara > 0 && (textElem == "" || inText > 0) {
				current.Write(t)
			}
		}
	}
	return paras, nil
}

// xmlTables reads tbl/tr/tc structures, the layout shared by WordprocessingML
// and DrawingML tables. Nested tables are flattened into their parent cell.
func xmlTables(r io.Reader, source string, page int) ([]models.Table, error) {
	dec := xml.NewDecoder(r)

	var (
		tables []models.Table
		rows   [][]string
		row    []string
		cell   strings.Builder
		depth  int
		inCell bool
		inText bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
				if depth == 1 {
					rows = nil
				}
			case "tr":
				if depth == 1 {
					row = nil
				}
			case "tc":
				if depth == 1 {
					cell.Reset()
					inCell = true
				}
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				depth--
				if depth == 0 {
					if table, ok := tableFromRows(rows, source, page); ok {
						tables = append(tables, table)
					}
				}
			case "tr":
				if depth == 1 {
					rows = append(rows, row)
				}
			case "tc":
				if depth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
					inCell = false
				}
			case "t":
				inText = false
			case "p":
				if inCell {
					cell.WriteString(" ")
				}
			}
		case xml.CharData:
			if inCell && inText {
				cell.Write(t)
			}
		}
	}
	return tables, nil
}

type sheetCell struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline string `xml:"is>t"`
}

type sheetRow struct {
	Cells []sheetCell `xml:"c"`
}

type worksheet struct {
	Rows []sheetRow `xml:"sheetData>row"`
}

type sharedStrings struct {
	Items []struct {
		Text string `xml:"t"`
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

// xlsxTables reads every worksheet as one table.
func xlsxTables(p string) ([]models.Table, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var shared []string
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		var sst sharedStrings
		if err := decodeZipFile(f, &sst); err != nil {
			return nil, fmt.Errorf("reading shared strings: %w", err)
		}
		for _, item := range sst.Items {
			text := item.Text
			for _, run := range item.Runs {
				text += run.Text
			}
			shared = append(shared, text)
		}
	}

	var tables []models.Table
	for i, name := range numberedParts(&zr.Reader, "xl/worksheets/sheet") {
		var ws worksheet
		for _, f := range zr.File {
			if f.Name == name {
				if err := decodeZipFile(f, &ws); err != nil {
					return nil, fmt.Errorf("reading %s: %w", name, err)
				}
			}
		}

		var rows [][]string
		for _, r := range ws.Rows {
			var values []string
			for _, c := range r.Cells {
				col := columnIndex(c.Ref)
				for col > len(values) {
					values = append(values, "")
				}
				values = append(values, cellValue(c, shared))
			}
			rows = append(rows, values)
		}
		if table, ok := tableFromRows(rows, p, i+1); ok {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

func decodeZipFile(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

func cellValue(c sheetCell, shared []string) string {
	switch c.Type {
	case "s":
		i, err := strconv.Atoi(c.Value)
		if err != nil || i < 0 || i >= len(shared) {
			return ""
		}
		return shared[i]
	case "inlineStr":
		return c.Inline
	default:
		return c.Value
	}
}

// columnIndex converts the letters of a cell reference like "C7" to a
// zero-based column. References without letters map to -1.
func columnIndex(ref string) int {
	n := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1
}

// tableFromRows uses the first non-empty row as the header. Tables without
// data rows are discarded.
func tableFromRows(rows [][]string, source string, page int) (models.Table, bool) {
	var kept [][]string
	for _, r := range rows {
		if !blankRow(r) {
			kept = append(kept, r)
		}
	}
	if len(kept) < 2 {
		return models.Table{}, false
	}
	return models.Table{
		Columns: kept[0],
		Rows:    kept[1:],
		Source:  source,
		Page:    page,
	}, true
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
