package extractor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

// ExtractTables finds the tables of a PDF, DOCX, PPTX or XLSX file. For PDFs
// a row-position detector runs first; if it fails, a plain-text detector
// over the page text is used instead.
func ExtractTables(ctx context.Context, path string) ([]models.Table, error) {
	doc := models.NewDocument(path)
	if _, err := os.Stat(path); err != nil {
		return nil, types.PathNotFound("file", path)
	}

	switch doc.Format {
	case ".pdf":
		tables, err := pdfTablesByRow(path)
		if err != nil {
			logger.Warn("row-position table detection failed for %s, falling back to text detection: %v", doc.Name(), err)
			return pdfTablesFromText(ctx, path)
		}
		return tables, nil
	case ".docx":
		return officeTables(path, []string{"word/document.xml"})
	case ".pptx":
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, err
		}
		slides := numberedParts(&zr.Reader, "ppt/slides/slide")
		zr.Close()
		return officeTables(path, slides)
	case ".xlsx":
		return xlsxTables(path)
	default:
		return nil, types.Unsupported(doc.Format)
	}
}

func officeTables(path string, parts []string) ([]models.Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var tables []models.Table
	for i, part := range parts {
		page := 0
		if len(parts) > 1 {
			page = i + 1
		}
		_, err := readZipXML(&zr.Reader, part, func(r io.Reader) (string, error) {
			found, err := xmlTables(r, path, page)
			tables = append(tables, found...)
			return "", err
		})
		if err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// fragment is one positioned run of text on a PDF page.
type fragment struct {
	X, W     float64
	FontSize float64
	S        string
}

func pdfTablesByRow(path string) (tables []models.Table, err error) {
	// The PDF reader panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		var lines [][]string
		for _, row := range rows {
			frags := make([]fragment, 0, len(row.Content))
			for _, t := range row.Content {
				frags = append(frags, fragment{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S})
			}
			lines = append(lines, groupCells(frags))
		}
		tables = append(tables, detectTables(lines, path, i)...)
	}
	return tables, nil
}

// groupCells joins fragments into cells. A horizontal gap wider than the
// font size starts a new cell; a smaller visible gap becomes a space.
func groupCells(frags []fragment) []string {
	if len(frags) == 0 {
		return nil
	}
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

	var (
		cells   []string
		current strings.Builder
	)
	end := frags[0].X
	for i, f := range frags {
		size := f.FontSize
		if size <= 0 {
			size = 10
		}
		gap := f.X - end
		if i > 0 && gap > size {
			cells = append(cells, strings.TrimSpace(current.String()))
			current.Reset()
		} else if i > 0 && gap > size*0.2 && !strings.HasSuffix(current.String(), " ") {
			current.WriteString(" ")
		}
		current.WriteString(f.S)
		end = max(end, f.X+f.W)
	}
	cells = append(cells, strings.TrimSpace(current.String()))

	var out []string
	for _, c := range cells {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// detectTables returns every run of at least two consecutive lines that
// split into the same number (two or more) of cells.
func detectTables(lines [][]string, source string, page int) []models.Table {
	var (
		tables []models.Table
		run    [][]string
	)
	flush := func() {
		if table, ok := tableFromRows(run, source, page); ok {
			tables = append(tables, table)
		}
		run = nil
	}

	for _, line := range lines {
		if len(line) < 2 {
			flush()
			continue
		}
		if len(run) > 0 && len(run[0]) != len(line) {
			flush()
		}
		run = append(run, line)
	}
	flush()
	return tables
}

var (
	cellSeparator  = regexp.MustCompile(`\t+| {2,}`)
	pipeSeparators = regexp.MustCompile(`^[\s|:+-]+$`)
)

func pdfTablesFromText(ctx context.Context, path string) ([]models.Table, error) {
	pages, err := pdfPageTexts(ctx, path)
	if err != nil {
		return nil, err
	}

	var tables []models.Table
	for i, text := range pages {
		tables = append(tables, detectTables(splitTextCells(text), path, i+1)...)
	}
	return tables, nil
}

// splitTextCells splits every line on pipes, tabs or runs of two or more
// spaces. Markdown separator lines are skipped.
func splitTextCells(text string) [][]string {
	var lines [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			lines = append(lines, nil)
			continue
		}

		var parts []string
		if strings.Contains(line, "|") {
			if pipeSeparators.MatchString(line) {
				continue
			}
			parts = strings.Split(strings.Trim(line, "|"), "|")
		} else {
			parts = cellSeparator.Split(line, -1)
		}

		cells := make([]string, 0, len(parts))
		for _, p := range parts {
			cells = append(cells, strings.TrimSpace(p))
		}
		lines = append(lines, cells)
	}
	return lines
}
