package extractor

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true}

// ExtractEmbeddedImages returns the images stored inside a PDF or DOCX file
// together with the document's plain text. Text that cannot be read is logged
// and returned empty; only a failure to read the images is an error.
func ExtractEmbeddedImages(ctx context.Context, p string, poppler *Poppler) ([][]byte, string, error) {
	doc := models.NewDocument(p)
	if _, err := os.Stat(p); err != nil {
		return nil, "", types.PathNotFound("file", p)
	}

	var (
		images [][]byte
		err    error
	)
	switch doc.Format {
	case ".pdf":
		if poppler == nil {
			poppler = NewPoppler(0)
		}
		images, err = poppler.EmbeddedImages(ctx, p)
	case ".docx":
		images, err = docxMedia(p)
	default:
		return nil, "", types.Unsupported(doc.Format)
	}
	if err != nil {
		return nil, "", err
	}

	text, err := documentText(ctx, p, doc.Format)
	if err != nil {
		logger.Warn("No text alongside images in %s: %v", filepath.Base(p), err)
	}
	return images, text, nil
}

func documentText(ctx context.Context, p, format string) (string, error) {
	if format == ".pdf" {
		pages, err := pdfPageTexts(ctx, p)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(strings.Join(pages, "\n")), nil
	}
	units, err := loadDOCX(ctx, p)
	if err != nil {
		return "", err
	}
	return units[0].Text, nil
}

func docxMedia(p string) ([][]byte, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var files []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "word/media/") && imageExts[strings.ToLower(path.Ext(f.Name))] {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	images := make([][]byte, 0, len(files))
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}
