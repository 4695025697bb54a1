// Package extractor reads source files into raw units: text blocks, tables
// and images.
package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

type loaderFunc func(ctx context.Context, path string) ([]models.RawUnit, error)

// Loaders maps every supported extension to its text loader.
var loaders = map[string]loaderFunc{
	".pdf":  loadPDF,
	".txt":  loadText,
	".md":   loadText,
	".csv":  loadCSV,
	".html": loadHTML,
	".htm":  loadHTML,
	".docx": loadDOCX,
	".odt":  loadODT,
	".pptx": loadPPTX,
	".eml":  loadEML,
}

// SupportedExtensions lists the extensions LoadSingleDocument accepts.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	return exts
}

// LoadSingleDocument reads the text of one file. Blank pages are dropped,
// but a readable file always yields at least one unit.
func LoadSingleDocument(ctx context.Context, path string) ([]models.RawUnit, error) {
	doc := models.NewDocument(path)

	load, ok := loaders[doc.Format]
	if !ok {
		return nil, types.Unsupported(doc.Format)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, types.PathNotFound("file", path)
	}

	units, err := load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", doc.Name(), err)
	}

	kept := units[:0]
	for _, u := range units {
		if strings.TrimSpace(u.Text) != "" {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, models.RawUnit{Modality: models.ModalityText, Source: path})
	}

	logger.Debug("loaded %d text units from %s", len(kept), doc.Name())
	return kept, nil
}

func loadPDF(ctx context.Context, path string) ([]models.RawUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, err
	}
	return fromSchema(docs, path, true), nil
}

func loadText(ctx context.Context, path string) ([]models.RawUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, err
	}
	return fromSchema(docs, path, false), nil
}

func loadCSV(ctx context.Context, path string) ([]models.RawUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewCSV(f).Load(ctx)
	if err != nil {
		return nil, err
	}
	return fromSchema(docs, path, false), nil
}

// fromSchema converts loader documents to units. Paged loaders number their
// documents from one.
func fromSchema(docs []schema.Document, path string, paged bool) []models.RawUnit {
	units := make([]models.RawUnit, 0, len(docs))
	for i, d := range docs {
		unit := models.RawUnit{
			Modality: models.ModalityText,
			Text:     d.PageContent,
			Source:   path,
		}
		if paged {
			unit.Page = i + 1
			if p, ok := d.Metadata["page"].(int); ok && p > 0 {
				unit.Page = p
			}
		}
		units = append(units, unit)
	}
	return units
}

// pdfPageTexts returns the text of every page, blank pages included.
func pdfPageTexts(ctx context.Context, path string) ([]string, error) {
	units, err := loadPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	return texts, nil
}
