// Package ingest turns a source file into stored records. Each modality has
// its own Ingestor; Run drives one ingestor over a file and Pipeline runs the
// text and image collections side by side.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/extractor"
	"github.com/xhad/ragmodes/pkg/transform"
)

// Ingestor extracts units of one modality from a file and transforms each
// into a record.
type Ingestor interface {
	Modality() models.Modality
	Extract(ctx context.Context, path string) ([]models.RawUnit, error)
	Transform(ctx context.Context, unit models.RawUnit) (models.Record, error)
}

// TextIngestor loads a document and splits it with a chunker.
type TextIngestor struct {
	Load    func(ctx context.Context, path string) ([]models.RawUnit, error)
	Chunker types.Chunker
}

func NewTextIngestor(chunker types.Chunker) *TextIngestor {
	return &TextIngestor{Load: extractor.LoadSingleDocument, Chunker: chunker}
}

func (i *TextIngestor) Modality() models.Modality { return models.ModalityText }

func (i *TextIngestor) Extract(ctx context.Context, path string) ([]models.RawUnit, error) {
	units, err := i.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if i.Chunker == nil {
		return units, nil
	}
	segments, err := i.Chunker.Split(ctx, units)
	if err != nil {
		return nil, fmt.Errorf("%s chunking failed: %w", i.Chunker.Name(), err)
	}
	// Windows of pure whitespace have nothing to embed
	out := segments[:0]
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) != "" {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (i *TextIngestor) Transform(_ context.Context, unit models.RawUnit) (models.Record, error) {
	return transform.Text(unit)
}

// TableIngestor extracts tables and stores them with a model summary.
type TableIngestor struct {
	Tables    func(ctx context.Context, path string) ([]models.Table, error)
	Captioner types.Captioner
}

func NewTableIngestor(captioner types.Captioner) *TableIngestor {
	return &TableIngestor{Tables: extractor.ExtractTables, Captioner: captioner}
}

func (i *TableIngestor) Modality() models.Modality { return models.ModalityTable }

func (i *TableIngestor) Extract(ctx context.Context, path string) ([]models.RawUnit, error) {
	tables, err := i.Tables(ctx, path)
	if err != nil {
		return nil, err
	}
	units := make([]models.RawUnit, 0, len(tables))
	for _, t := range tables {
		units = append(units, models.RawUnit{
			Modality: models.ModalityTable,
			Table:    &t,
			Source:   path,
			Page:     t.Page,
		})
	}
	return units, nil
}

func (i *TableIngestor) Transform(ctx context.Context, unit models.RawUnit) (models.Record, error) {
	if unit.Table == nil {
		return models.Record{}, types.ErrEmptyContent
	}
	table := *unit.Table
	if table.Source == "" {
		table.Source = unit.Source
	}
	return transform.Table(ctx, i.Captioner, table)
}

// ImageIngestor captions the images embedded in a document.
type ImageIngestor struct {
	Images    func(ctx context.Context, path string) ([][]byte, string, error)
	Captioner types.Captioner
}

func NewImageIngestor(captioner types.Captioner, poppler *extractor.Poppler) *ImageIngestor {
	return &ImageIngestor{
		Images: func(ctx context.Context, path string) ([][]byte, string, error) {
			return extractor.ExtractEmbeddedImages(ctx, path, poppler)
		},
		Captioner: captioner,
	}
}

func (i *ImageIngestor) Modality() models.Modality { return models.ModalityImage }

// Extract returns one unit per embedded image. The document text that comes
// with the images is already covered by the text ingestor.
func (i *ImageIngestor) Extract(ctx context.Context, path string) ([]models.RawUnit, error) {
	images, _, err := i.Images(ctx, path)
	if err != nil {
		return nil, err
	}
	units := make([]models.RawUnit, 0, len(images))
	for _, img := range images {
		units = append(units, models.RawUnit{
			Modality: models.ModalityImage,
			Image:    img,
			Source:   path,
		})
	}
	return units, nil
}

func (i *ImageIngestor) Transform(ctx context.Context, unit models.RawUnit) (models.Record, error) {
	return transform.EmbeddedImage(ctx, i.Captioner, unit)
}

// PageImageIngestor rasterizes every page of a PDF and captions each page.
type PageImageIngestor struct {
	Rasterizer types.Rasterizer
	Captioner  types.Captioner
}

func NewPageImageIngestor(captioner types.Captioner, rasterizer types.Rasterizer) *PageImageIngestor {
	return &PageImageIngestor{Rasterizer: rasterizer, Captioner: captioner}
}

func (i *PageImageIngestor) Modality() models.Modality { return models.ModalityImage }

func (i *PageImageIngestor) Extract(ctx context.Context, path string) ([]models.RawUnit, error) {
	_, pages, err := i.Rasterizer.Rasterize(ctx, path)
	if err != nil {
		return nil, err
	}
	units := make([]models.RawUnit, 0, len(pages))
	for n, page := range pages {
		units = append(units, models.RawUnit{
			Modality:  models.ModalityImage,
			ImagePath: page,
			Source:    path,
			Page:      n + 1,
		})
	}
	return units, nil
}

func (i *PageImageIngestor) Transform(ctx context.Context, unit models.RawUnit) (models.Record, error) {
	return transform.PageImage(ctx, i.Captioner, unit)
}
