// Package transform turns extracted units into records ready for storage.
//
// Text segments are stored as-is. Tables are serialized and summarized, and
// images are captioned, both through a Captioner. A caption that cannot be
// parsed never fails the unit: the raw reply is stored instead.
package transform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/processor"
)

// Text builds the record for one text segment.
func Text(unit models.RawUnit) (models.Record, error) {
	if strings.TrimSpace(unit.Text) == "" {
		return models.Record{}, types.ErrEmptyContent
	}
	return models.Record{
		Content:            unit.Text,
		TransformedContent: unit.Text,
		Metadata:           models.BaseMetadata(unit.Source, models.ModalityText, unit.Page),
	}, nil
}

// Table builds the record for one table. The summary falls back to the
// serialized table when the captioner fails or returns nothing.
func Table(ctx context.Context, captioner types.Captioner, table models.Table) (models.Record, error) {
	if table.Empty() {
		return models.Record{}, types.ErrEmptyContent
	}

	serialized, err := SerializeTable(table)
	if err != nil {
		return models.Record{}, err
	}

	summary, err := captioner.SummarizeTable(ctx, serialized)
	if err != nil || strings.TrimSpace(summary) == "" {
		logger.Warn("table summary unavailable for %s, storing serialized table: %v", filepath.Base(table.Source), err)
		summary = serialized
	}

	return models.Record{
		Content:            serialized,
		TransformedContent: summary,
		Metadata:           models.BaseMetadata(table.Source, models.ModalityTable, table.Page),
	}, nil
}

// SerializeTable renders the table as JSON with every key stringified.
func SerializeTable(table models.Table) (string, error) {
	data, err := json.Marshal(StringifyKeys(table.ToDict()))
	if err != nil {
		return "", fmt.Errorf("serializing table: %w", err)
	}
	return string(data), nil
}

// EmbeddedImage builds the record for an image found inside a document.
// The content is the serialized caption; the transformed content joins the
// visible text and the description.
func EmbeddedImage(ctx context.Context, captioner types.Captioner, unit models.RawUnit) (models.Record, error) {
	caption, raw, err := describe(ctx, captioner, unit)
	if err != nil {
		return models.Record{}, err
	}

	record := models.Record{
		Metadata: models.BaseMetadata(unit.Source, models.ModalityImage, unit.Page),
	}
	if caption == nil {
		record.Content = raw
		record.TransformedContent = raw
	} else {
		payload, err := json.Marshal(caption)
		if err != nil {
			return models.Record{}, fmt.Errorf("serializing caption: %w", err)
		}
		record.Content = string(payload)
		record.TransformedContent = caption.ExtractedText + "\n" + caption.ImageDescription
	}

	if strings.TrimSpace(record.Content) == "" {
		return models.Record{}, types.ErrEmptyContent
	}
	return record, nil
}

// PageImage builds the record for a rasterized page. The content is the
// description followed by the whitespace-normalised visible text, and the
// metadata points back at the page image.
func PageImage(ctx context.Context, captioner types.Captioner, unit models.RawUnit) (models.Record, error) {
	caption, raw, err := describe(ctx, captioner, unit)
	if err != nil {
		return models.Record{}, err
	}

	content := raw
	if caption != nil {
		content = strings.TrimSpace(caption.ImageDescription + " " + processor.CleanText(caption.ExtractedText))
	}
	if strings.TrimSpace(content) == "" {
		return models.Record{}, types.ErrEmptyContent
	}

	sourcePath, err := filepath.Abs(unit.ImagePath)
	if err != nil {
		sourcePath = unit.ImagePath
	}
	md := models.BaseMetadata(unit.Source, models.ModalityImage, unit.Page)
	md[models.MetaSourcePath] = sourcePath

	return models.Record{
		Content:            content,
		TransformedContent: content,
		Metadata:           md,
	}, nil
}

func describe(ctx context.Context, captioner types.Captioner, unit models.RawUnit) (*types.Caption, string, error) {
	image := unit.Image
	if len(image) == 0 && unit.ImagePath != "" {
		data, err := os.ReadFile(unit.ImagePath)
		if err != nil {
			return nil, "", types.PathNotFound("image", unit.ImagePath)
		}
		image = data
	}
	if len(image) == 0 {
		return nil, "", types.ErrEmptyContent
	}

	caption, raw, err := captioner.DescribeImage(ctx, base64.StdEncoding.EncodeToString(image))
	if err != nil {
		return nil, "", fmt.Errorf("%w: describing image: %v", types.ErrExternalService, err)
	}
	if caption == nil {
		logger.Warn("caption for %s could not be parsed, storing raw reply", filepath.Base(unit.Source))
	}
	return caption, raw, nil
}
