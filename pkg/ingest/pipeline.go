package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"golang.org/x/sync/errgroup"
)

type PipelineConfig struct {
	DataDir    string
	TextStore  types.VectorStore
	ImageStore types.VectorStore
	// Registry holds the text-mode ingestors.
	Registry *Registry
	// Pages is the image-mode ingestor, run for PDFs only.
	Pages    Ingestor
	Progress Progress
}

// Pipeline ingests files into the text and image collections.
type Pipeline struct {
	config PipelineConfig
}

// ModeReport collects the ingestors run for one retrieval mode.
type ModeReport struct {
	Mode       models.Mode      `json:"mode"`
	Message    string           `json:"message"`
	Modalities []ModalityReport `json:"modalities"`
	Err        error            `json:"-"`
}

// Stored returns the number of records written in this mode.
func (r *ModeReport) Stored() int {
	n := 0
	for _, m := range r.Modalities {
		n += m.Stored
	}
	return n
}

// Report is the result of ingesting one file.
type Report struct {
	File     string      `json:"file"`
	Messages []string    `json:"messages"`
	Text     *ModeReport `json:"text,omitempty"`
	Image    *ModeReport `json:"image,omitempty"`
}

func (r *Report) addMessage(format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	if config.TextStore == nil || config.ImageStore == nil {
		return nil, fmt.Errorf("ingest: text and image stores are required")
	}
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}
	return &Pipeline{config: config}, nil
}

// IngestFile runs image mode and text mode over the file concurrently and
// waits for both. A missing data directory or file is reported as a message
// and returned as ErrPathNotFound without touching either collection.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Report, error) {
	report := &Report{File: filepath.Base(path)}

	if info, err := os.Stat(p.config.DataDir); err != nil || !info.IsDir() {
		report.addMessage("Error: data directory does not exist.")
		return report, types.PathNotFound("data directory", p.config.DataDir)
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		report.addMessage("Error: file does not exist.")
		return report, types.PathNotFound("file", path)
	}

	textIngestors := p.config.Registry.For(path)
	isPDF := strings.EqualFold(filepath.Ext(path), ".pdf")
	if len(textIngestors) == 0 && !isPDF {
		ext := strings.ToLower(filepath.Ext(path))
		report.addMessage("Error: unsupported format '%s'.", ext)
		return report, types.Unsupported(ext)
	}

	var g errgroup.Group

	if isPDF && p.config.Pages != nil {
		report.Image = &ModeReport{Mode: models.ModeImage}
		g.Go(func() error {
			logger.Section("Ingesting file using image mode")
			return p.runMode(ctx, report.Image, p.config.ImageStore, []Ingestor{p.config.Pages}, path)
		})
	}

	if len(textIngestors) > 0 {
		report.Text = &ModeReport{Mode: models.ModeText}
		g.Go(func() error {
			logger.Section("Ingesting file using text mode")
			return p.runMode(ctx, report.Text, p.config.TextStore, textIngestors, path)
		})
	}

	err := g.Wait()

	// Messages are added after both modes finish so their order is stable.
	for _, mode := range []*ModeReport{report.Image, report.Text} {
		if mode != nil {
			report.Messages = append(report.Messages, mode.Message)
		}
	}
	if err != nil {
		return report, err
	}
	report.addMessage("File ready to use")
	return report, nil
}

func (p *Pipeline) runMode(ctx context.Context, mode *ModeReport, store types.VectorStore, ingestors []Ingestor, path string) error {
	for _, ing := range ingestors {
		mode.Modalities = append(mode.Modalities, Run(ctx, ing, store, path, p.config.Progress))
	}

	if err := joinFailures(mode.Modalities); err != nil {
		mode.Err = fmt.Errorf("%s mode: %w", mode.Mode, err)
		mode.Message = fmt.Sprintf("Error: %s mode ingestion failed: %v", mode.Mode, err)
		return mode.Err
	}

	var extracted int
	for _, m := range mode.Modalities {
		extracted += m.Extracted
	}
	stored := mode.Stored()
	if stored < extracted {
		mode.Message = fmt.Sprintf("Partial: %d of %d units ingested in %s mode.", stored, extracted, mode.Mode)
	} else {
		mode.Message = fmt.Sprintf("Success: all %d units ingested in %s mode.", stored, mode.Mode)
	}
	logger.Info("%s", mode.Message)
	return nil
}

// Reset empties both collections.
func (p *Pipeline) Reset(ctx context.Context) error {
	return errors.Join(
		p.config.TextStore.Reset(ctx),
		p.config.ImageStore.Reset(ctx),
	)
}

// DataDir returns the directory uploads are written to.
func (p *Pipeline) DataDir() string {
	return p.config.DataDir
}
