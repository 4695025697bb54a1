package types

import (
	"context"

	"github.com/xhad/ragmodes/internal/models"
)

// Embedder turns text into vectors. It matches langchaingo's embeddings.Embedder.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists records in one named collection and queries them by text.
type VectorStore interface {
	Store(ctx context.Context, record models.Record) (string, error)
	Query(ctx context.Context, text string, topK int) ([]models.Record, error)
	Reset(ctx context.Context) error
	Collection() string
	Close() error
}

// LanguageModel is a single round-trip completion service.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, images []string) (*models.Completion, error)
	ModelName() string
}

// Caption is the structured reply for one image.
type Caption struct {
	ExtractedText    string `json:"extracted_text"`
	ImageDescription string `json:"image_description"`
}

// Captioner describes images and summarizes tables.
type Captioner interface {
	DescribeImage(ctx context.Context, b64Image string) (*Caption, string, error)
	SummarizeTable(ctx context.Context, serialized string) (string, error)
}

// Chunker splits text units into retrieval-sized segments.
type Chunker interface {
	Split(ctx context.Context, units []models.RawUnit) ([]models.RawUnit, error)
	Name() string
}

// Rasterizer renders every page of a PDF to an image file.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string) (dir string, pages []string, err error)
}
