package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Modality tags the kind of content a unit carries.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityTable Modality = "table"
	ModalityImage Modality = "image"
)

// Canonical metadata keys shared by every collection.
const (
	MetaFileName   = "file_name"
	MetaModality   = "modality"
	MetaSourcePath = "source_path"
	MetaPage       = "page"
	MetaIngestedAt = "ingested_at"
	MetaTimestamp  = "timestamp"
)

// Document is a source file handed to ingestion.
type Document struct {
	Path   string
	Format string
}

// NewDocument derives the format from the file extension.
func NewDocument(path string) Document {
	return Document{
		Path:   path,
		Format: strings.ToLower(filepath.Ext(path)),
	}
}

// Name returns the base name of the document.
func (d Document) Name() string {
	return filepath.Base(d.Path)
}

// RawUnit is one extracted piece of a document, consumed once by a transformer.
type RawUnit struct {
	Modality  Modality
	Text      string
	Table     *Table
	Image     []byte
	ImagePath string
	Source    string
	Page      int
}

// Record is the stored form of a unit.
type Record struct {
	ID                 string
	Content            string
	TransformedContent string
	Metadata           map[string]any
	Score              float32
}

// ContextText is the text handed to the model for this record.
func (r Record) ContextText() string {
	if r.TransformedContent != "" {
		return r.TransformedContent
	}
	return r.Content
}

// Meta returns a string metadata value or "".
func (r Record) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	v, ok := r.Metadata[key].(string)
	if !ok {
		return ""
	}
	return v
}

// BaseMetadata builds the canonical metadata for a unit of the given file.
func BaseMetadata(source string, modality Modality, page int) map[string]any {
	md := map[string]any{
		MetaFileName:   filepath.Base(source),
		MetaModality:   string(modality),
		MetaIngestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if page > 0 {
		md[MetaPage] = page
	}
	return md
}

// HistoryItem is one chat message kept as memory.
type HistoryItem struct {
	Message   string
	Timestamp time.Time
}
