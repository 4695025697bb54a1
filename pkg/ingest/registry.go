package ingest

import (
	"path/filepath"
	"strings"

	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/extractor"
)

// Registry selects the ingestors that apply to a file by its extension.
type Registry struct {
	entries []registryEntry
}

type registryEntry struct {
	ingestor   Ingestor
	extensions map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry wires the text-mode ingestors: document text for PDF, DOCX
// and HTML, tables for PDF and the office formats, embedded images for PDF
// and DOCX.
func DefaultRegistry(chunker types.Chunker, captioner types.Captioner, poppler *extractor.Poppler) *Registry {
	r := NewRegistry()
	r.Register(NewTextIngestor(chunker), extractor.SupportedExtensions()...)
	r.Register(NewTableIngestor(captioner), ".pdf", ".docx", ".pptx", ".xlsx")
	r.Register(NewImageIngestor(captioner, poppler), ".pdf", ".docx")
	return r
}

// Register adds an ingestor for the given extensions. Order of registration
// is the order For returns them in.
func (r *Registry) Register(ingestor Ingestor, extensions ...string) {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = true
	}
	r.entries = append(r.entries, registryEntry{ingestor: ingestor, extensions: set})
}

// For returns the ingestors registered for the file's extension.
func (r *Registry) For(path string) []Ingestor {
	ext := strings.ToLower(filepath.Ext(path))
	var out []Ingestor
	for _, e := range r.entries {
		if e.extensions[ext] {
			out = append(out, e.ingestor)
		}
	}
	return out
}
