package processor

import (
	"fmt"
	"strings"

	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

type ProcessorConfig struct {
	Type                 string
	ChunkSize            int
	ChunkOverlap         int
	BreakpointPercentile float64
}

// NewChunker builds the chunking strategy named by config.Type. The semantic
// strategy needs an embedder; the others ignore it.
func NewChunker(config ProcessorConfig, embedder types.Embedder) (types.Chunker, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.BreakpointPercentile == 0 {
		config.BreakpointPercentile = 95
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", config.ChunkOverlap, config.ChunkSize)
	}

	switch config.Type {
	case "fixed":
		return &FixedChunker{size: config.ChunkSize, overlap: config.ChunkOverlap}, nil
	case "recursive":
		return newRecursiveChunker(config.ChunkSize, config.ChunkOverlap), nil
	case "semantic":
		if embedder == nil {
			return nil, fmt.Errorf("semantic chunking requires an embedder")
		}
		return &SemanticChunker{embedder: embedder, percentile: config.BreakpointPercentile}, nil
	default:
		return nil, fmt.Errorf("%w: chunking method '%s'", types.ErrNotImplemented, config.Type)
	}
}

// CleanText collapses runs of whitespace, including newlines, into single spaces.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// splitUnits applies split to every non-empty text unit, keeping order and
// copying source and page onto each segment. Segments are kept as split
// returns them.
func splitUnits(units []models.RawUnit, split func(string) ([]string, error)) ([]models.RawUnit, error) {
	var out []models.RawUnit
	for _, unit := range units {
		if strings.TrimSpace(unit.Text) == "" {
			continue
		}
		segments, err := split(unit.Text)
		if err != nil {
			return nil, err
		}
		for _, seg := range segments {
			out = append(out, models.RawUnit{
				Modality: models.ModalityText,
				Text:     seg,
				Source:   unit.Source,
				Page:     unit.Page,
			})
		}
	}
	return out, nil
}

// nonBlank drops segments that hold only whitespace.
func nonBlank(segments []string) []string {
	out := segments[:0]
	for _, seg := range segments {
		if strings.TrimSpace(seg) != "" {
			out = append(out, seg)
		}
	}
	return out
}

func splitIntoSentences(text string) []string {
	var sentences []string

	runes := []rune(text)
	current := strings.Builder{}

	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		// A sentence ends at terminal punctuation followed by whitespace
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && isSpace(runes[i+1]) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	// Add any remaining text
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
