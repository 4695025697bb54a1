package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/internal/vector"
)

// SemanticChunker groups consecutive sentences and starts a new segment where
// the embedding distance between neighbouring sentence windows jumps above
// the configured percentile.
type SemanticChunker struct {
	embedder   types.Embedder
	percentile float64
}

func (c *SemanticChunker) Name() string { return "semantic" }

func (c *SemanticChunker) Split(ctx context.Context, units []models.RawUnit) ([]models.RawUnit, error) {
	return splitUnits(units, func(text string) ([]string, error) {
		return c.splitText(ctx, text)
	})
}

func (c *SemanticChunker) splitText(ctx context.Context, text string) ([]string, error) {
	sentences := splitIntoSentences(text)
	if len(sentences) <= 1 {
		return sentences, nil
	}

	// Each sentence is embedded together with one neighbour on either side
	windows := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-1)
		hi := min(len(sentences), i+2)
		windows[i] = strings.Join(sentences[lo:hi], " ")
	}

	embeddings, err := c.embedder.EmbedDocuments(ctx, windows)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding sentences: %v", types.ErrExternalService, err)
	}
	if len(embeddings) != len(windows) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d sentences", types.ErrExternalService, len(embeddings), len(windows))
	}

	distances := make([]float64, len(embeddings)-1)
	for i := range distances {
		distances[i] = 1 - vector.Cosine(embeddings[i], embeddings[i+1])
	}
	threshold := vector.Percentile(distances, c.percentile)

	var chunks []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			chunks = append(chunks, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(sentences) {
		chunks = append(chunks, strings.Join(sentences[start:], " "))
	}

	logger.Debug("semantic chunker: %d sentences, %d segments, threshold %.4f", len(sentences), len(chunks), threshold)
	return chunks, nil
}
