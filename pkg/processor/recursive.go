package processor

import (
	"context"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/ragmodes/internal/models"
)

// RecursiveChunker splits on paragraph, line and word separators in turn
// until every segment fits.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func newRecursiveChunker(size, overlap int) *RecursiveChunker {
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

func (c *RecursiveChunker) Name() string { return "recursive" }

func (c *RecursiveChunker) Split(_ context.Context, units []models.RawUnit) ([]models.RawUnit, error) {
	return splitUnits(units, func(text string) ([]string, error) {
		segments, err := c.splitter.SplitText(text)
		if err != nil {
			return nil, err
		}
		return nonBlank(segments), nil
	})
}
