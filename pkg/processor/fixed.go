package processor

import (
	"context"

	"github.com/xhad/ragmodes/internal/models"
)

// FixedChunker cuts text into windows of size runes, each starting
// size-overlap runes after the previous one. The last window ends at the end
// of the text and may be shorter.
type FixedChunker struct {
	size    int
	overlap int
}

func (c *FixedChunker) Name() string { return "fixed" }

func (c *FixedChunker) Split(_ context.Context, units []models.RawUnit) ([]models.RawUnit, error) {
	return splitUnits(units, func(text string) ([]string, error) {
		return c.splitText(text), nil
	})
}

func (c *FixedChunker) splitText(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
