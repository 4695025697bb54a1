package processor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/ragmodes/internal/mocks"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/processor"
)

func textUnit(text string) []models.RawUnit {
	return []models.RawUnit{{Modality: models.ModalityText, Text: text, Source: "/data/doc.pdf", Page: 2}}
}

func TestNewChunker(t *testing.T) {
	for _, name := range []string{"fixed", "recursive", "semantic"} {
		c, err := processor.NewChunker(processor.ProcessorConfig{Type: name, ChunkSize: 100, ChunkOverlap: 10}, mocks.NewEmbedder())
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	_, err := processor.NewChunker(processor.ProcessorConfig{Type: "agentic"}, nil)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
	assert.Contains(t, err.Error(), "agentic")

	_, err = processor.NewChunker(processor.ProcessorConfig{Type: "semantic"}, nil)
	assert.Error(t, err)

	_, err = processor.NewChunker(processor.ProcessorConfig{Type: "fixed", ChunkSize: 10, ChunkOverlap: 10}, nil)
	assert.Error(t, err)
}

func TestFixedChunkerCountAndOverlap(t *testing.T) {
	tests := []struct {
		length, size, overlap int
	}{
		{length: 2500, size: 1000, overlap: 100},
		{length: 1001, size: 1000, overlap: 100},
		{length: 50, size: 7, overlap: 3},
		{length: 64, size: 8, overlap: 0},
	}

	for _, tt := range tests {
		c, err := processor.NewChunker(processor.ProcessorConfig{Type: "fixed", ChunkSize: tt.size, ChunkOverlap: tt.overlap}, nil)
		require.NoError(t, err)

		// Distinct runes per position so overlaps can be checked exactly
		var b strings.Builder
		for i := 0; i < tt.length; i++ {
			b.WriteRune(rune('a' + i%26))
		}
		text := b.String()

		segments, err := c.Split(context.Background(), textUnit(text))
		require.NoError(t, err)

		step := tt.size - tt.overlap
		want := (tt.length - tt.overlap + step - 1) / step
		require.Len(t, segments, want, "L=%d C=%d O=%d", tt.length, tt.size, tt.overlap)

		for i, seg := range segments {
			assert.Equal(t, "/data/doc.pdf", seg.Source)
			assert.Equal(t, 2, seg.Page)
			assert.LessOrEqual(t, utf8.RuneCountInString(seg.Text), tt.size)
			if i > 0 {
				prev := []rune(segments[i-1].Text)
				cur := []rune(seg.Text)
				assert.Equal(t, string(prev[len(prev)-tt.overlap:]), string(cur[:tt.overlap]))
			}
		}
		last := segments[len(segments)-1].Text
		assert.True(t, strings.HasSuffix(text, last))
	}
}

func TestFixedChunkerKeepsBlankWindows(t *testing.T) {
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "fixed", ChunkSize: 10, ChunkOverlap: 2}, nil)
	require.NoError(t, err)

	text := "alpha" + strings.Repeat("\n", 30) + "omega"
	segments, err := c.Split(context.Background(), textUnit(text))
	require.NoError(t, err)

	// ceil((40 - 2) / 8)
	require.Len(t, segments, 5)
	for i := 1; i < len(segments); i++ {
		prev := []rune(segments[i-1].Text)
		assert.Equal(t, string(prev[len(prev)-2:]), segments[i].Text[:2])
	}
	assert.Equal(t, "alpha\n\n\n\n\n", segments[0].Text)
	assert.True(t, strings.HasSuffix(segments[4].Text, "omega"))
}

func TestFixedChunkerShortText(t *testing.T) {
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "fixed", ChunkSize: 100, ChunkOverlap: 10}, nil)
	require.NoError(t, err)

	segments, err := c.Split(context.Background(), textUnit("short text"))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "short text", segments[0].Text)

	segments, err = c.Split(context.Background(), textUnit("   "))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestRecursiveChunker(t *testing.T) {
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "recursive", ChunkSize: 40, ChunkOverlap: 0}, nil)
	require.NoError(t, err)

	text := "First paragraph is here.\n\nSecond paragraph follows it.\n\nThird one closes."
	segments, err := c.Split(context.Background(), textUnit(text))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segments), 3)
	for _, seg := range segments {
		assert.LessOrEqual(t, utf8.RuneCountInString(seg.Text), 40)
	}
	assert.Contains(t, segments[0].Text, "First paragraph")
}

// topicEmbedder scores each text by how often it mentions cats and cars.
type topicEmbedder struct{}

func (topicEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = topicEmbedder{}.EmbedQuery(ctx, text)
	}
	return out, nil
}

func (topicEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{float32(strings.Count(lower, "cat")), float32(strings.Count(lower, "car"))}, nil
}

func TestSemanticChunkerBreakpoints(t *testing.T) {
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "semantic", BreakpointPercentile: 95}, topicEmbedder{})
	require.NoError(t, err)

	text := "The cat sleeps. A cat purrs. Cats like fish. The car drives. A car honks. Cars need fuel."
	segments, err := c.Split(context.Background(), textUnit(text))
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "The cat sleeps. A cat purrs. Cats like fish.", segments[0].Text)
	assert.Equal(t, "The car drives. A car honks. Cars need fuel.", segments[1].Text)
}

func TestSemanticChunkerSingleSentence(t *testing.T) {
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "semantic"}, topicEmbedder{})
	require.NoError(t, err)

	segments, err := c.Split(context.Background(), textUnit("Only one sentence here"))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Only one sentence here", segments[0].Text)
}

func TestSemanticChunkerEmbedderError(t *testing.T) {
	embedder := mocks.NewEmbedder()
	embedder.Err = errors.New("offline")
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "semantic"}, embedder)
	require.NoError(t, err)

	_, err = c.Split(context.Background(), textUnit("One. Two. Three."))
	assert.True(t, errors.Is(err, types.ErrExternalService))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", processor.CleanText("  a\n\nb \t c  "))
	assert.Equal(t, "", processor.CleanText("\n\n"))
}
