// Package store persists records in named vector collections. Every backend
// embeds content on write and the query text on read with the same embedder.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/internal/vector"
)

const (
	BackendPgvector = "pgvector"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type StoreConfig struct {
	Backend    string
	URL        string
	SQLitePath string
	VectorDim  int
}

// New opens the collection on the configured backend.
func New(ctx context.Context, config StoreConfig, collection string, embedder types.Embedder) (types.VectorStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("store: embedder is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("store: collection name is required")
	}

	switch config.Backend {
	case "", BackendPgvector:
		return NewPgvector(ctx, PgvectorConfig{
			ConnString: config.URL,
			TableName:  collection,
			VectorDim:  config.VectorDim,
		}, embedder)
	case BackendSQLite:
		return NewSQLite(ctx, config.SQLitePath, collection, embedder)
	case BackendMemory:
		return NewMemory(collection, embedder), nil
	default:
		return nil, fmt.Errorf("vector database not supported: %w", types.Unsupported(config.Backend))
	}
}

// SaveHistory stores chat messages as records stamped with their time.
func SaveHistory(ctx context.Context, s types.VectorStore, history []models.HistoryItem) ([]string, error) {
	ids := make([]string, 0, len(history))
	for _, item := range history {
		ts := item.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		id, err := s.Store(ctx, models.Record{
			Content: item.Message,
			Metadata: map[string]any{
				models.MetaTimestamp: ts.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			return ids, fmt.Errorf("failed to save history: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// prepare validates a record before it is embedded and assigns an ID.
func prepare(record models.Record) (models.Record, error) {
	record.Content = sanitizeUTF8(record.Content)
	record.TransformedContent = sanitizeUTF8(record.TransformedContent)
	if strings.TrimSpace(record.Content) == "" {
		return record, types.ErrEmptyContent
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}
	return record, nil
}

func embedText(ctx context.Context, embedder types.Embedder, text string) ([]float32, error) {
	vec, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding failed: %v", types.ErrExternalService, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", types.ErrExternalService)
	}
	return vec, nil
}

type scored struct {
	record models.Record
	vec    []float32
}

// rank orders candidates by cosine similarity to query and keeps topK.
func rank(candidates []scored, query []float32, topK int) []models.Record {
	if topK <= 0 || len(candidates) == 0 {
		return []models.Record{}
	}
	for i := range candidates {
		candidates[i].record.Score = float32(vector.Cosine(candidates[i].vec, query))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].record.Score > candidates[j].record.Score
	})
	if topK > len(candidates) {
		topK = len(candidates)
	}
	out := make([]models.Record, topK)
	for i := 0; i < topK; i++ {
		out[i] = candidates[i].record
	}
	return out
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
