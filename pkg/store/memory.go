package store

import (
	"context"
	"sync"

	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

// Memory is an ephemeral collection using brute-force cosine similarity.
type Memory struct {
	mu         sync.RWMutex
	collection string
	embedder   types.Embedder
	records    []models.Record
	vectors    [][]float32
}

func NewMemory(collection string, embedder types.Embedder) *Memory {
	return &Memory{collection: collection, embedder: embedder}
}

func (m *Memory) Store(ctx context.Context, record models.Record) (string, error) {
	record, err := prepare(record)
	if err != nil {
		return "", err
	}
	vec, err := embedText(ctx, m.embedder, record.Content)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	m.vectors = append(m.vectors, vec)
	return record.ID, nil
}

func (m *Memory) Query(ctx context.Context, text string, topK int) ([]models.Record, error) {
	m.mu.RLock()
	empty := len(m.records) == 0
	m.mu.RUnlock()
	if empty || topK <= 0 {
		return []models.Record{}, nil
	}

	query, err := embedText(ctx, m.embedder, text)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	candidates := make([]scored, len(m.records))
	for i := range m.records {
		candidates[i] = scored{record: m.records[i], vec: m.vectors[i]}
	}
	m.mu.RUnlock()

	return rank(candidates, query, topK), nil
}

func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.vectors = nil
	return nil
}

func (m *Memory) Collection() string { return m.collection }

func (m *Memory) Close() error { return nil }

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
