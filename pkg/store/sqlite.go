package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	_ "modernc.org/sqlite" // SQLite driver
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// SQLite keeps one table per collection in a local database file. Vectors are
// stored as JSON arrays and ranked in process.
type SQLite struct {
	db         *sqlx.DB
	collection string
	embedder   types.Embedder
}

type sqliteRow struct {
	ID                 string `db:"id"`
	Content            string `db:"content"`
	TransformedContent string `db:"transformed_content"`
	Metadata           string `db:"metadata"`
	Embedding          string `db:"embedding"`
}

func NewSQLite(ctx context.Context, path, collection string, embedder types.Embedder) (*SQLite, error) {
	if !identifier.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name: %q", collection)
	}
	if path == "" {
		path = "ragmodes.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serialises writers from the ingestion workers
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, collection: collection, embedder: embedder}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			transformed_content TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding TEXT NOT NULL
		)`, s.collection)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *SQLite) Store(ctx context.Context, record models.Record) (string, error) {
	record, err := prepare(record)
	if err != nil {
		return "", err
	}
	vec, err := embedText(ctx, s.embedder, record.Content)
	if err != nil {
		return "", err
	}

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	embedding, err := json.Marshal(vec)
	if err != nil {
		return "", fmt.Errorf("failed to encode embedding: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, transformed_content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			content = excluded.content,
			transformed_content = excluded.transformed_content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`, s.collection)

	if _, err := tx.ExecContext(ctx, stmt,
		record.ID, record.Content, record.TransformedContent, string(metadata), string(embedding),
	); err != nil {
		return "", fmt.Errorf("failed to insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return record.ID, nil
}

func (s *SQLite) Query(ctx context.Context, text string, topK int) ([]models.Record, error) {
	if topK <= 0 {
		return []models.Record{}, nil
	}

	var rows []sqliteRow
	query := fmt.Sprintf(`SELECT id, content, transformed_content, metadata, embedding FROM %s`, s.collection)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	if len(rows) == 0 {
		return []models.Record{}, nil
	}

	vec, err := embedText(ctx, s.embedder, text)
	if err != nil {
		return nil, err
	}

	candidates := make([]scored, 0, len(rows))
	for _, row := range rows {
		var embedding []float32
		if err := json.Unmarshal([]byte(row.Embedding), &embedding); err != nil {
			logger.Warn("Skipping record %s with unreadable embedding: %v", row.ID, err)
			continue
		}
		metadata := map[string]any{}
		if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
			logger.Warn("Record %s has unreadable metadata: %v", row.ID, err)
		}
		candidates = append(candidates, scored{
			record: models.Record{
				ID:                 row.ID,
				Content:            row.Content,
				TransformedContent: row.TransformedContent,
				Metadata:           metadata,
			},
			vec: embedding,
		})
	}
	return rank(candidates, vec, topK), nil
}

// Reset drops and recreates the collection table.
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.collection)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	return s.initialize(ctx)
}

func (s *SQLite) Collection() string { return s.collection }

func (s *SQLite) Close() error {
	return s.db.Close()
}
