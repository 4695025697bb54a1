package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

type PgvectorConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// Pgvector stores one collection per table in PostgreSQL with the vector
// extension. Similarity is cosine, served by an hnsw index.
type Pgvector struct {
	config   PgvectorConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

func NewPgvector(ctx context.Context, config PgvectorConfig, embedder types.Embedder) (*Pgvector, error) {
	if config.ConnString == "" {
		return nil, fmt.Errorf("database URL is required for pgvector")
	}
	if !identifier.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid collection name: %q", config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &Pgvector{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *Pgvector) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			transformed_content TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		vs.config.TableName, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *Pgvector) Store(ctx context.Context, record models.Record) (string, error) {
	record, err := prepare(record)
	if err != nil {
		return "", err
	}
	vec, err := embedText(ctx, vs.embedder, record.Content)
	if err != nil {
		return "", err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, transformed_content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			transformed_content = EXCLUDED.transformed_content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.TableName)

	_, err = tx.Exec(ctx, stmt,
		record.ID,
		record.Content,
		record.TransformedContent,
		record.Metadata,
		pgvector.NewVector(vec),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return record.ID, nil
}

func (vs *Pgvector) Query(ctx context.Context, text string, topK int) ([]models.Record, error) {
	if topK <= 0 {
		return []models.Record{}, nil
	}

	var count int
	if err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName)).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	if count == 0 {
		return []models.Record{}, nil
	}

	vec, err := embedText(ctx, vs.embedder, text)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, content, transformed_content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var (
			record models.Record
			score  float64
		)
		if err := rows.Scan(
			&record.ID,
			&record.Content,
			&record.TransformedContent,
			&record.Metadata,
			&score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		record.Score = float32(score)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return records, nil
}

// Reset drops the table and recreates it with its index.
func (vs *Pgvector) Reset(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", vs.config.TableName)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	return vs.initialize(ctx)
}

func (vs *Pgvector) Collection() string { return vs.config.TableName }

func (vs *Pgvector) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}
