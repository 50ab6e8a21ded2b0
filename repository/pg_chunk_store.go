package repository

import (
	"context"
	"fmt"
	"strings"

	"adgm-review-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgChunkStore keeps corpus chunks and their embeddings in Postgres with
// pgvector. It serves both as a ChunkStore and as a passage searcher, so a
// deployment can skip the on-disk index entirely.
type PgChunkStore struct {
	db *pgxpool.Pool
}

// NewPgChunkStore creates a Postgres-backed chunk store
func NewPgChunkStore(db *pgxpool.Pool) *PgChunkStore {
	return &PgChunkStore{db: db}
}

// formatVector formats an embedding vector as a pgvector literal
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SaveChunks replaces all stored chunks in a single transaction
func (s *PgChunkStore) SaveChunks(ctx context.Context, chunks []models.CorpusChunk) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE corpus_chunks`); err != nil {
		return fmt.Errorf("failed to clear corpus chunks: %w", err)
	}

	query := `
		INSERT INTO corpus_chunks (
			id, source, page, chunk_index, chunk_text, embedding
		) VALUES ($1, $2, $3, $4, $5, $6::vector)`

	for _, chunk := range chunks {
		_, err := tx.Exec(
			ctx, query,
			chunk.ID,
			chunk.Source,
			chunk.Page,
			chunk.ChunkIndex,
			chunk.Text,
			formatVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit corpus chunks: %w", err)
	}
	return nil
}

// LoadChunks retrieves all chunk records in index order, without embeddings
func (s *PgChunkStore) LoadChunks(ctx context.Context) ([]models.CorpusChunk, error) {
	query := `
		SELECT id, source, page, chunk_index, chunk_text
		FROM corpus_chunks
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query corpus chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.CorpusChunk
	for rows.Next() {
		var chunk models.CorpusChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.Source,
			&chunk.Page,
			&chunk.ChunkIndex,
			&chunk.Text,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan corpus chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating corpus chunks: %w", err)
	}
	return chunks, nil
}

// Count returns the number of stored chunks
func (s *PgChunkStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM corpus_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count corpus chunks: %w", err)
	}
	return count, nil
}

// Search returns the k chunks nearest to the query embedding by Euclidean
// distance, nearest first
func (s *PgChunkStore) Search(ctx context.Context, embedding []float32, k int) ([]models.CitationResult, error) {
	vectorStr := formatVector(embedding)

	query := `
		SELECT
			embedding <-> $1::vector AS distance,
			source,
			page,
			chunk_index,
			chunk_text
		FROM corpus_chunks
		ORDER BY embedding <-> $1::vector, id
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, vectorStr, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search corpus chunks: %w", err)
	}
	defer rows.Close()

	var results []models.CitationResult
	for rows.Next() {
		var r models.CitationResult
		err := rows.Scan(
			&r.Score,
			&r.Source,
			&r.Page,
			&r.ChunkIndex,
			&r.Text,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		// pgvector reports plain Euclidean distance; square it to match the
		// flat index scoring
		r.Score = r.Score * r.Score
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	return results, nil
}
