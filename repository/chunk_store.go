package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"adgm-review-backend/models"
)

// ChunkStore persists the chunk records that accompany a vector index
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []models.CorpusChunk) error
	LoadChunks(ctx context.Context) ([]models.CorpusChunk, error)
}

// FileChunkStore keeps chunk records in a JSON sidecar file next to the
// on-disk vector index. Embeddings live in the index, not the sidecar.
type FileChunkStore struct {
	path string
}

// NewFileChunkStore creates a file-backed chunk store at the given path
func NewFileChunkStore(path string) *FileChunkStore {
	return &FileChunkStore{path: path}
}

// SaveChunks writes all chunk records, replacing any previous content
func (s *FileChunkStore) SaveChunks(_ context.Context, chunks []models.CorpusChunk) error {
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chunk records: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write chunk records: %w", err)
	}
	return nil
}

// LoadChunks reads all chunk records in index order
func (s *FileChunkStore) LoadChunks(_ context.Context) ([]models.CorpusChunk, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk records: %w", err)
	}
	var chunks []models.CorpusChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to parse chunk records: %w", err)
	}
	return chunks, nil
}

// IndexSearcher pairs a flat vector index with its chunk records to answer
// nearest-passage queries. Chunk ids are positions in the index.
type IndexSearcher struct {
	index  *FlatIndex
	chunks []models.CorpusChunk
}

// NewIndexSearcher creates a searcher over a loaded index and its chunks
func NewIndexSearcher(index *FlatIndex, chunks []models.CorpusChunk) (*IndexSearcher, error) {
	if index.Count() != len(chunks) {
		return nil, fmt.Errorf("index holds %d vectors but %d chunk records were loaded", index.Count(), len(chunks))
	}
	return &IndexSearcher{index: index, chunks: chunks}, nil
}

// Search returns the k chunks nearest to the query embedding, nearest first
func (s *IndexSearcher) Search(_ context.Context, embedding []float32, k int) ([]models.CitationResult, error) {
	hits, err := s.index.Search(embedding, k)
	if err != nil {
		return nil, err
	}

	results := make([]models.CitationResult, 0, len(hits))
	for _, hit := range hits {
		chunk := s.chunks[hit.ID]
		results = append(results, models.CitationResult{
			Score:      hit.Distance,
			Source:     chunk.Source,
			Page:       chunk.Page,
			ChunkIndex: chunk.ChunkIndex,
			Text:       chunk.Text,
		})
	}
	return results, nil
}
