package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"adgm-review-backend/models"
	"adgm-review-backend/repository"
)

var ErrIndexUnavailable = errors.New("citation index unavailable")

const defaultTopK = 3

// PassageSearcher finds the corpus chunks nearest to a query embedding
type PassageSearcher interface {
	Search(ctx context.Context, embedding []float32, k int) ([]models.CitationResult, error)
}

// Summarizer produces structured text from a prompt
type Summarizer interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// CitationService retrieves supporting ADGM passages for an issue and asks
// the model to synthesize a one-sentence citation with a short excerpt
type CitationService struct {
	embedder   Embedder
	searcher   PassageSearcher
	summarizer Summarizer
	topK       int
}

// CitationOption is a functional option for CitationService
type CitationOption func(*CitationService)

// CitationWithTopK overrides how many passages are retrieved per query
func CitationWithTopK(k int) CitationOption {
	return func(s *CitationService) {
		s.topK = k
	}
}

// NewCitationService creates a citation service over the given searcher
func NewCitationService(embedder Embedder, searcher PassageSearcher, summarizer Summarizer, opts ...CitationOption) *CitationService {
	s := &CitationService{
		embedder:   embedder,
		searcher:   searcher,
		summarizer: summarizer,
		topK:       defaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFileCitationService loads the on-disk flat index and its chunk sidecar
// and builds a citation service over them. Returns ErrIndexUnavailable when
// either file is missing, so callers can degrade to reviews without
// citations.
func NewFileCitationService(indexPath, metaPath string, embedder Embedder, summarizer Summarizer, opts ...CitationOption) (*CitationService, error) {
	if _, err := os.Stat(indexPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, indexPath)
	}
	if _, err := os.Stat(metaPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, metaPath)
	}

	index, err := repository.LoadFlatIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	chunks, err := repository.NewFileChunkStore(metaPath).LoadChunks(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	searcher, err := repository.NewIndexSearcher(index, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	return NewCitationService(embedder, searcher, summarizer, opts...), nil
}

// CitationForIssue retrieves the nearest passages for an issue description
// and synthesizes a citation summary for them
func (s *CitationService) CitationForIssue(ctx context.Context, query string) (*models.Citation, error) {
	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed citation query: %w", err)
	}

	results, err := s.searcher.Search(ctx, embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}

	summary, err := s.summarize(ctx, query, results)
	if err != nil {
		return nil, err
	}

	return &models.Citation{
		Query:   query,
		Results: results,
		Summary: summary,
	}, nil
}

func (s *CitationService) summarize(ctx context.Context, query string, results []models.CitationResult) (models.CitationSummary, error) {
	passages := make([]string, 0, len(results))
	for _, r := range results {
		passages = append(passages, r.Text)
	}

	prompt := fmt.Sprintf(
		"You are a legal assistant. Given this query and the retrieved passages from ADGM documents, "+
			"produce a one-sentence citation (with which document/file and page) that supports or explains the query, "+
			"and extract a short quoted passage (<= 120 words) that is most relevant. "+
			"If nothing relevant is found, say 'no relevant passage found'.\n\n"+
			"QUERY: %s\n\nRETRIEVED_PASSAGES:\n%s\n\n"+
			"Output JSON with keys: citation (string), excerpt (string).",
		query, strings.Join(passages, "\n\n---\n\n"))

	raw, err := s.summarizer.GenerateJSON(ctx, prompt)
	if err != nil {
		return models.CitationSummary{}, fmt.Errorf("failed to summarize citation: %w", err)
	}

	var summary models.CitationSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		// non-JSON output still carries the citation text
		return models.CitationSummary{Citation: raw, Excerpt: ""}, nil
	}
	return summary, nil
}
