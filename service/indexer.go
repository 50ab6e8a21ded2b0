package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"adgm-review-backend/models"
	"adgm-review-backend/repository"

	"github.com/ledongthuc/pdf"
)

var ErrCorpusEmpty = errors.New("no documents found in corpus directory")

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// Embedder turns texts into vectors
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Indexer builds the reference-corpus vector index. It walks a corpus
// directory, chunks PDF pages and text files, embeds the chunks, and writes
// a flat index plus the chunk records that map vector ids back to sources.
type Indexer struct {
	embedder  Embedder
	chunkSize int
	overlap   int
}

// IndexerOption is a functional option for Indexer
type IndexerOption func(*Indexer)

// IndexerWithChunking overrides the chunk size and overlap
func IndexerWithChunking(size, overlap int) IndexerOption {
	return func(ix *Indexer) {
		ix.chunkSize = size
		ix.overlap = overlap
	}
}

// NewIndexer creates an indexer using the given embedder
func NewIndexer(embedder Embedder, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		embedder:  embedder,
		chunkSize: defaultChunkSize,
		overlap:   defaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// BuildIndex walks corpusDir, embeds every chunk, writes the flat index to
// indexPath and the chunk records to the store. Returns the built chunks.
func (ix *Indexer) BuildIndex(ctx context.Context, corpusDir, indexPath string, store repository.ChunkStore) ([]models.CorpusChunk, error) {
	chunks, err := ix.CollectChunks(corpusDir)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCorpusEmpty, corpusDir)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed corpus chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedded %d chunks but got %d vectors", len(chunks), len(vectors))
	}

	// the index dimension is whatever the embedder produced for the first chunk
	dim := len(vectors[0])
	log.Printf("Embedding dimension: %d; nb vectors: %d", dim, len(vectors))

	index, err := repository.NewFlatIndex(dim)
	if err != nil {
		return nil, err
	}
	if err := index.Add(vectors); err != nil {
		return nil, err
	}

	for i := range chunks {
		chunks[i].ID = i
		chunks[i].Embedding = vectors[i]
	}

	if err := index.Save(indexPath); err != nil {
		return nil, err
	}
	if err := store.SaveChunks(ctx, chunks); err != nil {
		return nil, err
	}

	log.Printf("Index built and saved to %s (%d chunks)", indexPath, len(chunks))
	return chunks, nil
}

// CollectChunks walks the corpus directory and chunks every .pdf and .txt
// file. PDF files are chunked per page; the walk order is lexical so chunk
// ids are stable across builds.
func (ix *Indexer) CollectChunks(corpusDir string) ([]models.CorpusChunk, error) {
	var chunks []models.CorpusChunk

	err := filepath.WalkDir(corpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf":
			pages, err := readPDFPages(path)
			if err != nil {
				log.Printf("Warning: skipping unreadable PDF %s: %v", path, err)
				return nil
			}
			for _, page := range pages {
				if strings.TrimSpace(page.text) == "" {
					continue
				}
				pageNo := page.number
				for ci, text := range chunkText(page.text, ix.chunkSize, ix.overlap) {
					chunks = append(chunks, models.CorpusChunk{
						Source:     path,
						Page:       &pageNo,
						ChunkIndex: ci,
						Text:       text,
					})
				}
			}
		case ".txt":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read corpus file %s: %w", path, err)
			}
			for ci, text := range chunkText(string(data), ix.chunkSize, ix.overlap) {
				chunks = append(chunks, models.CorpusChunk{
					Source:     path,
					Page:       nil,
					ChunkIndex: ci,
					Text:       text,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus directory: %w", err)
	}

	return chunks, nil
}

type pdfPage struct {
	number int
	text   string
}

// readPDFPages extracts plain text per page, 1-based
func readPDFPages(path string) ([]pdfPage, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []pdfPage
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, pdfPage{number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single broken page should not sink the whole document
			log.Printf("Warning: failed to extract page %d of %s: %v", i, path, err)
			text = ""
		}
		pages = append(pages, pdfPage{number: i, text: text})
	}
	return pages, nil
}

var blankLinePattern = regexp.MustCompile(`\n\s*\n+`)

// cleanText collapses runs of blank lines and trims surrounding whitespace
func cleanText(s string) string {
	return strings.TrimSpace(blankLinePattern.ReplaceAllString(s, "\n\n"))
}

// chunkText splits cleaned text into fixed-size chunks with overlap. Text
// within the chunk size yields a single chunk. The window always advances by
// at least one rune, so chunking terminates for any overlap setting.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(cleanText(text))
	if len(runes) <= size {
		return []string{string(runes)}
	}

	advance := size - overlap
	if advance < 1 {
		advance = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += advance {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
