package models

// CorpusChunk is one indexed slice of a reference corpus source.
// Produced once at index build time and read-only thereafter. Concatenating
// all chunks of a source in chunk_index order, minus the configured overlap,
// reconstructs the cleaned source text.
type CorpusChunk struct {
	ID         int       `json:"_id"`
	Source     string    `json:"source"`
	Page       *int      `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// CitationResult is one retrieved passage, scored by squared Euclidean
// distance to the query embedding (smaller is closer)
type CitationResult struct {
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
	Page       *int    `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
}

// CitationSummary is the synthesized attribution for a set of passages
type CitationSummary struct {
	Citation string `json:"citation"`
	Excerpt  string `json:"excerpt"`
}

// Citation bundles the retrieval results and the synthesized summary for an
// issue description. Results are ordered nearest first.
type Citation struct {
	Query   string           `json:"query"`
	Results []CitationResult `json:"results"`
	Summary CitationSummary  `json:"llm_summary"`
}
