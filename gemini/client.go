package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var (
	ErrMissingAPIKey    = errors.New("GEMINI_API_KEY not set")
	ErrEmbeddingFailed  = errors.New("failed to generate embeddings")
	ErrGenerationFailed = errors.New("failed to generate content")
)

const (
	defaultEmbeddingModel  = "text-embedding-004"
	defaultGenerationModel = "gemini-2.0-flash"

	// embedding requests are batched; the API caps batch size
	maxEmbedBatchSize = 50

	maxRetries     = 3
	initialBackoff = time.Second
)

// Client wraps the Gemini SDK with the retry and batching behavior the
// review pipeline needs
type Client struct {
	genai           *genai.Client
	embeddingModel  string
	generationModel string
}

// Option is a functional option for Client
type Option func(*Client)

// WithEmbeddingModel overrides the embedding model
func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		c.embeddingModel = model
	}
}

// WithGenerationModel overrides the generation model
func WithGenerationModel(model string) Option {
	return func(c *Client) {
		c.generationModel = model
	}
}

// NewClient creates a Gemini client from the GEMINI_API_KEY environment
// variable
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	inner, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	c := &Client{
		genai:           inner,
		embeddingModel:  defaultEmbeddingModel,
		generationModel: defaultGenerationModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying SDK client
func (c *Client) Close() error {
	return c.genai.Close()
}

// EmbedDocuments embeds corpus passages for indexing. Texts are sent in
// batches of at most 50; the result preserves input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, genai.TaskTypeRetrievalDocument)
}

// EmbedQuery embeds a single retrieval query
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, genai.TaskTypeRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) embed(ctx context.Context, texts []string, taskType genai.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.genai.EmbeddingModel(c.embeddingModel)
	model.TaskType = taskType

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatchSize {
		end := start + maxEmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		resp, err := retry(ctx, func() (*genai.BatchEmbedContentsResponse, error) {
			return model.BatchEmbedContents(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, end-start, len(resp.Embeddings))
		}
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Values)
		}
	}
	return vectors, nil
}

// GenerateJSON runs the prompt at temperature zero and returns the response
// text with any markdown code fences stripped
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	model := c.genai.GenerativeModel(c.generationModel)
	model.SetTemperature(0)

	resp, err := retry(ctx, func() (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrGenerationFailed
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}

	return StripCodeFences(builder.String()), nil
}

// StripCodeFences removes a surrounding markdown code fence from model
// output, with or without a language tag
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		first := strings.TrimSpace(s[:i])
		if len(first) <= 8 {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// retry runs fn up to maxRetries times with doubling backoff
func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	var err error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		result, err = fn()
		if err == nil {
			return result, nil
		}
	}
	return result, err
}
