package ai

import (
	"context"
	"errors"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// embeddingDimension matches the text-embedding-004 output size.
const embeddingDimension = 768

// embedBatchSize is the per-request content cap of the batch embed API.
const embedBatchSize = 100

var ErrNoEmbeddings = errors.New("embedding response contained no vectors")

// Embedder turns text into dense vectors. The batch call is
// all-or-nothing: either every input gets a vector or an error
// is returned and no partial result escapes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(apiKey, model string) (*GeminiEmbedder, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Dimension() int { return embeddingDimension }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, ErrNoEmbeddings
	}
	return resp.Embedding.Values, nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := em.NewBatch()
		for _, text := range texts[start:end] {
			batch = batch.AddContent(genai.Text(text))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch at offset %d: %w", start, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-start, len(resp.Embeddings))
		}
		for _, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, ErrNoEmbeddings
			}
			vectors = append(vectors, emb.Values)
		}
	}
	return vectors, nil
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
