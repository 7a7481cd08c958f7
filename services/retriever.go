package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/telemetry"
	"docqa-platform/internal/vectorstore"
	"docqa-platform/models"
)

// Default result counts. Tool-driven searches fetch a little more
// context than the direct answer path.
const (
	DefaultTopK = 6
	ToolTopK    = 8
)

// RetrievalFilter narrows a query to one document or a set of source
// filenames. The zero value matches the owner's whole collection.
type RetrievalFilter struct {
	DocumentID string
	Sources    []string
}

// Retriever answers similarity queries against a user's collection.
type Retriever struct {
	embedder ai.Embedder
	vectors  vectorstore.Store
	metrics  *telemetry.Metrics
}

func NewRetriever(embedder ai.Embedder, vectors vectorstore.Store, metrics *telemetry.Metrics) *Retriever {
	return &Retriever{embedder: embedder, vectors: vectors, metrics: metrics}
}

// Retrieve embeds the query and returns up to topK scored chunks from
// ownerEmail's collection. Both returned slices are always non-nil and
// the metadata slice is parallel to the text results.
func (r *Retriever) Retrieve(ctx context.Context, ownerEmail, query string, topK int, filter *RetrievalFilter) ([]string, []models.ChunkMetadata, error) {
	tracer := otel.Tracer("retriever")
	ctx, span := tracer.Start(ctx, "retrieve.chunks")
	defer span.End()

	if topK <= 0 {
		topK = DefaultTopK
	}
	span.SetAttributes(attribute.Int("retrieve.top_k", topK))

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	collection := vectorstore.CollectionName(ownerEmail)
	if err := r.vectors.EnsureCollection(ctx, collection, r.embedder.Dimension()); err != nil {
		return nil, nil, fmt.Errorf("failed to prepare collection: %w", err)
	}

	scored, err := r.vectors.Query(ctx, collection, vector, topK, toStoreFilter(filter))
	if err != nil {
		return nil, nil, fmt.Errorf("similarity query failed: %w", err)
	}

	if r.metrics != nil {
		r.metrics.RetrievalCounter.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Int("retrieve.results", len(scored)))

	texts := make([]string, 0, len(scored))
	metas := make([]models.ChunkMetadata, 0, len(scored))
	for _, s := range scored {
		texts = append(texts, s.Text)
		metas = append(metas, s.Meta)
	}
	return texts, metas, nil
}

func toStoreFilter(filter *RetrievalFilter) *vectorstore.Filter {
	if filter == nil {
		return nil
	}
	if filter.DocumentID == "" && len(filter.Sources) == 0 {
		return nil
	}
	return &vectorstore.Filter{
		DocumentID: filter.DocumentID,
		Sources:    filter.Sources,
	}
}
