package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/telemetry"
	"docqa-platform/internal/vectorstore"
	"docqa-platform/models"
)

// IngestionPipeline runs the extract, chunk, embed, index sequence for
// one uploaded file. Ingestion is all or nothing: the document row is
// written last, and an indexed batch is rolled back if that write
// fails, so a document is either fully searchable or absent.
type IngestionPipeline struct {
	extractor *Extractor
	chunker   *Chunker
	embedder  ai.Embedder
	vectors   vectorstore.Store
	documents DocumentStore
	metrics   *telemetry.Metrics
}

func NewIngestionPipeline(extractor *Extractor, chunker *Chunker, embedder ai.Embedder, vectors vectorstore.Store, documents DocumentStore, metrics *telemetry.Metrics) *IngestionPipeline {
	return &IngestionPipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		metrics:   metrics,
	}
}

// Ingest processes the file at filePath for ownerEmail. The document
// ID is assigned by the caller before indexing so every chunk carries
// it from the start.
func (p *IngestionPipeline) Ingest(ctx context.Context, ownerEmail, docID, filePath, originalFilename string) error {
	tracer := otel.Tracer("ingestion-pipeline")
	ctx, span := tracer.Start(ctx, "ingest.document")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", docID),
		attribute.String("document.filename", originalFilename),
	)

	start := time.Now()
	err := p.ingest(ctx, ownerEmail, docID, filePath, originalFilename)

	if p.metrics != nil {
		p.metrics.IngestionDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			p.metrics.IngestionFailures.Add(ctx, 1)
		}
	}
	if err != nil {
		span.SetAttributes(attribute.Bool("ingest.failed", true))
	}
	return err
}

func (p *IngestionPipeline) ingest(ctx context.Context, ownerEmail, docID, filePath, originalFilename string) error {
	pages, err := p.extractor.Extract(filePath)
	if err != nil {
		return err
	}

	chunks := p.chunker.Chunk(pages)
	if len(chunks) == 0 {
		log.Printf("document %s (%s) produced no chunks, nothing to index", docID, originalFilename)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingFailed, len(vectors), len(chunks))
	}

	collection := vectorstore.CollectionName(ownerEmail)
	if err := p.vectors.EnsureCollection(ctx, collection, p.embedder.Dimension()); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}

	ids := make([]string, len(chunks))
	metas := make([]models.ChunkMetadata, len(chunks))
	for i, chunk := range chunks {
		ids[i] = uuid.NewString()
		metas[i] = models.ChunkMetadata{
			Source:      originalFilename,
			DocumentID:  docID,
			ChunkIndex:  i,
			Page:        chunk.Page,
			TotalChunks: len(chunks),
			OwnerEmail:  ownerEmail,
		}
	}

	if err := p.vectors.Add(ctx, collection, ids, texts, vectors, metas); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}

	doc := models.Document{
		ID:         docID,
		OwnerEmail: ownerEmail,
		Filename:   originalFilename,
		FilePath:   filePath,
		UploadedAt: time.Now(),
		PageCount:  len(pages),
		ChunkCount: len(chunks),
	}
	if err := p.documents.Insert(ctx, doc); err != nil {
		// Roll the indexed chunks back so no orphaned vectors remain.
		filter := &vectorstore.Filter{DocumentID: docID}
		if delErr := p.vectors.Delete(ctx, collection, filter); delErr != nil {
			log.Printf("rollback of document %s vectors failed: %v", docID, delErr)
		}
		return fmt.Errorf("failed to record document %s: %w", docID, err)
	}

	if p.metrics != nil {
		p.metrics.ChunksIndexed.Add(ctx, int64(len(chunks)))
	}
	log.Printf("ingested document %s (%s): %d pages, %d chunks", docID, originalFilename, len(pages), len(chunks))
	return nil
}
