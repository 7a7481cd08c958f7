package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docqa-platform/internal/vectorstore"
	"docqa-platform/internal/vectorstore/memory"
)

func newTestPipeline(t *testing.T) (*IngestionPipeline, *memory.Store, *fakeDocStore, *fakeEmbedder) {
	t.Helper()
	vectors := memory.NewStore()
	docs := newFakeDocStore()
	embedder := newFakeEmbedder()
	p := NewIngestionPipeline(NewExtractor(), NewChunker(100, 20), embedder, vectors, docs, nil)
	return p, vectors, docs, embedder
}

func writeUpload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func TestIngestIndexesAndRecordsDocument(t *testing.T) {
	p, vectors, docs, embedder := newTestPipeline(t)
	ctx := context.Background()

	text := strings.Repeat("A sentence about quarterly revenue figures. ", 10)
	path := writeUpload(t, "report.txt", text)

	err := p.Ingest(ctx, "alice@example.com", "doc-1", path, "report.txt")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	doc, err := docs.GetByID(ctx, "alice@example.com", "doc-1")
	if err != nil {
		t.Fatalf("document row missing: %v", err)
	}
	if doc.Filename != "report.txt" {
		t.Errorf("filename = %q", doc.Filename)
	}
	if doc.ChunkCount < 2 {
		t.Errorf("chunk count = %d, expected several", doc.ChunkCount)
	}

	collection := vectorstore.CollectionName("alice@example.com")
	queryVec, _ := embedder.Embed(ctx, "quarterly revenue")
	results, err := vectors.Query(ctx, collection, queryVec, 50, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != doc.ChunkCount {
		t.Errorf("indexed %d chunks, document row says %d", len(results), doc.ChunkCount)
	}
	for _, r := range results {
		if r.Meta.DocumentID != "doc-1" {
			t.Errorf("chunk carries document_id %q", r.Meta.DocumentID)
		}
		if r.Meta.Source != "report.txt" {
			t.Errorf("chunk carries source %q", r.Meta.Source)
		}
		if r.Meta.TotalChunks != doc.ChunkCount {
			t.Errorf("chunk carries total_chunks %d", r.Meta.TotalChunks)
		}
	}
}

func TestIngestEmbeddingFailureLeavesNothing(t *testing.T) {
	p, vectors, docs, embedder := newTestPipeline(t)
	ctx := context.Background()
	embedder.failNext = true

	path := writeUpload(t, "doomed.txt", strings.Repeat("text to embed. ", 20))
	err := p.Ingest(ctx, "alice@example.com", "doc-2", path, "doomed.txt")
	if !errors.Is(err, ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}

	if _, err := docs.GetByID(ctx, "alice@example.com", "doc-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("document row written despite failure")
	}
	collection := vectorstore.CollectionName("alice@example.com")
	results, _ := vectors.Query(ctx, collection, []float32{1, 0, 0, 0}, 10, nil)
	if len(results) != 0 {
		t.Errorf("vectors written despite failure: %d", len(results))
	}
}

func TestIngestRollsBackVectorsWhenInsertFails(t *testing.T) {
	p, vectors, docs, _ := newTestPipeline(t)
	ctx := context.Background()
	docs.failInsert = true

	path := writeUpload(t, "half.txt", strings.Repeat("content that chunks nicely. ", 20))
	err := p.Ingest(ctx, "bob@example.com", "doc-3", path, "half.txt")
	if err == nil {
		t.Fatal("expected error when document insert fails")
	}

	collection := vectorstore.CollectionName("bob@example.com")
	results, queryErr := vectors.Query(ctx, collection, []float32{1, 0, 0, 0}, 50, nil)
	if queryErr != nil {
		t.Fatalf("Query: %v", queryErr)
	}
	if len(results) != 0 {
		t.Errorf("expected vector rollback, found %d chunks", len(results))
	}
}

func TestIngestUnsupportedFormatFailsEarly(t *testing.T) {
	p, _, _, embedder := newTestPipeline(t)
	path := writeUpload(t, "photo.png", "binary-ish")

	err := p.Ingest(context.Background(), "alice@example.com", "doc-4", path, "photo.png")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for rejected format", embedder.calls)
	}
}
