package memory

import (
	"context"
	"errors"
	"testing"

	"docqa-platform/internal/vectorstore"
	"docqa-platform/models"
)

func addChunks(t *testing.T, s *Store, collection string, texts []string, docID, source string, vectors [][]float32) {
	t.Helper()
	ids := make([]string, len(texts))
	metas := make([]models.ChunkMetadata, len(texts))
	for i := range texts {
		ids[i] = collection + "-" + texts[i]
		metas[i] = models.ChunkMetadata{
			Source:      source,
			DocumentID:  docID,
			ChunkIndex:  i,
			TotalChunks: len(texts),
		}
	}
	if err := s.Add(context.Background(), collection, ids, texts, vectors, metas); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestQueryIsScopedToCollection(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addChunks(t, s, "docs_alice_example_com", []string{"alice chunk"}, "doc-a", "a.pdf",
		[][]float32{{1, 0, 0}})
	addChunks(t, s, "docs_bob_example_com", []string{"bob chunk"}, "doc-b", "b.pdf",
		[][]float32{{1, 0, 0}})

	results, err := s.Query(ctx, "docs_alice_example_com", []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Text != "alice chunk" {
		t.Errorf("got text %q from another collection", results[0].Text)
	}
}

func TestQueryMissingCollectionReturnsEmpty(t *testing.T) {
	s := NewStore()
	results, err := s.Query(context.Background(), "docs_nobody", []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestQueryRanksByCosineSimilarity(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addChunks(t, s, "c", []string{"far", "near", "middle"}, "doc", "f.txt", [][]float32{
		{0, 1, 0},
		{1, 0, 0},
		{1, 1, 0},
	})

	results, err := s.Query(ctx, "c", []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text != "near" || results[1].Text != "middle" {
		t.Errorf("unexpected ranking: %q, %q", results[0].Text, results[1].Text)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores out of order: %f < %f", results[0].Score, results[1].Score)
	}
}

func TestQueryFiltersByDocumentAndSource(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addChunks(t, s, "c", []string{"report chunk"}, "doc-1", "report.pdf", [][]float32{{1, 0}})
	addChunks(t, s, "c", []string{"notes chunk"}, "doc-2", "notes.txt", [][]float32{{1, 0}})

	byDoc, err := s.Query(ctx, "c", []float32{1, 0}, 10, &vectorstore.Filter{DocumentID: "doc-2"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byDoc) != 1 || byDoc[0].Text != "notes chunk" {
		t.Fatalf("document filter returned %v", byDoc)
	}

	bySource, err := s.Query(ctx, "c", []float32{1, 0}, 10, &vectorstore.Filter{Sources: []string{"report.pdf"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(bySource) != 1 || bySource[0].Text != "report chunk" {
		t.Fatalf("source filter returned %v", bySource)
	}
}

func TestDeleteByFilterIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addChunks(t, s, "c", []string{"one", "two"}, "doc-1", "a.pdf", [][]float32{{1, 0}, {0, 1}})
	addChunks(t, s, "c", []string{"keep"}, "doc-2", "b.pdf", [][]float32{{1, 1}})

	filter := &vectorstore.Filter{Sources: []string{"a.pdf"}}
	if err := s.Delete(ctx, "c", filter); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "c", filter); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	results, err := s.Query(ctx, "c", []float32{1, 1}, 10, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Text != "keep" {
		t.Fatalf("expected only surviving chunk, got %v", results)
	}
}

func TestAddRejectsMismatchedLengths(t *testing.T) {
	s := NewStore()
	err := s.Add(context.Background(), "c",
		[]string{"id-1", "id-2"},
		[]string{"only one text"},
		[][]float32{{1}, {2}},
		[]models.ChunkMetadata{{}, {}},
	)
	if !errors.Is(err, vectorstore.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestCollectionNameSanitization(t *testing.T) {
	got := vectorstore.CollectionName("alice.smith@example.com")
	want := "docs_alice_smith_example_com"
	if got != want {
		t.Errorf("CollectionName = %q, want %q", got, want)
	}
}
