package services

import (
	"context"
	"testing"

	"docqa-platform/internal/vectorstore"
	"docqa-platform/internal/vectorstore/memory"
	"docqa-platform/models"
)

func seedChunks(t *testing.T, vectors *memory.Store, embedder *fakeEmbedder, ownerEmail string, texts []string, docID, source string) {
	t.Helper()
	ctx := context.Background()
	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("embed seed chunks: %v", err)
	}
	ids := make([]string, len(texts))
	metas := make([]models.ChunkMetadata, len(texts))
	for i := range texts {
		ids[i] = docID + "-" + source + "-" + texts[i][:3]
		metas[i] = models.ChunkMetadata{
			Source:      source,
			DocumentID:  docID,
			ChunkIndex:  i,
			TotalChunks: len(texts),
			OwnerEmail:  ownerEmail,
		}
	}
	collection := vectorstore.CollectionName(ownerEmail)
	if err := vectors.EnsureCollection(ctx, collection, embedder.Dimension()); err != nil {
		t.Fatalf("ensure collection: %v", err)
	}
	if err := vectors.Add(ctx, collection, ids, texts, vecs, metas); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}
}

func TestRetrieveReturnsParallelSlices(t *testing.T) {
	vectors := memory.NewStore()
	embedder := newFakeEmbedder()
	r := NewRetriever(embedder, vectors, nil)

	seedChunks(t, vectors, embedder, "alice@example.com",
		[]string{"budget details for Q3", "holiday schedule notes"}, "doc-1", "budget.pdf")

	texts, metas, err := r.Retrieve(context.Background(), "alice@example.com", "budget", 5, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(texts) != len(metas) {
		t.Fatalf("slices diverge: %d texts, %d metas", len(texts), len(metas))
	}
	if len(texts) != 2 {
		t.Errorf("expected 2 results, got %d", len(texts))
	}
	for i := range metas {
		if metas[i].DocumentID != "doc-1" {
			t.Errorf("result %d has document_id %q", i, metas[i].DocumentID)
		}
	}
}

func TestRetrieveEmptyCollectionReturnsNonNil(t *testing.T) {
	r := NewRetriever(newFakeEmbedder(), memory.NewStore(), nil)

	texts, metas, err := r.Retrieve(context.Background(), "nobody@example.com", "anything", 0, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if texts == nil || metas == nil {
		t.Fatal("expected non-nil empty slices")
	}
	if len(texts) != 0 {
		t.Errorf("expected no results, got %d", len(texts))
	}
}

func TestRetrieveIsolationBetweenUsers(t *testing.T) {
	vectors := memory.NewStore()
	embedder := newFakeEmbedder()
	r := NewRetriever(embedder, vectors, nil)

	seedChunks(t, vectors, embedder, "alice@example.com",
		[]string{"alice secret plans"}, "doc-a", "plans.txt")
	seedChunks(t, vectors, embedder, "bob@example.com",
		[]string{"bob grocery list"}, "doc-b", "list.txt")

	texts, metas, err := r.Retrieve(context.Background(), "bob@example.com", "plans", 10, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for i, meta := range metas {
		if meta.OwnerEmail != "bob@example.com" {
			t.Errorf("result %d (%q) belongs to %q", i, texts[i], meta.OwnerEmail)
		}
	}
}

func TestRetrieveFiltersBySource(t *testing.T) {
	vectors := memory.NewStore()
	embedder := newFakeEmbedder()
	r := NewRetriever(embedder, vectors, nil)

	seedChunks(t, vectors, embedder, "alice@example.com",
		[]string{"contract clause one"}, "doc-1", "contract.pdf")
	seedChunks(t, vectors, embedder, "alice@example.com",
		[]string{"meeting notes text"}, "doc-2", "notes.txt")

	filter := &RetrievalFilter{Sources: []string{"contract.pdf"}}
	texts, metas, err := r.Retrieve(context.Background(), "alice@example.com", "clause", 10, filter)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(texts) != 1 || metas[0].Source != "contract.pdf" {
		t.Fatalf("filter returned %v", metas)
	}
}

func TestRetrieveFiltersByDocumentID(t *testing.T) {
	vectors := memory.NewStore()
	embedder := newFakeEmbedder()
	r := NewRetriever(embedder, vectors, nil)

	seedChunks(t, vectors, embedder, "alice@example.com",
		[]string{"first document body"}, "doc-1", "a.txt")
	seedChunks(t, vectors, embedder, "alice@example.com",
		[]string{"second document body"}, "doc-2", "b.txt")

	filter := &RetrievalFilter{DocumentID: "doc-2"}
	_, metas, err := r.Retrieve(context.Background(), "alice@example.com", "body", 10, filter)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(metas) != 1 || metas[0].DocumentID != "doc-2" {
		t.Fatalf("filter returned %v", metas)
	}
}
