package services

import (
	"context"
	"errors"
	"sync"

	"docqa-platform/models"
)

// fakeEmbedder produces deterministic vectors derived from text length
// so similarity ordering in tests is predictable.
type fakeEmbedder struct {
	dimension int
	failNext  bool
	calls     int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dimension: 4}
}

func (f *fakeEmbedder) Dimension() int { return f.dimension }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failNext {
		f.failNext = false
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dimension)
		for j, r := range text {
			v[j%f.dimension] += float32(r % 13)
		}
		v[0] += 1 // never a zero vector
		out[i] = v
	}
	return out, nil
}

// fakeDocStore is an in-memory DocumentStore.
type fakeDocStore struct {
	mu         sync.Mutex
	docs       map[string]models.Document
	failInsert bool
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string]models.Document)}
}

func (f *fakeDocStore) Insert(_ context.Context, doc models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return errors.New("metadata store unavailable")
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocStore) ListByOwner(_ context.Context, ownerEmail string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Document{}
	for _, doc := range f.docs {
		if doc.OwnerEmail == ownerEmail {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeDocStore) GetByID(_ context.Context, ownerEmail, id string) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.OwnerEmail != ownerEmail {
		return models.Document{}, ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocStore) AllFilePaths(_ context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make(map[string]bool)
	for _, doc := range f.docs {
		if doc.FilePath != "" {
			paths[doc.FilePath] = true
		}
	}
	return paths, nil
}

func (f *fakeDocStore) Delete(_ context.Context, ownerEmail, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.OwnerEmail != ownerEmail {
		return ErrNotFound
	}
	delete(f.docs, id)
	return nil
}
