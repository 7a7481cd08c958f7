// Package memory is an in-process Store using brute-force cosine
// similarity. It backs tests and single-node development setups.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"docqa-platform/internal/vectorstore"
	"docqa-platform/models"
)

type record struct {
	id     string
	text   string
	vector []float32
	meta   models.ChunkMetadata
}

type collection struct {
	dimension int
	records   []record
}

// Store keeps all collections in memory behind one mutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) EnsureCollection(_ context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{dimension: dimension}
	}
	return nil
}

func (s *Store) Add(_ context.Context, name string, ids []string, texts []string, vectors [][]float32, metas []models.ChunkMetadata) error {
	if len(ids) != len(texts) || len(ids) != len(vectors) || len(ids) != len(metas) {
		return vectorstore.ErrLengthMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		col = &collection{}
		s.collections[name] = col
	}
	for i := range ids {
		col.records = append(col.records, record{
			id:     ids[i],
			text:   texts[i],
			vector: vectors[i],
			meta:   metas[i],
		})
	}
	return nil
}

func (s *Store) Query(_ context.Context, name string, vector []float32, topK int, filter *vectorstore.Filter) ([]vectorstore.Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok || topK <= 0 {
		return []vectorstore.Scored{}, nil
	}

	type scoredIdx struct {
		idx   int
		score float32
	}
	var hits []scoredIdx
	for i, r := range col.records {
		if !matches(r.meta, filter) {
			continue
		}
		hits = append(hits, scoredIdx{idx: i, score: cosine(r.vector, vector)})
	}

	// Stable sort keeps insertion order for equal scores
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	results := make([]vectorstore.Scored, 0, len(hits))
	for _, h := range hits {
		r := col.records[h.idx]
		results = append(results, vectorstore.Scored{Text: r.text, Meta: r.meta, Score: h.score})
	}
	return results, nil
}

func (s *Store) Delete(_ context.Context, name string, filter *vectorstore.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return nil
	}
	kept := col.records[:0]
	for _, r := range col.records {
		if !matches(r.meta, filter) {
			kept = append(kept, r)
		}
	}
	col.records = kept
	return nil
}

func (s *Store) Close() error { return nil }

func matches(meta models.ChunkMetadata, filter *vectorstore.Filter) bool {
	if filter == nil {
		return true
	}
	if filter.DocumentID != "" && meta.DocumentID != filter.DocumentID {
		return false
	}
	if len(filter.Sources) > 0 {
		for _, src := range filter.Sources {
			if meta.Source == src {
				return true
			}
		}
		return false
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
