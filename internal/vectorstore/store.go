// Package vectorstore defines the per-user vector collection store.
// Collections are the isolation boundary: every user gets their own
// collection, named deterministically from their email, and all reads
// and writes go through that collection.
package vectorstore

import (
	"context"
	"errors"
	"regexp"

	"docqa-platform/models"
)

// ErrLengthMismatch is returned by Add when the parallel batch slices
// disagree in length. Nothing is written in that case.
var ErrLengthMismatch = errors.New("vectorstore: batch length mismatch")

// Scored is one similarity hit with its payload.
type Scored struct {
	Text  string
	Meta  models.ChunkMetadata
	Score float32
}

// Filter restricts an operation to matching records. DocumentID takes
// an exact match; Sources matches any of the listed source filenames
// (logical OR). A nil filter matches everything in the collection.
type Filter struct {
	DocumentID string
	Sources    []string
}

// Store is the vector collection store contract.
type Store interface {
	// EnsureCollection creates the named collection if it does not
	// exist. Idempotent and safe under concurrent callers.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Add appends a batch of records. ids, texts, vectors and metas are
	// parallel slices; a length mismatch returns ErrLengthMismatch and
	// writes nothing.
	Add(ctx context.Context, collection string, ids []string, texts []string, vectors [][]float32, metas []models.ChunkMetadata) error

	// Query returns up to topK records nearest to vector, ordered by
	// decreasing similarity. An empty collection or a filter matching
	// nothing yields an empty slice, never an error.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]Scored, error)

	// Delete removes all records matching filter. Deleting a filter
	// that matches nothing is a no-op.
	Delete(ctx context.Context, collection string, filter *Filter) error

	Close() error
}

var collectionSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// CollectionName derives the per-user collection name from the owner's
// email, e.g. k@gmail.com -> docs_k_gmail_com.
func CollectionName(ownerEmail string) string {
	return "docs_" + collectionSanitizer.ReplaceAllString(ownerEmail, "_")
}
