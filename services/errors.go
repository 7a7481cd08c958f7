package services

import "errors"

// Pipeline errors by stage. Routes map these onto HTTP statuses and
// the ingestion worker uses them to label failure logs.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrEmbeddingFailed   = errors.New("embedding generation failed")
	ErrIndexWriteFailed  = errors.New("vector index write failed")
	ErrNotFound          = errors.New("document not found")
)
