package models

import "time"

// Document is the metadata row for one successfully ingested upload.
// It is written only after every ingestion stage succeeded; a failed
// ingestion leaves no row behind.
type Document struct {
	ID         string    `bson:"_id" json:"id"`
	OwnerEmail string    `bson:"owner_email" json:"-"`
	Filename   string    `bson:"filename" json:"filename"`
	FilePath   string    `bson:"file_path" json:"-"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
	PageCount  int       `bson:"page_count" json:"page_count"`
	ChunkCount int       `bson:"chunk_count" json:"chunk_count"`
}

// Page is one extracted page or section of an uploaded file. Number is
// zero for formats without page structure (plain text, DOCX).
type Page struct {
	Text   string
	Number int
}

// Chunk is one bounded, overlapping slice of extracted text, the unit
// of embedding and retrieval.
type Chunk struct {
	Text string
	Page int
}

// ChunkMetadata travels with every vector record and carries the
// provenance needed for citations and filtered deletes.
type ChunkMetadata struct {
	Source      string `json:"source"`
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Page        int    `json:"page"`
	TotalChunks int    `json:"total_chunks"`
	OwnerEmail  string `json:"user_email"`
}

// UploadResponse is the immediate acknowledgement returned before any
// processing has happened.
type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	SizeKB   int64  `json:"size_kb"`
	Status   string `json:"status"`
}
