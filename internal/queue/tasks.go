package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"docqa-platform/services"
)

const TaskIngestDocument = "document:ingest"

type IngestPayload struct {
	OwnerEmail       string `json:"owner_email"`
	DocumentID       string `json:"document_id"`
	FilePath         string `json:"file_path"`
	OriginalFilename string `json:"original_filename"`
}

// NewIngestTask builds the ingestion task for one uploaded file.
// Ingestion never retries: a failed run already rolled back its
// writes, and the uploaded file stays for the storage sweeper.
func NewIngestTask(ownerEmail, documentID, filePath, originalFilename string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		OwnerEmail:       ownerEmail,
		DocumentID:       documentID,
		FilePath:         filePath,
		OriginalFilename: originalFilename,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

type TaskProcessor struct {
	pipeline *services.IngestionPipeline
}

func NewTaskProcessor(pipeline *services.IngestionPipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	log.Printf("Ingesting document: owner=%s id=%s file=%s",
		payload.OwnerEmail, payload.DocumentID, payload.OriginalFilename)

	err := p.pipeline.Ingest(ctx, payload.OwnerEmail, payload.DocumentID, payload.FilePath, payload.OriginalFilename)
	if err != nil {
		// Failed uploads leave no document row, so the saved file is
		// dead weight. Remove it now instead of waiting for the sweep.
		if rmErr := os.Remove(payload.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("failed to remove file for failed ingestion %s: %v", payload.DocumentID, rmErr)
		}
		return fmt.Errorf("ingestion of %s failed: %w", payload.DocumentID, err)
	}

	log.Printf("Document ingested successfully: %s", payload.DocumentID)
	return nil
}
