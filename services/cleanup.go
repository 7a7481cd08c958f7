package services

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"
)

// StorageSweeper removes uploaded files that no document row points
// at. Such orphans appear when an ingestion fails after the file was
// saved; the all-or-nothing pipeline never leaves vectors or metadata
// behind, so the file on disk is the only residue to collect.
type StorageSweeper struct {
	root      string
	minAge    time.Duration
	documents DocumentStore
	scheduler *gocron.Scheduler
}

func NewStorageSweeper(root string, minAge time.Duration, documents DocumentStore) *StorageSweeper {
	return &StorageSweeper{
		root:      root,
		minAge:    minAge,
		documents: documents,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start runs the sweep at the given interval until Stop is called.
func (s *StorageSweeper) Start(interval time.Duration) error {
	_, err := s.scheduler.Every(interval).Tag("storage-sweep").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			log.Printf("storage sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *StorageSweeper) Stop() {
	s.scheduler.Stop()
}

// Sweep walks the storage root and deletes files older than minAge
// that no document references. The age floor keeps it from racing an
// ingestion that is still in flight.
func (s *StorageSweeper) Sweep(ctx context.Context) error {
	known, err := s.documents.AllFilePaths(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-s.minAge)
	removed := 0
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if known[path] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			log.Printf("failed to remove orphaned file %s: %v", path, err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		log.Printf("storage sweep removed %d orphaned files", removed)
	}
	return nil
}
