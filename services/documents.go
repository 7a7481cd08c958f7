package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docqa-platform/models"
)

// DocumentStore persists document metadata. All reads are scoped to an
// owner so one user can never see another's documents.
type DocumentStore interface {
	Insert(ctx context.Context, doc models.Document) error
	ListByOwner(ctx context.Context, ownerEmail string) ([]models.Document, error)
	GetByID(ctx context.Context, ownerEmail, id string) (models.Document, error)
	Delete(ctx context.Context, ownerEmail, id string) error

	// AllFilePaths returns every stored file path across all owners,
	// used by the storage sweeper to detect orphaned files.
	AllFilePaths(ctx context.Context) (map[string]bool, error)
}

type MongoDocumentStore struct {
	collection *mongo.Collection
}

func NewMongoDocumentStore(client *mongo.Client, dbName string) *MongoDocumentStore {
	return &MongoDocumentStore{
		collection: client.Database(dbName).Collection("documents"),
	}
}

func (s *MongoDocumentStore) Insert(ctx context.Context, doc models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *MongoDocumentStore) ListByOwner(ctx context.Context, ownerEmail string) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"owner_email": ownerEmail}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

func (s *MongoDocumentStore) GetByID(ctx context.Context, ownerEmail, id string) (models.Document, error) {
	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"_id": id, "owner_email": ownerEmail}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to fetch document: %w", err)
	}
	return doc, nil
}

func (s *MongoDocumentStore) AllFilePaths(ctx context.Context) (map[string]bool, error) {
	opts := options.Find().SetProjection(bson.M{"file_path": 1})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list file paths: %w", err)
	}
	defer cursor.Close(ctx)

	paths := make(map[string]bool)
	for cursor.Next(ctx) {
		var row struct {
			FilePath string `bson:"file_path"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode file path: %w", err)
		}
		if row.FilePath != "" {
			paths[row.FilePath] = true
		}
	}
	return paths, cursor.Err()
}

func (s *MongoDocumentStore) Delete(ctx context.Context, ownerEmail, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "owner_email": ownerEmail})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
