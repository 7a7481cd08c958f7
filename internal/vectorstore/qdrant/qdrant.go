// Package qdrant implements the vector collection store on a Qdrant
// server over gRPC. Collections use cosine distance; chunk text and
// provenance travel in the point payload.
package qdrant

import (
	"context"
	"fmt"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"docqa-platform/internal/vectorstore"
	"docqa-platform/models"
)

type Store struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
}

// NewStore connects to a Qdrant gRPC endpoint (host:port).
func NewStore(addr string) (*Store, error) {
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &Store{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
	}, nil
}

func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int) error {
	list, err := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() == name {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		// A concurrent first upload may have won the create race; the
		// operation is idempotent by name, so a second look settles it.
		list, listErr := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
		if listErr == nil {
			for _, col := range list.GetCollections() {
				if col.GetName() == name {
					return nil
				}
			}
		}
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, ids []string, texts []string, vectors [][]float32, metas []models.ChunkMetadata) error {
	if len(ids) != len(texts) || len(ids) != len(vectors) || len(ids) != len(metas) {
		return vectorstore.ErrLengthMismatch
	}

	points := make([]*qdrantclient.PointStruct, 0, len(ids))
	for i := range ids {
		points = append(points, &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: ids[i]},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: vectors[i]},
				},
			},
			Payload: map[string]*qdrantclient.Value{
				"text":         {Kind: &qdrantclient.Value_StringValue{StringValue: texts[i]}},
				"source":       {Kind: &qdrantclient.Value_StringValue{StringValue: metas[i].Source}},
				"document_id":  {Kind: &qdrantclient.Value_StringValue{StringValue: metas[i].DocumentID}},
				"chunk_index":  {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(metas[i].ChunkIndex)}},
				"page":         {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(metas[i].Page)}},
				"total_chunks": {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(metas[i].TotalChunks)}},
				"user_email":   {Kind: &qdrantclient.Value_StringValue{StringValue: metas[i].OwnerEmail}},
			},
		})
	}

	wait := true
	_, err := s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, vector []float32, topK int, filter *vectorstore.Filter) ([]vectorstore.Scored, error) {
	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         buildFilter(filter),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]vectorstore.Scored, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		payload := point.GetPayload()
		results = append(results, vectorstore.Scored{
			Text:  payload["text"].GetStringValue(),
			Score: point.GetScore(),
			Meta: models.ChunkMetadata{
				Source:      payload["source"].GetStringValue(),
				DocumentID:  payload["document_id"].GetStringValue(),
				ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
				Page:        int(payload["page"].GetIntegerValue()),
				TotalChunks: int(payload["total_chunks"].GetIntegerValue()),
				OwnerEmail:  payload["user_email"].GetStringValue(),
			},
		})
	}
	return results, nil
}

func (s *Store) Delete(ctx context.Context, collection string, filter *vectorstore.Filter) error {
	wait := true
	_, err := s.points.Delete(ctx, &qdrantclient.DeletePoints{
		CollectionName: collection,
		Points: &qdrantclient.PointsSelector{
			PointsSelectorOneOf: &qdrantclient.PointsSelector_Filter{
				Filter: buildFilter(filter),
			},
		},
		Wait: &wait,
	})
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func buildFilter(filter *vectorstore.Filter) *qdrantclient.Filter {
	if filter == nil {
		return nil
	}

	var must []*qdrantclient.Condition
	if filter.DocumentID != "" {
		must = append(must, keywordCondition("document_id", filter.DocumentID))
	}

	var should []*qdrantclient.Condition
	for _, src := range filter.Sources {
		should = append(should, keywordCondition("source", src))
	}

	if must == nil && should == nil {
		return nil
	}
	return &qdrantclient.Filter{Must: must, Should: should}
}

func keywordCondition(key, value string) *qdrantclient.Condition {
	return &qdrantclient.Condition{
		ConditionOneOf: &qdrantclient.Condition_Field{
			Field: &qdrantclient.FieldCondition{
				Key: key,
				Match: &qdrantclient.Match{
					MatchValue: &qdrantclient.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
