// Package vectorstore is the sole owner of all vector database
// operations: collection management, chunked upserts, scrolls, counts
// and hybrid queries with client-side fusion.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/pkg/fn"
)

// Named vectors carried by every point.
const (
	DenseVectorName  = "dense"
	SparseVectorName = "sparse"
)

// upsertChunk is how many points go into one upsert request.
const upsertChunk = 100

// pointsAPI is the subset of the points service the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Query(ctx context.Context, in *pb.QueryPoints, opts ...grpc.CallOption) (*pb.QueryResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI is the subset of the collections service the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store owns one gRPC connection shared across collections.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	retry       fn.RetryOpts
}

// New connects to the vector database at the given gRPC address.
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial %s: %w", addr, err)
	}
	s := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn))
	s.conn = conn
	return s, nil
}

// NewWithClients builds a store over existing service clients. Used by
// tests with mocks.
func NewWithClients(points pointsAPI, collections collectionsAPI) *Store {
	return &Store{
		points:      points,
		collections: collections,
		retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     15 * time.Second,
			Jitter:      true,
		},
	}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the named collection with the hybrid vector
// layout if it does not already exist: a cosine dense vector plus an
// IDF-modified sparse vector.
func (s *Store) EnsureCollection(ctx context.Context, name string, denseDims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorstore: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			return nil
		}
	}

	modifier := pb.Modifier_Idf
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_ParamsMap{
				ParamsMap: &pb.VectorParamsMap{
					Map: map[string]*pb.VectorParams{
						DenseVectorName: {
							Size:     uint64(denseDims),
							Distance: pb.Distance_Cosine,
						},
					},
				},
			},
		},
		SparseVectorsConfig: &pb.SparseVectorConfig{
			Map: map[string]*pb.SparseVectorParams{
				SparseVectorName: {Modifier: &modifier},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection drops a collection and all its points.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("vectorstore: delete collection %s: %w", name, err)
	}
	return nil
}

// Record is one point ready for upsert.
type Record struct {
	ID      string
	Vector  embed.Vector
	Payload map[string]any
}

// Upsert writes records in fixed-size chunks. Only the final chunk waits
// for indexing, so a large batch streams without blocking on each write.
// Zero vectors are rejected; they would poison similarity scores.
func (s *Store) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.Vector.IsZero() {
			return fmt.Errorf("vectorstore: zero vector for point %s", r.ID)
		}
	}

	for start := 0; start < len(records); start += upsertChunk {
		end := min(start+upsertChunk, len(records))
		chunk := records[start:end]

		points := make([]*pb.PointStruct, len(chunk))
		for i, r := range chunk {
			points[i] = &pb.PointStruct{
				Id: &pb.PointId{
					PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
				},
				Vectors: namedVectors(r.Vector),
				Payload: toPayload(r.Payload),
			}
		}

		wait := end == len(records)
		result := fn.Retry(ctx, s.retry, func(ctx context.Context) fn.Result[*pb.PointsOperationResponse] {
			return fn.FromPair(s.points.Upsert(ctx, &pb.UpsertPoints{
				CollectionName: collection,
				Wait:           &wait,
				Points:         points,
			}))
		})
		if _, err := result.Unwrap(); err != nil {
			return fmt.Errorf("vectorstore: upsert %d points into %s: %w", len(chunk), collection, err)
		}
	}
	return nil
}

// DeleteByFilter removes all points matching the filter.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filter *pb.Filter) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete from %s: %w", collection, err)
	}
	return nil
}

// Count returns the exact number of points matching the filter.
func (s *Store) Count(ctx context.Context, collection string, filter *pb.Filter) (uint64, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("vectorstore: count %s: %w", collection, err)
	}
	return resp.GetResult().GetCount(), nil
}

// Scroll pages through all points matching the filter, up to limit
// records (0 means unbounded). Payloads are returned; vectors are not.
func (s *Store) Scroll(ctx context.Context, collection string, filter *pb.Filter, limit int) ([]Hit, error) {
	const page = uint32(256)

	var out []Hit
	var offset *pb.PointId
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: collection,
			Filter:         filter,
			Limit:          ptr(page),
			Offset:         offset,
			WithPayload:    withPayload(),
		})
		if err != nil {
			return nil, fmt.Errorf("vectorstore: scroll %s: %w", collection, err)
		}
		for _, p := range resp.GetResult() {
			out = append(out, Hit{
				ID:      p.GetId().GetUuid(),
				Payload: fromPayload(p.GetPayload()),
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			return out, nil
		}
	}
}

func namedVectors(v embed.Vector) *pb.Vectors {
	vectors := map[string]*pb.Vector{
		DenseVectorName: {Data: v.Dense},
	}
	if !v.Sparse.IsZero() {
		vectors[SparseVectorName] = &pb.Vector{
			Data:    v.Sparse.Values,
			Indices: &pb.SparseIndices{Data: v.Sparse.Indices},
		}
	}
	return &pb.Vectors{
		VectorsOptions: &pb.Vectors_Vectors{
			Vectors: &pb.NamedVectors{Vectors: vectors},
		},
	}
}

func withPayload() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{
		SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
	}
}

func ptr[T any](v T) *T { return &v }
