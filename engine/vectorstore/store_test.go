package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/pkg/fn"
)

// --- Mocks ---

type mockPoints struct {
	upsertReqs []*pb.UpsertPoints
	upsertErrs []error
	deleteErr  error
	queryFn    func(*pb.QueryPoints) (*pb.QueryResponse, error)
	scrollFn   func(*pb.ScrollPoints) (*pb.ScrollResponse, error)
	countResp  *pb.CountResponse
	countErr   error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReqs = append(m.upsertReqs, in)
	if len(m.upsertErrs) > 0 {
		err := m.upsertErrs[0]
		m.upsertErrs = m.upsertErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &pb.PointsOperationResponse{}, nil
}

func (m *mockPoints) Delete(_ context.Context, _ *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	return &pb.PointsOperationResponse{}, m.deleteErr
}

func (m *mockPoints) Query(_ context.Context, in *pb.QueryPoints, _ ...grpc.CallOption) (*pb.QueryResponse, error) {
	return m.queryFn(in)
}

func (m *mockPoints) Scroll(_ context.Context, in *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	return m.scrollFn(in)
}

func (m *mockPoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createReqs []*pb.CreateCollection
	createErr  error
	deleteErr  error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createReqs = append(m.createReqs, in)
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}

func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

func fastStore(pts *mockPoints, cols *mockCollections) *Store {
	s := NewWithClients(pts, cols)
	s.retry = fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	return s
}

func denseOnly(x float32) embed.Vector {
	v := make([]float32, 4)
	v[0] = x
	return embed.Vector{Dense: v}
}

func hybridVec(x float32) embed.Vector {
	v := denseOnly(x)
	v.Sparse = embed.SparseVector{Indices: []uint32{7}, Values: []float32{1.5}}
	return v
}

// --- Collections ---

func TestEnsureCollectionExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "legislation_sections"}},
		},
	}
	s := fastStore(&mockPoints{}, cols)
	if err := s.EnsureCollection(context.Background(), "legislation_sections", 1024); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if len(cols.createReqs) != 0 {
		t.Fatal("create should not be called")
	}
}

func TestEnsureCollectionCreatesHybridLayout(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{}}
	s := fastStore(&mockPoints{}, cols)
	if err := s.EnsureCollection(context.Background(), "legislation_sections", 1024); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if len(cols.createReqs) != 1 {
		t.Fatalf("create calls = %d", len(cols.createReqs))
	}
	req := cols.createReqs[0]
	params := req.GetVectorsConfig().GetParamsMap().GetMap()
	dense, ok := params[DenseVectorName]
	if !ok || dense.GetSize() != 1024 || dense.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("dense config = %+v", params)
	}
	sparse, ok := req.GetSparseVectorsConfig().GetMap()[SparseVectorName]
	if !ok || sparse.GetModifier() != pb.Modifier_Idf {
		t.Fatal("sparse config missing idf modifier")
	}
}

func TestEnsureCollectionListError(t *testing.T) {
	s := fastStore(&mockPoints{}, &mockCollections{listErr: errors.New("rpc fail")})
	if err := s.EnsureCollection(context.Background(), "x", 4); err == nil {
		t.Fatal("expected error")
	}
}

// --- Upsert ---

func TestUpsertEmpty(t *testing.T) {
	s := fastStore(&mockPoints{}, &mockCollections{})
	if err := s.Upsert(context.Background(), "c", nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestUpsertRejectsZeroVector(t *testing.T) {
	s := fastStore(&mockPoints{}, &mockCollections{})
	err := s.Upsert(context.Background(), "c", []Record{{ID: "p1"}})
	if err == nil {
		t.Fatal("zero vector must be rejected")
	}
}

func TestUpsertChunksAndWaitsLast(t *testing.T) {
	pts := &mockPoints{}
	s := fastStore(pts, &mockCollections{})

	records := make([]Record, 250)
	for i := range records {
		records[i] = Record{ID: "p", Vector: hybridVec(1)}
	}
	if err := s.Upsert(context.Background(), "c", records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(pts.upsertReqs) != 3 {
		t.Fatalf("requests = %d", len(pts.upsertReqs))
	}
	sizes := []int{100, 100, 50}
	for i, req := range pts.upsertReqs {
		if len(req.GetPoints()) != sizes[i] {
			t.Fatalf("chunk %d size = %d", i, len(req.GetPoints()))
		}
	}
	if pts.upsertReqs[0].GetWait() || pts.upsertReqs[1].GetWait() {
		t.Fatal("intermediate chunks must not wait")
	}
	if !pts.upsertReqs[2].GetWait() {
		t.Fatal("final chunk must wait")
	}
}

func TestUpsertNamedVectors(t *testing.T) {
	pts := &mockPoints{}
	s := fastStore(pts, &mockCollections{})
	rec := Record{ID: "p1", Vector: hybridVec(2), Payload: map[string]any{"year": 2006}}
	if err := s.Upsert(context.Background(), "c", []Record{rec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	point := pts.upsertReqs[0].GetPoints()[0]
	named := point.GetVectors().GetVectors().GetVectors()
	if _, ok := named[DenseVectorName]; !ok {
		t.Fatal("dense vector missing")
	}
	sp, ok := named[SparseVectorName]
	if !ok || len(sp.GetIndices().GetData()) != 1 {
		t.Fatal("sparse vector missing")
	}
	if point.GetPayload()["year"].GetIntegerValue() != 2006 {
		t.Fatal("payload lost")
	}
}

func TestUpsertRetriesTransientFailure(t *testing.T) {
	pts := &mockPoints{upsertErrs: []error{errors.New("unavailable")}}
	s := fastStore(pts, &mockCollections{})
	rec := Record{ID: "p1", Vector: hybridVec(1)}
	if err := s.Upsert(context.Background(), "c", []Record{rec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(pts.upsertReqs) != 2 {
		t.Fatalf("attempts = %d", len(pts.upsertReqs))
	}
}

// --- Scroll / Count ---

func TestScrollPaginates(t *testing.T) {
	page := 0
	pts := &mockPoints{
		scrollFn: func(in *pb.ScrollPoints) (*pb.ScrollResponse, error) {
			page++
			if page == 1 {
				return &pb.ScrollResponse{
					Result: []*pb.RetrievedPoint{
						{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "a"}}},
						{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "b"}}},
					},
					NextPageOffset: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "b"}},
				}, nil
			}
			return &pb.ScrollResponse{
				Result: []*pb.RetrievedPoint{
					{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "c"}}},
				},
			}, nil
		},
	}
	s := fastStore(pts, &mockCollections{})
	hits, err := s.Scroll(context.Background(), "c", nil, 0)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(hits) != 3 || hits[2].ID != "c" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestScrollHonorsLimit(t *testing.T) {
	pts := &mockPoints{
		scrollFn: func(in *pb.ScrollPoints) (*pb.ScrollResponse, error) {
			return &pb.ScrollResponse{
				Result: []*pb.RetrievedPoint{
					{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "a"}}},
					{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "b"}}},
				},
				NextPageOffset: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "b"}},
			}, nil
		},
	}
	s := fastStore(pts, &mockCollections{})
	hits, err := s.Scroll(context.Background(), "c", nil, 1)
	if err != nil || len(hits) != 1 {
		t.Fatalf("hits=%d err=%v", len(hits), err)
	}
}

func TestCount(t *testing.T) {
	pts := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 42}}}
	s := fastStore(pts, &mockCollections{})
	n, err := s.Count(context.Background(), "c", nil)
	if err != nil || n != 42 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestPayloadTextUnwrapsEnvelope(t *testing.T) {
	flat := map[string]any{"text": "plain body"}
	if got := PayloadText(flat, "text"); got != "plain body" {
		t.Fatalf("flat = %q", got)
	}
	wrapped := map[string]any{"text": map[string]any{"text": "inner body", "model": "legacy"}}
	if got := PayloadText(wrapped, "text"); got != "inner body" {
		t.Fatalf("wrapped = %q", got)
	}
	if got := PayloadText(map[string]any{}, "text"); got != "" {
		t.Fatalf("missing = %q", got)
	}
}

func TestFromValueStruct(t *testing.T) {
	v := &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{
		Fields: map[string]*pb.Value{
			"text": {Kind: &pb.Value_StringValue{StringValue: "inner"}},
		},
	}}}
	m, ok := fromValue(v).(map[string]any)
	if !ok || m["text"] != "inner" {
		t.Fatalf("fromValue = %#v", fromValue(v))
	}
}
