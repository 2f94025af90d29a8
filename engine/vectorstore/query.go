package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/openlex/lexuk/engine/embed"
)

// Hit is one result row. Score is the fused score for hybrid queries
// and zero for scrolls.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// HybridRequest describes one fused dense+sparse query.
type HybridRequest struct {
	Collection string
	Vector     embed.Vector
	Filter     *pb.Filter
	Limit      int
	Offset     int
}

// Candidate pool sizes. The dense side casts a wide net; the sparse
// side contributes exact-term hits.
func densePool(want int) uint64 {
	n := 3 * want
	if n < 30 {
		n = 30
	}
	return uint64(n)
}

func sparsePool(want int) uint64 {
	n := int(math.Ceil(0.8 * float64(want)))
	if n < 8 {
		n = 8
	}
	return uint64(n)
}

// HybridQuery runs the dense and sparse branches and fuses them with
// distribution-based score fusion. Fusion happens client-side so the
// two branches can be tuned and inspected independently.
func (s *Store) HybridQuery(ctx context.Context, req HybridRequest) ([]Hit, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}
	want := req.Limit + req.Offset

	denseHits, err := s.queryBranch(ctx, req, DenseVectorName, denseVectorInput(req.Vector.Dense), densePool(want))
	if err != nil {
		return nil, err
	}

	var sparseHits []Hit
	if !req.Vector.Sparse.IsZero() {
		sparseHits, err = s.queryBranch(ctx, req, SparseVectorName, sparseVectorInput(req.Vector.Sparse), sparsePool(want))
		if err != nil {
			return nil, err
		}
	}

	fused := fuseDBSF(denseHits, sparseHits)
	if req.Offset >= len(fused) {
		return nil, nil
	}
	fused = fused[req.Offset:]
	if len(fused) > req.Limit {
		fused = fused[:req.Limit]
	}
	return fused, nil
}

func (s *Store) queryBranch(ctx context.Context, req HybridRequest, using string, input *pb.VectorInput, limit uint64) ([]Hit, error) {
	resp, err := s.points.Query(ctx, &pb.QueryPoints{
		CollectionName: req.Collection,
		Query: &pb.Query{
			Variant: &pb.Query_Nearest{Nearest: input},
		},
		Using:       &using,
		Filter:      req.Filter,
		Limit:       &limit,
		WithPayload: withPayload(),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %s query on %s: %w", using, req.Collection, err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, p := range resp.GetResult() {
		hits[i] = Hit{
			ID:      p.GetId().GetUuid(),
			Score:   float64(p.GetScore()),
			Payload: fromPayload(p.GetPayload()),
		}
	}
	return hits, nil
}

func denseVectorInput(data []float32) *pb.VectorInput {
	return &pb.VectorInput{
		Variant: &pb.VectorInput_Dense{Dense: &pb.DenseVector{Data: data}},
	}
}

func sparseVectorInput(v embed.SparseVector) *pb.VectorInput {
	return &pb.VectorInput{
		Variant: &pb.VectorInput_Sparse{
			Sparse: &pb.SparseVector{Values: v.Values, Indices: v.Indices},
		},
	}
}

// fuseDBSF implements distribution-based score fusion. Each branch's
// scores are rescaled onto [0,1] using a three-sigma band around the
// branch mean, then summed per point. Payloads come from whichever
// branch saw the point first.
func fuseDBSF(branches ...[]Hit) []Hit {
	type acc struct {
		score   float64
		payload map[string]any
	}
	byID := make(map[string]*acc)
	var order []string

	for _, hits := range branches {
		if len(hits) == 0 {
			continue
		}
		normalized := normalizeBand(hits)
		for i, h := range hits {
			a, ok := byID[h.ID]
			if !ok {
				a = &acc{payload: h.Payload}
				byID[h.ID] = a
				order = append(order, h.ID)
			}
			a.score += normalized[i]
		}
	}

	out := make([]Hit, 0, len(order))
	for _, id := range order {
		a := byID[id]
		out = append(out, Hit{ID: id, Score: a.score, Payload: a.payload})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// normalizeBand maps branch scores onto [0,1] across mean±3σ. A branch
// with uniform scores contributes 0.5 per hit.
func normalizeBand(hits []Hit) []float64 {
	var sum float64
	for _, h := range hits {
		sum += h.Score
	}
	mean := sum / float64(len(hits))

	var varsum float64
	for _, h := range hits {
		d := h.Score - mean
		varsum += d * d
	}
	sigma := math.Sqrt(varsum / float64(len(hits)))

	out := make([]float64, len(hits))
	if sigma == 0 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	lo := mean - 3*sigma
	span := 6 * sigma
	for i, h := range hits {
		n := (h.Score - lo) / span
		if n < 0 {
			n = 0
		}
		if n > 1 {
			n = 1
		}
		out[i] = n
	}
	return out
}
