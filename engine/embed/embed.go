// Package embed turns provision text into hybrid vectors: a dense
// semantic vector from a remote deployment plus a sparse BM25 vector
// computed locally.
package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/openlex/lexuk/pkg/fn"
)

// Vector pairs the dense and sparse representations of one text.
type Vector struct {
	Dense  []float32
	Sparse SparseVector
}

// IsZero reports whether the text was empty and the vector is a
// placeholder. Zero vectors must never reach the store.
func (v Vector) IsZero() bool { return len(v.Dense) == 0 && v.Sparse.IsZero() }

// Options configures the embedding service.
type Options struct {
	Dense      DenseOpts
	Sparse     SparseOpts
	MaxWorkers int
	// RequestSize is how many texts go into one remote call.
	RequestSize int
}

// Service is the hybrid embedder used by the ingest pipeline and the
// query layer.
type Service struct {
	dense      *DenseClient
	sparse     *SparseEncoder
	maxWorkers int
	reqSize    int
}

func New(opts Options) *Service {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if opts.RequestSize <= 0 {
		opts.RequestSize = 16
	}
	return &Service{
		dense:      NewDenseClient(opts.Dense),
		sparse:     NewSparseEncoder(opts.Sparse),
		maxWorkers: opts.MaxWorkers,
		reqSize:    opts.RequestSize,
	}
}

// EmbedOne embeds a single text. Empty input returns the zero Vector
// without touching the wire.
func (s *Service) EmbedOne(ctx context.Context, text string) (Vector, error) {
	vs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Vector{}, err
	}
	return vs[0], nil
}

// EmbedBatch embeds texts in input order. Empty texts map to zero
// vectors; non-empty texts are grouped into remote requests executed
// with bounded parallelism.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))

	var live []string
	var pos []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		live = append(live, t)
		pos = append(pos, i)
	}
	if len(live) == 0 {
		return out, nil
	}

	var groups [][]string
	for start := 0; start < len(live); start += s.reqSize {
		end := min(start+s.reqSize, len(live))
		groups = append(groups, live[start:end])
	}

	results := fn.ParMapResult(groups, s.maxWorkers, func(group []string) fn.Result[[][]float32] {
		return fn.FromPair(s.dense.Embed(ctx, group))
	})

	k := 0
	for gi, r := range results {
		vecs, err := r.Unwrap()
		if err != nil {
			return nil, fmt.Errorf("embed group %d: %w", gi, err)
		}
		for _, dense := range vecs {
			i := pos[k]
			out[i] = Vector{Dense: dense, Sparse: s.sparse.Encode(texts[i])}
			k++
		}
	}
	return out, nil
}

// EncodeQuery embeds a search query. The same dense deployment and
// sparse weighting are used for queries and documents.
func (s *Service) EncodeQuery(ctx context.Context, query string) (Vector, error) {
	v, err := s.EmbedOne(ctx, query)
	if err != nil {
		return Vector{}, err
	}
	if v.IsZero() {
		return Vector{}, fmt.Errorf("empty query")
	}
	return v, nil
}
