package embed

import (
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// SparseVector is a lexical vector in index/value form, ready for upsert
// into a sparse named vector.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// IsZero reports whether the vector carries no terms.
func (v SparseVector) IsZero() bool { return len(v.Indices) == 0 }

// SparseOpts are BM25 weighting parameters. AvgDocLen is fixed per
// collection so term weights stay comparable across ingest runs.
type SparseOpts struct {
	K1        float64
	B         float64
	AvgDocLen float64
}

// DefaultSparse matches the weighting used at collection creation time.
var DefaultSparse = SparseOpts{K1: 1.5, B: 0.75, AvgDocLen: 256}

// SparseEncoder produces BM25 term-frequency vectors locally, with term
// identities derived from a stable 64-bit hash truncated to 32 bits.
type SparseEncoder struct {
	opts SparseOpts
}

func NewSparseEncoder(opts SparseOpts) *SparseEncoder {
	if opts.K1 == 0 {
		opts.K1 = DefaultSparse.K1
	}
	if opts.B == 0 {
		opts.B = DefaultSparse.B
	}
	if opts.AvgDocLen == 0 {
		opts.AvgDocLen = DefaultSparse.AvgDocLen
	}
	return &SparseEncoder{opts: opts}
}

// Encode tokenizes text and returns one entry per distinct term. Empty or
// whitespace-only text yields the zero vector.
func (e *SparseEncoder) Encode(text string) SparseVector {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return SparseVector{}
	}

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}

	docLen := float64(len(tokens))
	norm := e.opts.K1 * (1 - e.opts.B + e.opts.B*docLen/e.opts.AvgDocLen)

	out := SparseVector{
		Indices: make([]uint32, 0, len(freq)),
		Values:  make([]float32, 0, len(freq)),
	}
	seen := make(map[uint32]bool, len(freq))
	for term, n := range freq {
		idx := TermIndex(term)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		tf := float64(n)
		w := tf * (e.opts.K1 + 1) / (tf + norm)
		out.Indices = append(out.Indices, idx)
		out.Values = append(out.Values, float32(w))
	}
	return out
}

// TermIndex maps a term to its sparse dimension.
func TermIndex(term string) uint32 {
	h := xxhash.Sum64String(term)
	return uint32(h ^ (h >> 32))
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// Norm returns the L2 norm of the values, used in tests and diagnostics.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
