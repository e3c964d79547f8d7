// Package vectorindex provides exact nearest-neighbour search over dense vectors.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one search result: the position of the stored vector and its L2
// distance to the query.
type Hit struct {
	Index    int
	Distance float32
}

// FlatL2 is a brute-force index under Euclidean distance. It is not safe for
// concurrent mutation; build it fully before sharing it with readers.
type FlatL2 struct {
	dim     int
	vectors [][]float32
}

// NewFlatL2 builds an index from vectors, which must all share one dimension.
func NewFlatL2(vectors [][]float32) (*FlatL2, error) {
	idx := &FlatL2{}
	if err := idx.Add(vectors...); err != nil {
		return nil, err
	}
	return idx, nil
}

func (f *FlatL2) Dim() int { return f.dim }

func (f *FlatL2) Len() int { return len(f.vectors) }

// Add appends vectors. The first vector added fixes the dimension.
func (f *FlatL2) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("vector %d is empty: %w", i, ErrDimensionMismatch)
		}
		if f.dim == 0 {
			f.dim = len(v)
		}
		if len(v) != f.dim {
			return fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), f.dim, ErrDimensionMismatch)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		f.vectors = append(f.vectors, cp)
	}
	return nil
}

// Search returns up to k nearest vectors in ascending distance. Equal
// distances keep insertion order.
func (f *FlatL2) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(f.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d: %w", len(query), f.dim, ErrDimensionMismatch)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Index: i, Distance: squaredL2(query, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if k > len(hits) {
		k = len(hits)
	}
	hits = hits[:k]
	for i := range hits {
		hits[i].Distance = float32(math.Sqrt(float64(hits[i].Distance)))
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
