package datasets

import "fmt"

// Subset exposes a fixed list of global indices of a base Dataset as a
// Dataset of its own. Index i of the subset is index Indices()[i] of the base.
type Subset struct {
	base    Dataset
	indices []int // global indices into base
}

// NewSubset creates a view of base restricted to indices. Every index must be
// valid for base; the slice is copied.
func NewSubset(base Dataset, indices []int) (*Subset, error) {
	if base == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	n := base.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: subset index %d for dataset of length %d", ErrIndexOutOfRange, idx, n)
		}
	}
	return &Subset{
		base:    base,
		indices: append([]int(nil), indices...),
	}, nil
}

// Len returns the number of indices in the subset.
func (s *Subset) Len() int { return len(s.indices) }

// Indices returns a copy of the global indices covered by the subset, in
// subset order.
func (s *Subset) Indices() []int {
	return append([]int(nil), s.indices...)
}

// Example returns the example at subset position idx.
func (s *Subset) Example(idx int) ([]float32, []float32, error) {
	if idx < 0 || idx >= len(s.indices) {
		return nil, nil, fmt.Errorf("%w: index %d out of range for subset length %d", ErrIndexOutOfRange, idx, len(s.indices))
	}
	return s.base.Example(s.indices[idx])
}

// Batch reads the examples at the given subset positions.
func (s *Subset) Batch(indices []int) ([][]float32, [][]float32, error) {
	if len(indices) == 0 {
		return [][]float32{}, [][]float32{}, nil
	}
	globals := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(s.indices) {
			return nil, nil, fmt.Errorf("%w: index %d out of range for subset length %d", ErrIndexOutOfRange, idx, len(s.indices))
		}
		globals[i] = s.indices[idx]
	}
	return s.base.Batch(globals)
}
