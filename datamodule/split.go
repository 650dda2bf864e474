package datamodule

import (
	"fmt"
	"math/rand"

	"github.com/Noofbiz/contactPoint/datasets"
)

// SplitLengths returns the train, validation and test sizes for n samples:
// floor(trainRatio*n), floor(valRatio*n) and the remainder.
func SplitLengths(n int, trainRatio, valRatio float64) (train, val, test int) {
	train = int(trainRatio * float64(n))
	val = int(valRatio * float64(n))
	test = n - train - val
	return
}

// RandomSplit partitions ds into consecutive runs of a seeded permutation of
// its indices, one run per length. The lengths must add up to ds.Len().
// The same seed and lengths always produce the same subsets.
func RandomSplit(ds datasets.Dataset, lengths []int, seed int64) ([]*datasets.Subset, error) {
	n := ds.Len()
	total := 0
	for _, l := range lengths {
		if l < 0 {
			return nil, fmt.Errorf("%w: negative split length %d", ErrInvalidConfig, l)
		}
		total += l
	}
	if total != n {
		return nil, fmt.Errorf("%w: split lengths %v add up to %d, dataset has %d samples", ErrInvalidConfig, lengths, total, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	subsets := make([]*datasets.Subset, len(lengths))
	offset := 0
	for i, l := range lengths {
		sub, err := datasets.NewSubset(ds, perm[offset:offset+l])
		if err != nil {
			return nil, err
		}
		subsets[i] = sub
		offset += l
	}
	return subsets, nil
}
