package datasets

import "errors"

// This file defines the dataset contract shared by the contact point loader and
// the data module that splits it.
//
// Layout and intended usage:
//
// ContactPointDataset
//   - Loads a single NPY array of shape [N, D_in+3] eagerly into memory.
//   - Inputs per example: the first D_in columns (6 values per ArUco marker
//     pose), float32.
//   - Outputs per example: the last 3 columns, the contact location (x, y, z).
//
// Subset
//   - A view of any Dataset through a list of global indices. Used by the data
//     module for the train/validation/test splits.
//
// Batches are collated into contiguous float32 buffers (BatchFlat) that convert
// into gomlx tensors with ToGomlxTensors.

// OutputDim is the width of the contact location target.
const OutputDim = 3

var (
	// ErrIndexOutOfRange is returned when an example index is outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrMalformedArray is returned when an array file cannot be used as a
	// [N, D_in+3] numeric matrix.
	ErrMalformedArray = errors.New("malformed array")
)

// Dataset is the read-only view the data module needs from a dataset.
// Implementations must be safe for concurrent reads.
type Dataset interface {
	Len() int
	Example(i int) (inputs []float32, outputs []float32, err error)
	Batch(indices []int) (inputs [][]float32, outputs [][]float32, err error)
}
