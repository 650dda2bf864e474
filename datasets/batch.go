package datasets

import (
	"errors"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// ErrEmptyBatch is returned when an empty batch is converted to tensors.
var ErrEmptyBatch = errors.New("empty batch")

// BatchFlat stores a batch in flat contiguous buffers
type BatchFlat struct {
	Inputs    []float32
	Outputs   []float32
	BatchSize int
	InputDim  int
	OutputDim int
}

// MakeBatchFlat flattens a batch into contiguous buffers
func MakeBatchFlat(inputs, outputs [][]float32) (*BatchFlat, error) {
	if len(inputs) != len(outputs) {
		return nil, fmt.Errorf("inputs and outputs batch sizes don't match: %d != %d", len(inputs), len(outputs))
	}
	if len(inputs) == 0 {
		return &BatchFlat{}, nil
	}

	batchSize := len(inputs)
	inputDim := len(inputs[0])
	outputDim := len(outputs[0])

	flatInputs := make([]float32, batchSize*inputDim)
	flatOutputs := make([]float32, batchSize*outputDim)

	for i := range batchSize {
		if len(inputs[i]) != inputDim {
			return nil, fmt.Errorf("inconsistent input dimensions at example %d: expected %d, got %d",
				i, inputDim, len(inputs[i]))
		}
		if len(outputs[i]) != outputDim {
			return nil, fmt.Errorf("inconsistent output dimensions at example %d: expected %d, got %d",
				i, outputDim, len(outputs[i]))
		}
		copy(flatInputs[i*inputDim:], inputs[i])
		copy(flatOutputs[i*outputDim:], outputs[i])
	}

	return &BatchFlat{
		Inputs:    flatInputs,
		Outputs:   flatOutputs,
		BatchSize: batchSize,
		InputDim:  inputDim,
		OutputDim: outputDim,
	}, nil
}

// Input returns the inputs of the i-th example of the batch.
func (b *BatchFlat) Input(i int) []float32 {
	return b.Inputs[i*b.InputDim : (i+1)*b.InputDim]
}

// Output returns the outputs of the i-th example of the batch.
func (b *BatchFlat) Output(i int) []float32 {
	return b.Outputs[i*b.OutputDim : (i+1)*b.OutputDim]
}

// ToGomlxTensors converts the batch to gomlx tensors shaped [BatchSize, InputDim]
// and [BatchSize, OutputDim]. Empty batches have no shape and return
// ErrEmptyBatch.
func (b *BatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 || b.InputDim == 0 || b.OutputDim == 0 {
		return nil, nil, fmt.Errorf("%w: shape [%d, %d] / [%d, %d]",
			ErrEmptyBatch, b.BatchSize, b.InputDim, b.BatchSize, b.OutputDim)
	}
	if len(b.Inputs) != b.BatchSize*b.InputDim || len(b.Outputs) != b.BatchSize*b.OutputDim {
		return nil, nil, fmt.Errorf("batch buffers hold %d inputs and %d outputs, want %d and %d",
			len(b.Inputs), len(b.Outputs), b.BatchSize*b.InputDim, b.BatchSize*b.OutputDim)
	}
	inT := tensors.FromFlatDataAndDimensions(b.Inputs, b.BatchSize, b.InputDim)
	outT := tensors.FromFlatDataAndDimensions(b.Outputs, b.BatchSize, b.OutputDim)
	return inT, outT, nil
}
