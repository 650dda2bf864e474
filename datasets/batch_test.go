package datasets

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMakeBatchFlat_AndToGomlxTensors(t *testing.T) {
	ds, err := NewContactPointDatasetFromArray(sampleMatrix(6, 8), 6, 8)
	if err != nil {
		t.Fatalf("NewContactPointDatasetFromArray failed: %v", err)
	}

	indices := []int{5, 0, 3}
	inputs, outputs, err := ds.Batch(indices)
	if err != nil {
		t.Fatalf("Batch error: %v", err)
	}
	flat, err := MakeBatchFlat(inputs, outputs)
	if err != nil {
		t.Fatalf("MakeBatchFlat error: %v", err)
	}
	if flat.BatchSize != 3 || flat.InputDim != 5 || flat.OutputDim != 3 {
		t.Fatalf("unexpected BatchFlat dims: %+v", flat)
	}
	for pos, idx := range indices {
		if got := flat.Input(pos)[0]; got != float32(idx*100) {
			t.Fatalf("input of batch row %d: got %v want %v", pos, got, idx*100)
		}
		if got := flat.Output(pos)[2]; got != float32(idx*100+7) {
			t.Fatalf("output of batch row %d: got %v want %v", pos, got, idx*100+7)
		}
	}

	inT, outT, err := flat.ToGomlxTensors()
	if err != nil {
		t.Fatalf("ToGomlxTensors error: %v", err)
	}
	if got := inT.Shape().Dimensions; !reflect.DeepEqual(got, []int{3, 5}) {
		t.Fatalf("unexpected input tensor dims %v", got)
	}
	if got := outT.Shape().Dimensions; !reflect.DeepEqual(got, []int{3, 3}) {
		t.Fatalf("unexpected output tensor dims %v", got)
	}
	outs, ok := outT.Value().([][]float32)
	if !ok {
		t.Fatalf("unexpected output tensor value type %T", outT.Value())
	}
	if !reflect.DeepEqual(outs[1], []float32{5, 6, 7}) {
		t.Fatalf("unexpected output row 1: %v", outs[1])
	}
}

func TestMakeBatchFlat_Mismatch(t *testing.T) {
	if _, err := MakeBatchFlat([][]float32{{1, 2}}, nil); err == nil {
		t.Fatalf("expected error for mismatched batch sizes")
	}
	if _, err := MakeBatchFlat([][]float32{{1, 2}, {3}}, [][]float32{{1, 2, 3}, {4, 5, 6}}); err == nil {
		t.Fatalf("expected error for ragged inputs")
	}
	empty, err := MakeBatchFlat(nil, nil)
	if err != nil || empty.BatchSize != 0 {
		t.Fatalf("expected empty batch, got %+v, %v", empty, err)
	}
}

func TestBatchFlat_EmptyToGomlxTensors(t *testing.T) {
	empty, err := MakeBatchFlat(nil, nil)
	if err != nil {
		t.Fatalf("MakeBatchFlat error: %v", err)
	}
	inT, outT, err := empty.ToGomlxTensors()
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if inT != nil || outT != nil {
		t.Fatalf("expected no tensors for an empty batch")
	}

	short := &BatchFlat{Inputs: []float32{1, 2}, Outputs: []float32{1, 2, 3}, BatchSize: 2, InputDim: 2, OutputDim: 3}
	if _, _, err := short.ToGomlxTensors(); err == nil {
		t.Fatalf("expected error for buffers shorter than the batch shape")
	}
}

func TestSubset(t *testing.T) {
	ds, err := NewContactPointDatasetFromArray(sampleMatrix(10, 4), 10, 4)
	if err != nil {
		t.Fatalf("NewContactPointDatasetFromArray failed: %v", err)
	}

	global := []int{9, 2, 4}
	sub, err := NewSubset(ds, global)
	if err != nil {
		t.Fatalf("NewSubset failed: %v", err)
	}
	global[0] = 0 // the subset keeps its own copy
	if sub.Len() != 3 {
		t.Fatalf("expected len 3, got %d", sub.Len())
	}
	if got := sub.Indices(); !reflect.DeepEqual(got, []int{9, 2, 4}) {
		t.Fatalf("unexpected indices %v", got)
	}

	in, out, err := sub.Example(0)
	if err != nil {
		t.Fatalf("Example(0) error: %v", err)
	}
	if in[0] != 900 || out[0] != 901 {
		t.Fatalf("unexpected example: in=%v out=%v", in, out)
	}

	inputs, _, err := sub.Batch([]int{2, 1})
	if err != nil {
		t.Fatalf("Batch error: %v", err)
	}
	if inputs[0][0] != 400 || inputs[1][0] != 200 {
		t.Fatalf("unexpected batch inputs %v", inputs)
	}

	if _, _, err := sub.Example(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := NewSubset(ds, []int{10}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for invalid subset index, got %v", err)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "project")
	deep := filepath.Join(root, "src", "data", "components")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ProjectRootIndicator), nil, 0644); err != nil {
		t.Fatalf("failed to write indicator: %v", err)
	}

	got, err := FindProjectRoot(deep, ProjectRootIndicator)
	if err != nil {
		t.Fatalf("FindProjectRoot failed: %v", err)
	}
	if got != root {
		t.Fatalf("expected root %s, got %s", root, got)
	}

	_, err = FindProjectRoot(deep, ".contact-point-no-such-indicator")
	if !errors.Is(err, ErrProjectRootNotFound) {
		t.Fatalf("expected ErrProjectRootNotFound, got %v", err)
	}
}

func TestDataPath_FromEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv(ProjectRootEnv, root)

	got, err := DataPath("bc.npy")
	if err != nil {
		t.Fatalf("DataPath failed: %v", err)
	}
	if want := filepath.Join(root, "data", "bc.npy"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
