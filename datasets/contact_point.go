package datasets

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sbinet/npyio"
	"github.com/ulikunitz/xz"
	"k8s.io/klog/v2"
)

// DefaultDataName is the array file loaded by NewContactPointDataset when no
// name is given.
const DefaultDataName = "bc_3_trainingData.npy"

// ContactPointDataset holds a [N, D_in+3] float32 matrix loaded from an NPY
// file. Each row is one sample: D_in marker pose values followed by the 3
// coordinates of the contact location.
//
// The matrix is read once at construction and never modified afterwards, so a
// ContactPointDataset can be shared by any number of concurrent readers.
type ContactPointDataset struct {
	// path of the source file, empty for in-memory datasets
	path string

	// row-major [rows*cols] buffer
	data []float32

	rows int
	cols int
}

// NewContactPointDataset loads <project_root>/data/<name>. An empty name
// loads DefaultDataName.
func NewContactPointDataset(name string) (*ContactPointDataset, error) {
	if name == "" {
		name = DefaultDataName
	}
	path, err := DataPath(name)
	if err != nil {
		return nil, err
	}
	return LoadContactPointDataset(path)
}

// LoadContactPointDataset loads the NPY array at path. Files with a ".xz"
// suffix are decompressed while reading.
func LoadContactPointDataset(path string) (*ContactPointDataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset %s: %w", path, err)
	}

	var src io.Reader = bufio.NewReader(file)
	size := info.Size()
	if strings.EqualFold(filepath.Ext(path), ".xz") {
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: xz stream: %v", ErrMalformedArray, path, err)
		}
		// the decompressed size is only known once the stream is consumed
		raw, err := io.ReadAll(xr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: xz stream: %v", ErrMalformedArray, path, err)
		}
		src = bytes.NewReader(raw)
		size = int64(len(raw))
	}

	data, rows, cols, err := readMatrix(src, size)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}

	ds, err := newContactPointDataset(data, rows, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}
	ds.path = path

	klog.V(1).Infof("loaded %s: %d samples, %d inputs, %d outputs (%s)",
		path, ds.rows, ds.InputDim(), OutputDim, humanize.Bytes(uint64(ds.SizeBytes())))
	return ds, nil
}

// NewContactPointDatasetFromArray builds a dataset from a row-major buffer of
// rows*cols values. The buffer is copied.
func NewContactPointDatasetFromArray(data []float32, rows, cols int) (*ContactPointDataset, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative shape [%d, %d]", ErrMalformedArray, rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values do not fill shape [%d, %d]", ErrMalformedArray, len(data), rows, cols)
	}
	return newContactPointDataset(append([]float32(nil), data...), rows, cols)
}

func newContactPointDataset(data []float32, rows, cols int) (*ContactPointDataset, error) {
	if cols <= OutputDim {
		return nil, fmt.Errorf("%w: need more than %d columns, got %d", ErrMalformedArray, OutputDim, cols)
	}
	return &ContactPointDataset{
		data: data,
		rows: rows,
		cols: cols,
	}, nil
}

// itemSizes maps the NPY type codes, without byte order, to their width in
// bytes.
var itemSizes = map[string]int{
	"b1": 1,
	"i1": 1, "i2": 2, "i4": 4, "i8": 8,
	"u1": 1, "u2": 2, "u4": 4, "u8": 8,
	"f4": 4, "f8": 8,
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// readMatrix decodes a 2-D numeric NPY array of size bytes into a row-major
// float32 buffer. The shape in the header is checked against the payload
// before anything is allocated.
func readMatrix(r io.Reader, size int64) (data []float32, rows, cols int, err error) {
	defer func() {
		// npyio indexes into the header without bounds checks
		if p := recover(); p != nil {
			data, rows, cols = nil, 0, 0
			err = fmt.Errorf("%w: corrupt header: %v", ErrMalformedArray, p)
		}
	}()

	cr := &countingReader{r: r}
	npy, err := npyio.NewReader(cr)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrMalformedArray, err)
	}

	descr := npy.Header.Descr
	if len(descr.Shape) != 2 {
		return nil, 0, 0, fmt.Errorf("%w: expected a 2-D array, got shape %v", ErrMalformedArray, descr.Shape)
	}
	if descr.Fortran {
		return nil, 0, 0, fmt.Errorf("%w: Fortran-ordered arrays are not supported", ErrMalformedArray)
	}
	code := strings.TrimLeft(descr.Type, "<>|=")
	itemSize, ok := itemSizes[code]
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: unsupported dtype %q", ErrMalformedArray, descr.Type)
	}

	rows, cols = descr.Shape[0], descr.Shape[1]
	if rows < 0 || cols < 0 {
		return nil, 0, 0, fmt.Errorf("%w: negative shape %v", ErrMalformedArray, descr.Shape)
	}
	if cols > 0 && rows > math.MaxInt/cols/itemSize {
		return nil, 0, 0, fmt.Errorf("%w: shape %v is too large", ErrMalformedArray, descr.Shape)
	}
	n := rows * cols
	if need, have := int64(n)*int64(itemSize), size-cr.n; need > have {
		return nil, 0, 0, fmt.Errorf("%w: shape %v of %s needs %d bytes, payload has %d",
			ErrMalformedArray, descr.Shape, descr.Type, need, have)
	}

	switch code {
	case "f4":
		data = make([]float32, n)
		err = npy.Read(&data)
	case "f8":
		data, err = readAs[float64](npy, n)
	case "i1":
		data, err = readAs[int8](npy, n)
	case "i2":
		data, err = readAs[int16](npy, n)
	case "i4":
		data, err = readAs[int32](npy, n)
	case "i8":
		data, err = readAs[int64](npy, n)
	case "u1":
		data, err = readAs[uint8](npy, n)
	case "u2":
		data, err = readAs[uint16](npy, n)
	case "u4":
		data, err = readAs[uint32](npy, n)
	case "u8":
		data, err = readAs[uint64](npy, n)
	case "b1":
		raw := make([]bool, n)
		if err = npy.Read(&raw); err == nil {
			data = make([]float32, n)
			for i, v := range raw {
				if v {
					data[i] = 1
				}
			}
		}
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrMalformedArray, err)
	}
	return data, rows, cols, nil
}

type numeric interface {
	float64 | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

func readAs[T numeric](npy *npyio.Reader, n int) ([]float32, error) {
	raw := make([]T, n)
	if err := npy.Read(&raw); err != nil {
		return nil, err
	}
	return toFloat32(raw), nil
}

func toFloat32[T numeric](raw []T) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out
}

// Len returns the number of samples.
func (d *ContactPointDataset) Len() int {
	return d.rows
}

// InputDim returns the width of the pose input vector.
func (d *ContactPointDataset) InputDim() int {
	return d.cols - OutputDim
}

// OutputDim returns the width of the contact location vector.
func (d *ContactPointDataset) OutputDim() int {
	return OutputDim
}

// Path returns the file the dataset was loaded from.
func (d *ContactPointDataset) Path() string {
	return d.path
}

// SizeBytes returns the size of the in-memory matrix.
func (d *ContactPointDataset) SizeBytes() int {
	return len(d.data) * 4
}

// Name returns the name of the dataset
func (d *ContactPointDataset) Name() string {
	if d.path == "" {
		return "ContactPointDataset"
	}
	return "ContactPointDataset(" + filepath.Base(d.path) + ")"
}

// Example returns the inputs and outputs of row idx. The slices alias the
// dataset buffer and must not be modified.
func (d *ContactPointDataset) Example(idx int) (inputs []float32, outputs []float32, err error) {
	if idx < 0 || idx >= d.rows {
		return nil, nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrIndexOutOfRange, idx, d.rows)
	}
	start := idx * d.cols
	split := start + d.InputDim()
	end := start + d.cols
	return d.data[start:split:split], d.data[split:end:end], nil
}

// Batch reads multiple examples by their indices
func (d *ContactPointDataset) Batch(indices []int) ([][]float32, [][]float32, error) {
	return batchOf(d, indices)
}

// batchOf gathers examples one by one; the first failing index aborts.
func batchOf(ds Dataset, indices []int) ([][]float32, [][]float32, error) {
	inputs := make([][]float32, len(indices))
	outputs := make([][]float32, len(indices))
	for i, idx := range indices {
		in, out, err := ds.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		inputs[i] = in
		outputs[i] = out
	}
	return inputs, outputs, nil
}
