package nnet

import (
	"fmt"
	"math/rand"
	"os"
	"path"

	"github.com/Jopyth/LightNAS/num"
	"github.com/pkg/errors"
)

// DataDir is the directory where configs, weights and datasets are stored.
var DataDir = defaultDataDir()

// DataTypes lists the dataset partitions in reporting order.
var DataTypes = []string{"train", "test", "valid"}

func defaultDataDir() string {
	if dir := os.Getenv("LIGHTNAS_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lightnas"
	}
	return path.Join(home, ".lightnas")
}

// Data interface type represents a stored set of labelled samples.
type Data interface {
	Len() int
	Classes() []string
	Shape() []int
	Input(ix int, buf []float32)
	Label(ix int) int32
}

type loaderFunc func() (map[string]Data, error)

var registered = map[string]loaderFunc{}

// Register a named dataset loader, called from init functions.
func Register(name string, fn loaderFunc) {
	registered[name] = fn
}

// LoadData loads a registered dataset by name.
func LoadData(name string) (map[string]Data, error) {
	fn, ok := registered[name]
	if !ok {
		return nil, errors.Errorf("dataset %s is not registered", name)
	}
	return fn()
}

// Dataset type encapsulates a set of samples which are read in batches. The
// sample count is rounded down to a whole number of batches.
type Dataset struct {
	Data
	BatchSize int
	Samples   int
	Batches   int
	rng       *rand.Rand
	indexes   []int
	xBuf      []float32
	x         *num.Array
	y         []int32
	yOneHot   *num.Array
}

// NewDataset creates a dataset for batch processing. If maxSamples is non-zero
// then the number of samples used is capped at this value.
func NewDataset(data Data, batchSize, maxSamples int, rng *rand.Rand) *Dataset {
	d := &Dataset{Data: data, BatchSize: batchSize, rng: rng}
	d.Samples = data.Len()
	if maxSamples > 0 && maxSamples < d.Samples {
		d.Samples = maxSamples
	}
	d.Batches = d.Samples / batchSize
	if d.Batches < 1 {
		panic(fmt.Sprintf("dataset has %d samples, batch size %d", d.Samples, batchSize))
	}
	d.indexes = make([]int, d.Samples)
	for i := range d.indexes {
		d.indexes[i] = i
	}
	sampleSize := num.Prod(data.Shape())
	d.xBuf = make([]float32, sampleSize)
	d.x = num.NewArray(append([]int{batchSize}, data.Shape()...)...)
	d.y = make([]int32, batchSize)
	d.yOneHot = num.NewArray(batchSize, d.Classes())
	return d
}

// Classes returns the number of distinct labels.
func (d *Dataset) Classes() int {
	return len(d.Data.Classes())
}

// Shuffle the order in which samples are returned.
func (d *Dataset) Shuffle() {
	d.rng.Shuffle(len(d.indexes), func(i, j int) {
		d.indexes[i], d.indexes[j] = d.indexes[j], d.indexes[i]
	})
}

// GetBatch returns the input, labels and one hot encoded labels for the given
// batch. The returned arrays are reused between calls.
func (d *Dataset) GetBatch(batch int) (x *num.Array, y []int32, yOneHot *num.Array) {
	sampleSize := len(d.xBuf)
	xdata := d.x.Data()
	for i := 0; i < d.BatchSize; i++ {
		ix := d.indexes[batch*d.BatchSize+i]
		d.Input(ix, xdata[i*sampleSize:(i+1)*sampleSize])
		d.y[i] = d.Label(ix)
	}
	num.Onehot(d.y, d.yOneHot, d.Classes())
	return d.x, d.y, d.yOneHot
}

// labelledData is an in memory dataset of float32 samples.
type labelledData struct {
	shape   []int
	classes []string
	input   []float32
	labels  []int32
}

// NewData creates an in memory dataset. The input slice holds len(labels)
// samples each of num.Prod(shape) values.
func NewData(shape []int, classes []string, input []float32, labels []int32) Data {
	return &labelledData{shape: shape, classes: classes, input: input, labels: labels}
}

// NewRandomData creates a synthetic dataset of uniform random inputs and
// labels, used to exercise the search loop without real data.
func NewRandomData(samples int, shape []int, classes int, rng *rand.Rand) Data {
	size := num.Prod(shape)
	input := make([]float32, samples*size)
	for i := range input {
		input[i] = rng.Float32()
	}
	labels := make([]int32, samples)
	names := make([]string, classes)
	for i := range names {
		names[i] = fmt.Sprint(i)
	}
	for i := range labels {
		labels[i] = int32(rng.Intn(classes))
	}
	return NewData(shape, names, input, labels)
}

func (d *labelledData) Len() int { return len(d.labels) }

func (d *labelledData) Classes() []string { return d.classes }

func (d *labelledData) Shape() []int { return d.shape }

func (d *labelledData) Input(ix int, buf []float32) {
	size := num.Prod(d.shape)
	copy(buf, d.input[ix*size:(ix+1)*size])
}

func (d *labelledData) Label(ix int) int32 { return d.labels[ix] }
