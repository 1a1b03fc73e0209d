package hdf5

import (
	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// DatasetOption adjusts how CreateDataset stores a dataset.
type DatasetOption func(*datasetConfig)

type namedValue struct {
	name  string
	value dtype.Value
}

type datasetConfig struct {
	chunks   []uint64
	maxDims  []uint64
	deflate  int
	shuffle  bool
	checksum bool
	attrs    []namedValue
}

// WithChunks stores the dataset in chunks of the given shape. Filters
// require it.
func WithChunks(dims ...uint64) DatasetOption {
	return func(c *datasetConfig) { c.chunks = dims }
}

// WithMaxDims records maximum dimensions; 0 marks a dimension unlimited.
func WithMaxDims(dims ...uint64) DatasetOption {
	return func(c *datasetConfig) { c.maxDims = dims }
}

// WithCompression deflates each chunk at level 1 to 9. Other levels leave
// the data uncompressed.
func WithCompression(level int) DatasetOption {
	return func(c *datasetConfig) {
		if level >= 1 && level <= 9 {
			c.deflate = level
		}
	}
}

func WithShuffle() DatasetOption {
	return func(c *datasetConfig) { c.shuffle = true }
}

// WithFletcher32 ends each chunk with a Fletcher-32 checksum.
func WithFletcher32() DatasetOption {
	return func(c *datasetConfig) { c.checksum = true }
}

// WithAttribute attaches an attribute typed after value. An Array value
// gets a dataspace of the array's shape.
func WithAttribute(name string, value dtype.Value) DatasetOption {
	return func(c *datasetConfig) { c.attrs = append(c.attrs, namedValue{name, value}) }
}

// pipeline lists the enabled filters in the order they are applied on
// write, or returns nil when there are none.
func (c *datasetConfig) pipeline(elemSize uint32) *message.FilterPipeline {
	var fs []message.FilterInfo
	if c.shuffle {
		fs = append(fs, message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{elemSize}})
	}
	if c.deflate > 0 {
		fs = append(fs, message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{uint32(c.deflate)}})
	}
	if c.checksum {
		fs = append(fs, message.FilterInfo{ID: message.FilterFletcher32})
	}
	if fs == nil {
		return nil
	}
	return message.NewFilterPipeline(fs...)
}
