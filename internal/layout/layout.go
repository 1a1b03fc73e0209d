// Package layout reads the raw bytes of a dataset. Storage is either held in
// the object header (compact), a single block at a file address
// (contiguous), or split into chunks found through a chunk index.
//
// Every layout answers whole reads and hyperslab reads. A hyperslab is a
// start coordinate plus a count per dimension, and the bytes come back in
// row-major order.
package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Layout reads dataset bytes from one storage class.
type Layout interface {
	Read() ([]byte, error)
	ReadSlice(start, count []uint64) ([]byte, error)
	Class() message.LayoutClass
}

var errScalarSlice = errors.New("scalar dataset takes an empty selection")

// New returns the reader for the storage described by lay.
func New(
	lay *message.DataLayout,
	space *message.Dataspace,
	dt *message.Datatype,
	fp *message.FilterPipeline,
	r *binary.Reader,
) (Layout, error) {
	if lay == nil {
		return nil, errors.New("dataset has no layout message")
	}
	switch lay.Class {
	case message.LayoutCompact:
		return NewCompact(lay, space, dt), nil
	case message.LayoutContiguous:
		return NewContiguous(lay, space, dt, r), nil
	case message.LayoutChunked:
		return NewChunked(lay, space, dt, fp, r)
	}
	return nil, fmt.Errorf("layout class %s not supported", lay.Class)
}

// shape is the extent and element width of a dataset.
type shape struct {
	dims []uint64
	elem uint64
}

func shapeOf(space *message.Dataspace, dt *message.Datatype) shape {
	var s shape
	if space != nil {
		s.dims = space.Dimensions
	}
	if dt != nil {
		s.elem = uint64(dt.Size)
	}
	return s
}

// dataSize is the byte count of the whole dataset. A missing dataspace or
// datatype gives zero.
func dataSize(space *message.Dataspace, dt *message.Datatype) uint64 {
	if space == nil || dt == nil {
		return 0
	}
	return space.NumElements() * uint64(dt.Size)
}

// check validates a selection. It reports whole=true when the selection is
// the empty selection of a scalar.
func (s shape) check(start, count []uint64) (whole bool, err error) {
	if len(s.dims) == 0 {
		if len(start) != 0 || len(count) != 0 {
			return false, errScalarSlice
		}
		return true, nil
	}
	return false, inBounds(s.dims, start, count)
}

func inBounds(dims, start, count []uint64) error {
	if len(start) != len(dims) || len(count) != len(dims) {
		return fmt.Errorf("selection rank %d/%d, dataset rank %d", len(start), len(count), len(dims))
	}
	for d, n := range dims {
		if start[d]+count[d] > n {
			return fmt.Errorf("selection out of bounds in dimension %d: %d+%d > %d", d, start[d], count[d], n)
		}
	}
	return nil
}

// rowSpan returns the byte range of a selection made only of whole rows of
// the leading dimension.
func (s shape) rowSpan(start, count []uint64) (off, n uint64, ok bool) {
	for d := 1; d < len(s.dims); d++ {
		if start[d] != 0 || count[d] != s.dims[d] {
			return 0, 0, false
		}
	}
	row := strides(s.dims, s.elem)[0]
	return start[0] * row, count[0] * row, true
}

// extract copies a selection out of the full row-major dataset bytes.
func (s shape) extract(data []byte, start, count []uint64) ([]byte, error) {
	if need := volume(s.dims) * s.elem; uint64(len(data)) < need {
		return nil, fmt.Errorf("dataset holds %d bytes, want %d", len(data), need)
	}
	out := make([]byte, volume(count)*s.elem)
	blit(out, data, region{
		count:      count,
		srcStart:   start,
		dstStart:   make([]uint64, len(count)),
		srcStrides: strides(s.dims, s.elem),
		dstStrides: strides(count, s.elem),
	})
	return out, nil
}

// strides returns the byte step of each dimension of a row-major array.
func strides(dims []uint64, elem uint64) []uint64 {
	out := make([]uint64, len(dims))
	step := elem
	for d := len(dims) - 1; d >= 0; d-- {
		out[d] = step
		step *= dims[d]
	}
	return out
}

func volume(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// region is a block copy between two row-major arrays.
type region struct {
	count              []uint64
	srcStart, dstStart []uint64
	srcStrides         []uint64
	dstStrides         []uint64
}

// blit copies r from src to dst. The innermost dimension moves as one run.
func blit(dst, src []byte, r region) {
	if len(r.count) == 0 {
		return
	}
	var walk func(d int, s, t uint64)
	walk = func(d int, s, t uint64) {
		s += r.srcStart[d] * r.srcStrides[d]
		t += r.dstStart[d] * r.dstStrides[d]
		if d == len(r.count)-1 {
			n := r.count[d] * r.srcStrides[d]
			if s+n <= uint64(len(src)) && t+n <= uint64(len(dst)) {
				copy(dst[t:t+n], src[s:s+n])
			}
			return
		}
		for i := uint64(0); i < r.count[d]; i++ {
			walk(d+1, s+i*r.srcStrides[d], t+i*r.dstStrides[d])
		}
	}
	walk(0, 0, 0)
}
