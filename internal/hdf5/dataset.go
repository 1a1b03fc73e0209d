package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/layout"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Dataset is an HDF5 dataset. Its storage is decoded when it is opened;
// the data is read on demand.
type Dataset struct {
	node
	space   *message.Dataspace
	elem    *message.Datatype
	storage layout.Layout
}

func newDataset(n node) (*Dataset, error) {
	d := &Dataset{node: n, space: n.header.Dataspace(), elem: n.header.Datatype()}
	lay := n.header.Layout()
	switch {
	case d.space == nil:
		return nil, fmt.Errorf("dataset %s: no dataspace message", n.path)
	case d.elem == nil:
		return nil, fmt.Errorf("dataset %s: no datatype message", n.path)
	case lay == nil:
		return nil, fmt.Errorf("dataset %s: no layout message", n.path)
	}
	var err error
	if d.storage, err = layout.New(lay, d.space, d.elem, n.header.Filters(), n.file.reader); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", n.path, err)
	}
	return d, nil
}

// Shape is nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.space.IsScalar() {
		return nil
	}
	return d.space.Dimensions
}

// MaxShape holds the undefined length for unlimited dimensions, or is nil
// when the file records no maxima.
func (d *Dataset) MaxShape() []uint64          { return d.space.MaxDims }
func (d *Dataset) Rank() int                   { return d.space.Rank }
func (d *Dataset) NumElements() uint64         { return d.space.NumElements() }
func (d *Dataset) IsScalar() bool              { return d.space.IsScalar() }
func (d *Dataset) Datatype() *message.Datatype { return d.elem }
func (d *Dataset) Layout() message.LayoutClass { return d.storage.Class() }

// ReadRaw returns every element's bytes in row-major order.
func (d *Dataset) ReadRaw() ([]byte, error) {
	raw, err := d.storage.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.path, err)
	}
	return raw, nil
}

// ReadSlice returns the bytes of the hyperslab at start with count
// elements per dimension, in row-major order.
func (d *Dataset) ReadSlice(start, count []uint64) ([]byte, error) {
	raw, err := d.storage.ReadSlice(start, count)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %v: %w", d.path, start, err)
	}
	return raw, nil
}

func (d *Dataset) ReadValues() ([]dtype.Value, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return nil, err
	}
	return d.decode(raw, d.NumElements())
}

// ReadValuesAt decodes the hyperslab ReadSlice would return.
func (d *Dataset) ReadValuesAt(start, count []uint64) ([]dtype.Value, error) {
	raw, err := d.ReadSlice(start, count)
	if err != nil {
		return nil, err
	}
	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	return d.decode(raw, n)
}

func (d *Dataset) decode(raw []byte, n uint64) ([]dtype.Value, error) {
	vals, err := d.file.decoder.DecodeAll(d.elem, raw, int(n))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", d.path, err)
	}
	return vals, nil
}
