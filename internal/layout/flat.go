package layout

import (
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Flat is storage kept as one run of bytes. Compact data lives in the
// object header; contiguous data lives at a file address.
type Flat struct {
	class message.LayoutClass
	shape
	inline []byte
	addr   uint64
	size   uint64
	r      *binary.Reader
}

// NewCompact returns the reader for data stored inside the object header.
func NewCompact(lay *message.DataLayout, space *message.Dataspace, dt *message.Datatype) *Flat {
	return &Flat{
		class:  message.LayoutCompact,
		shape:  shapeOf(space, dt),
		inline: lay.CompactData,
		size:   uint64(len(lay.CompactData)),
	}
}

// NewContiguous returns the reader for a single block of file data. A zero
// size in the message is taken from the dataspace and datatype.
func NewContiguous(lay *message.DataLayout, space *message.Dataspace, dt *message.Datatype, r *binary.Reader) *Flat {
	size := lay.Size
	if size == 0 {
		size = dataSize(space, dt)
	}
	return &Flat{
		class: message.LayoutContiguous,
		shape: shapeOf(space, dt),
		addr:  lay.Address,
		size:  size,
		r:     r,
	}
}

func (f *Flat) Class() message.LayoutClass { return f.class }

// Address is the file address of contiguous data.
func (f *Flat) Address() uint64 { return f.addr }

// Size is the stored byte count.
func (f *Flat) Size() uint64 { return f.size }

// Read returns a copy of every stored byte.
func (f *Flat) Read() ([]byte, error) {
	return f.span(0, f.size)
}

// ReadSlice reads a hyperslab. A run of whole rows reads only its own bytes.
func (f *Flat) ReadSlice(start, count []uint64) ([]byte, error) {
	whole, err := f.check(start, count)
	if err != nil {
		return nil, err
	}
	if whole {
		return f.Read()
	}
	if off, n, ok := f.rowSpan(start, count); ok {
		return f.span(off, n)
	}
	data, err := f.Read()
	if err != nil {
		return nil, err
	}
	return f.extract(data, start, count)
}

func (f *Flat) span(off, n uint64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if off+n > f.size {
		return nil, fmt.Errorf("%s read of %d bytes at %d exceeds stored size %d", f.class, n, off, f.size)
	}
	if f.class == message.LayoutCompact {
		return append([]byte(nil), f.inline[off:off+n]...), nil
	}
	if f.r.IsUndefinedOffset(f.addr) {
		return nil, fmt.Errorf("contiguous data not allocated")
	}
	data, err := f.r.At(int64(f.addr + off)).ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data: %w", err)
	}
	return data, nil
}
