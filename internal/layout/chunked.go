package layout

import (
	"errors"
	"fmt"
	"sync"

	"github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/btree"
	"github.com/robert-malhotra/zsimview/internal/filter"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// ErrUnsupportedIndex is returned for chunk indexes this package cannot read.
var ErrUnsupportedIndex = errors.New("unsupported chunk index")

// Chunked reads data split into equal chunks. Only chunks overlapping a
// selection are loaded, and chunks missing from the index read as zeros.
type Chunked struct {
	lay    *message.DataLayout
	shape  shape
	chunk  []uint64
	filter *filter.Pipeline
	reader *binary.Reader

	once    sync.Once
	entries []btree.ChunkEntry
	err     error
}

// NewChunked returns the reader for chunked storage.
func NewChunked(
	lay *message.DataLayout,
	space *message.Dataspace,
	dt *message.Datatype,
	fp *message.FilterPipeline,
	r *binary.Reader,
) (*Chunked, error) {
	if dt == nil {
		return nil, errors.New("chunked layout without datatype")
	}
	s := shapeOf(space, dt)
	if len(s.dims) == 0 {
		s.dims = []uint64{1}
	}
	// Version 3 messages append the element size as a last chunk dimension.
	if len(lay.ChunkDims) < len(s.dims) {
		return nil, fmt.Errorf("chunk rank %d, dataset rank %d", len(lay.ChunkDims), len(s.dims))
	}
	chunk := make([]uint64, len(s.dims))
	for d := range chunk {
		if chunk[d] = uint64(lay.ChunkDims[d]); chunk[d] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	p, err := filter.NewPipeline(fp)
	if err != nil {
		return nil, fmt.Errorf("creating filter pipeline: %w", err)
	}
	p.SetElementSize(int(dt.Size))
	return &Chunked{lay: lay, shape: s, chunk: chunk, filter: p, reader: r}, nil
}

func (c *Chunked) Class() message.LayoutClass { return message.LayoutChunked }

// Read reads the whole dataset. A scalar is read as one element of rank 1.
func (c *Chunked) Read() ([]byte, error) {
	return c.ReadSlice(make([]uint64, len(c.shape.dims)), c.shape.dims)
}

func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	dims := c.shape.dims
	if err := inBounds(dims, start, count); err != nil {
		return nil, err
	}
	entries, err := c.chunkEntries()
	if err != nil {
		return nil, err
	}

	out := make([]byte, volume(count)*c.shape.elem)
	src := strides(c.chunk, c.shape.elem)
	dst := strides(count, c.shape.elem)
	for _, e := range entries {
		lo, n, ok := c.overlap(e.Offset, start, count)
		if !ok {
			continue
		}
		data, err := c.load(e)
		if err != nil {
			return nil, fmt.Errorf("chunk at %v: %w", e.Offset, err)
		}
		r := region{
			count:      n,
			srcStart:   make([]uint64, len(dims)),
			dstStart:   make([]uint64, len(dims)),
			srcStrides: src,
			dstStrides: dst,
		}
		for d := range dims {
			r.srcStart[d] = lo[d] - e.Offset[d]
			r.dstStart[d] = lo[d] - start[d]
		}
		blit(out, data, r)
	}
	return out, nil
}

// overlap intersects the chunk at origin with a selection, clipped to the
// dataset edge. It returns the first shared coordinate and the shared extent.
func (c *Chunked) overlap(origin, start, count []uint64) (lo, n []uint64, ok bool) {
	dims := c.shape.dims
	lo = make([]uint64, len(dims))
	n = make([]uint64, len(dims))
	for d := range dims {
		lo[d] = max(origin[d], start[d])
		hi := min(origin[d]+c.chunk[d], dims[d], start[d]+count[d])
		if hi <= lo[d] {
			return nil, nil, false
		}
		n[d] = hi - lo[d]
	}
	return lo, n, true
}

func (c *Chunked) chunkBytes() uint64 {
	return volume(c.chunk) * c.shape.elem
}

// load reads one chunk and undoes its filters.
func (c *Chunked) load(e btree.ChunkEntry) ([]byte, error) {
	size := uint64(e.Size)
	if size == 0 {
		size = c.chunkBytes()
	}
	data, err := c.reader.At(int64(e.Address)).ReadBytes(int(size))
	if err != nil || c.filter.Empty() {
		return data, err
	}
	return c.filter.Decode(data, e.FilterMask)
}

// chunkEntries reads the chunk index once and caches every allocated chunk.
func (c *Chunked) chunkEntries() ([]btree.ChunkEntry, error) {
	c.once.Do(func() {
		c.entries, c.err = c.readIndex()
		if c.err != nil {
			c.err = fmt.Errorf("reading chunk index: %w", c.err)
		}
	})
	return c.entries, c.err
}

func (c *Chunked) readIndex() ([]btree.ChunkEntry, error) {
	addr := c.lay.ChunkIndexAddr
	if addr == 0 || c.reader.IsUndefinedOffset(addr) {
		return nil, nil
	}
	rank := len(c.shape.dims)
	switch c.lay.ChunkIndexType {
	case message.ChunkIndexBTreeV1:
		return btree.ReadChunks(c.reader, addr, rank)
	case message.ChunkIndexBTreeV2:
		return btree.ReadChunksV2(c.reader, addr, c.lay.ChunkDims[:rank])
	case message.ChunkIndexSingleChunk:
		return []btree.ChunkEntry{{
			Offset:     make([]uint64, rank),
			Address:    addr,
			Size:       uint32(c.lay.FilteredChunkSize),
			FilterMask: c.lay.FilterMask,
		}}, nil
	case message.ChunkIndexImplicit:
		return c.implicitEntries(), nil
	case message.ChunkIndexFixedArray:
		return c.readFixedArray(addr)
	case message.ChunkIndexExtensibleArray:
		return c.readExtensibleArray(addr)
	}
	return nil, fmt.Errorf("%w: type %d", ErrUnsupportedIndex, c.lay.ChunkIndexType)
}

// chunkGrid returns the number of chunks along each dimension.
func (c *Chunked) chunkGrid() []uint64 {
	grid := make([]uint64, len(c.chunk))
	for d, n := range c.shape.dims {
		grid[d] = (n + c.chunk[d] - 1) / c.chunk[d]
	}
	return grid
}

// chunkOffset maps a linear chunk number to the chunk's first element.
func (c *Chunked) chunkOffset(i uint64, grid []uint64) []uint64 {
	off := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		off[d] = (i % grid[d]) * c.chunk[d]
		i /= grid[d]
	}
	return off
}

// implicitEntries lays chunks back to back from the index address.
func (c *Chunked) implicitEntries() []btree.ChunkEntry {
	grid := c.chunkGrid()
	size := c.chunkBytes()
	total := volume(grid)
	entries := make([]btree.ChunkEntry, 0, total)
	for i := uint64(0); i < total; i++ {
		entries = append(entries, btree.ChunkEntry{
			Offset:  c.chunkOffset(i, grid),
			Address: c.lay.ChunkIndexAddr + i*size,
			Size:    uint32(size),
		})
	}
	return entries
}
