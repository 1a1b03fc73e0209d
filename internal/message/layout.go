package message

import "fmt"

// LayoutClass is how a dataset's raw data is stored.
type LayoutClass uint8

const (
	LayoutCompact LayoutClass = iota
	LayoutContiguous
	LayoutChunked
	LayoutVirtual
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// ChunkIndexType names the chunk index of a version 4 layout. Older
// layouts always index chunks with a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1 ChunkIndexType = iota
	ChunkIndexSingleChunk
	ChunkIndexImplicit
	ChunkIndexFixedArray
	ChunkIndexExtensibleArray
	ChunkIndexBTreeV2
)

// Version 4 chunked layout flags.
const (
	ChunkFlagDontFilterPartialEdge = 0x01
	ChunkFlagSingleIndexWithFilter = 0x02
)

// DefaultPageBits is the fixed array page size used unless a layout says
// otherwise.
const DefaultPageBits = 10

// DataLayout says where a dataset's elements live.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// Contiguous storage. Size is zero when the message omits it.
	Address uint64
	Size    uint64

	// ChunkDims ends with one extra entry, the element size.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// Filtered single-chunk index.
	FilteredChunkSize uint64
	FilterMask        uint32

	PageBits uint8
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func parseDataLayout(c *cursor) *DataLayout {
	l := &DataLayout{Version: c.u8()}
	switch l.Version {
	case 1, 2:
		l.parseV1(c)
	case 3:
		l.Class = LayoutClass(c.u8())
		l.parseV3(c)
	case 4:
		l.Class = LayoutClass(c.u8())
		if l.Class == LayoutChunked {
			l.parseChunkedV4(c)
		} else {
			l.parseV3(c)
		}
	default:
		c.err = fmt.Errorf("%w: layout message version %d", ErrUnsupportedLayout, l.Version)
	}
	return l
}

// parseV1 reads version 1 and 2: rank, class, five reserved bytes, the
// address, then the dimensions.
func (l *DataLayout) parseV1(c *cursor) {
	ndims := int(c.u8())
	l.Class = LayoutClass(c.u8())
	c.skip(5)
	if l.Class != LayoutCompact {
		l.Address = c.offset()
	}
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = c.u32()
	}
	switch l.Class {
	case LayoutCompact:
		l.CompactData = c.take(int(c.u32()))
	case LayoutContiguous:
	case LayoutChunked:
		// Rank counts the element size, which comes last.
		l.ChunkIndexAddr = l.Address
		l.ChunkDims = dims
	default:
		c.err = fmt.Errorf("%w: %s layout in version %d message", ErrUnsupportedLayout, l.Class, l.Version)
	}
}

func (l *DataLayout) parseV3(c *cursor) {
	switch l.Class {
	case LayoutCompact:
		l.CompactData = c.take(int(c.u16()))
	case LayoutContiguous:
		l.Address = c.offset()
		l.Size = c.length()
	case LayoutChunked:
		// Rank counts the element size, which comes last.
		ndims := int(c.u8())
		l.ChunkIndexAddr = c.offset()
		l.ChunkDims = make([]uint32, ndims)
		for i := range l.ChunkDims {
			l.ChunkDims[i] = c.u32()
		}
	default:
		c.err = fmt.Errorf("%w: %s layout", ErrUnsupportedLayout, l.Class)
	}
}

func (l *DataLayout) parseChunkedV4(c *cursor) {
	l.ChunkFlags = c.u8()
	ndims := int(c.u8())
	l.DimensionSizeBytes = c.u8()
	l.ChunkDims = make([]uint32, ndims)
	for i := range l.ChunkDims {
		l.ChunkDims[i] = uint32(c.uintN(int(l.DimensionSizeBytes)))
	}
	l.ChunkIndexType = ChunkIndexType(c.u8())
	switch l.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if l.ChunkFlags&ChunkFlagSingleIndexWithFilter != 0 {
			l.FilteredChunkSize = c.length()
			l.FilterMask = c.u32()
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		l.PageBits = c.u8()
	case ChunkIndexExtensibleArray:
		c.skip(5) // max bits, index elements, min pointers, min elements, page bits
	case ChunkIndexBTreeV2:
		c.skip(6) // node size, split and merge percent
	default:
		c.err = fmt.Errorf("%w: chunk index type %d", ErrUnsupportedLayout, l.ChunkIndexType)
		return
	}
	l.ChunkIndexAddr = c.offset()
}

// encode writes chunked layouts as version 4 and the rest as version 3.
func (l *DataLayout) encode(e *encoder) error {
	if l.Class != LayoutChunked {
		e.u8(3, uint8(l.Class))
		switch l.Class {
		case LayoutCompact:
			e.u16(uint16(len(l.CompactData)))
			e.raw(l.CompactData)
		case LayoutContiguous:
			e.offset(l.Address)
			e.length(l.Size)
		default:
			return fmt.Errorf("%w: writing %s layout", ErrUnsupportedLayout, l.Class)
		}
		return nil
	}

	flags := l.ChunkFlags
	if l.ChunkIndexType == ChunkIndexSingleChunk && l.FilteredChunkSize > 0 {
		flags |= ChunkFlagSingleIndexWithFilter
	}
	width := l.DimensionSizeBytes
	if width == 0 {
		width = 4
	}
	e.u8(4, uint8(l.Class), flags, uint8(len(l.ChunkDims)), width)
	for _, d := range l.ChunkDims {
		e.uintN(uint64(d), int(width))
	}
	e.u8(uint8(l.ChunkIndexType))
	switch l.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if flags&ChunkFlagSingleIndexWithFilter != 0 {
			e.length(l.FilteredChunkSize)
			e.u32(l.FilterMask)
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		bits := l.PageBits
		if bits == 0 {
			bits = DefaultPageBits
		}
		e.u8(bits)
	default:
		return fmt.Errorf("%w: writing chunk index type %d", ErrUnsupportedLayout, l.ChunkIndexType)
	}
	e.offset(l.ChunkIndexAddr)
	return nil
}

// NewContiguousLayout returns a contiguous layout; the address is usually
// filled in once the data is placed.
func NewContiguousLayout(addr, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout. The element size is
// appended to chunkDims as the format requires.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, index ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elementSize)
	widest := elementSize
	for _, d := range chunkDims {
		widest = max(widest, d)
	}
	width := uint8(1)
	switch {
	case widest > 0xffff:
		width = 4
	case widest > 0xff:
		width = 2
	}
	return &DataLayout{Version: 4, Class: LayoutChunked, ChunkDims: dims, ChunkIndexType: index, DimensionSizeBytes: width}
}
