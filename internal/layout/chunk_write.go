package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/filter"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// ChunkRef locates one written chunk.
type ChunkRef struct {
	Address uint64
	Size    uint64 // stored size, after filtering
}

// ChunkWriter handles writing chunked dataset data and indices.
type ChunkWriter struct {
	w           *binary.Writer
	chunkDims   []uint32
	elementSize uint32
	pipeline    *filter.Pipeline
	allocate    func(size int64) uint64
}

// NewChunkWriter creates a new chunk writer. A nil or empty pipeline
// stores chunks unfiltered.
func NewChunkWriter(w *binary.Writer, chunkDims []uint32, elementSize uint32,
	pipeline *filter.Pipeline, allocate func(size int64) uint64) *ChunkWriter {
	if pipeline == nil {
		pipeline = &filter.Pipeline{}
	}
	return &ChunkWriter{
		w:           w,
		chunkDims:   chunkDims,
		elementSize: elementSize,
		pipeline:    pipeline,
		allocate:    allocate,
	}
}

// Filtered reports whether chunks pass through a filter pipeline.
func (cw *ChunkWriter) Filtered() bool {
	return !cw.pipeline.Empty()
}

// ChunkSize returns the size in bytes of one unfiltered chunk.
func (cw *ChunkWriter) ChunkSize() uint64 {
	size := uint64(cw.elementSize)
	for _, dim := range cw.chunkDims {
		size *= uint64(dim)
	}
	return size
}

// WriteChunk encodes a full chunk and stores it.
func (cw *ChunkWriter) WriteChunk(data []byte) (ChunkRef, error) {
	enc, err := cw.pipeline.Encode(data)
	if err != nil {
		return ChunkRef{}, err
	}
	addr := cw.allocate(int64(len(enc)))
	if err := cw.w.At(int64(addr)).WriteBytes(enc); err != nil {
		return ChunkRef{}, err
	}
	return ChunkRef{Address: addr, Size: uint64(len(enc))}, nil
}

// WriteChunks writes chunks in order and returns where each one went.
func (cw *ChunkWriter) WriteChunks(chunks [][]byte) ([]ChunkRef, error) {
	refs := make([]ChunkRef, len(chunks))
	for i, chunk := range chunks {
		ref, err := cw.WriteChunk(chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		refs[i] = ref
	}
	return refs, nil
}

// chunkSizeLen is the width of the chunk size field in filtered index
// entries: enough bytes for the unfiltered size plus one, at most 8.
func chunkSizeLen(chunkBytes uint64) int {
	return min(1+(bits.Len64(chunkBytes)-1+8)/8, 8)
}

// WriteFixedArrayIndex writes a fixed array chunk index for refs, given in
// row-major chunk order, and returns the header address. The page size is
// raised until every entry fits in one unpaged data block.
func (cw *ChunkWriter) WriteFixedArrayIndex(refs []ChunkRef) (addr uint64, pageBits uint8, err error) {
	if len(refs) == 0 {
		return 0, 0, fmt.Errorf("fixed array index needs at least one chunk")
	}
	offsetSize := cw.w.OffsetSize()
	lengthSize := cw.w.LengthSize()

	client := uint8(0)
	entrySize := offsetSize
	sizeLen := 0
	if cw.Filtered() {
		client = 1
		sizeLen = chunkSizeLen(cw.ChunkSize())
		entrySize += sizeLen + 4
	}
	pageBits = message.DefaultPageBits
	for uint64(1)<<pageBits < uint64(len(refs)) {
		pageBits++
	}

	headerSize := 4 + 4 + lengthSize + offsetSize + 4
	headerAddr := cw.allocate(int64(headerSize))
	blockSize := 4 + 2 + offsetSize + len(refs)*entrySize + 4
	blockAddr := cw.allocate(int64(blockSize))

	block := make([]byte, 0, blockSize)
	block = append(block, "FADB"...)
	block = append(block, 0, client)
	block = appendUint(block, headerAddr, offsetSize)
	for _, ref := range refs {
		block = appendUint(block, ref.Address, offsetSize)
		if cw.Filtered() {
			block = appendUint(block, ref.Size, sizeLen)
			block = appendUint(block, 0, 4) // filter mask
		}
	}
	block = appendUint(block, uint64(binary.Lookup3Checksum(block)), 4)
	if err := cw.w.At(int64(blockAddr)).WriteBytes(block); err != nil {
		return 0, 0, err
	}

	header := make([]byte, 0, headerSize)
	header = append(header, "FAHD"...)
	header = append(header, 0, client, uint8(entrySize), pageBits)
	header = appendUint(header, uint64(len(refs)), lengthSize)
	header = appendUint(header, blockAddr, offsetSize)
	header = appendUint(header, uint64(binary.Lookup3Checksum(header)), 4)
	if err := cw.w.At(int64(headerAddr)).WriteBytes(header); err != nil {
		return 0, 0, err
	}
	return headerAddr, pageBits, nil
}

func appendUint(b []byte, v uint64, size int) []byte {
	for i := 0; i < size; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// SplitIntoChunks cuts row-major data into full chunks in row-major chunk
// order. Edge chunks are zero padded to the full chunk shape, as HDF5 stores them.
func SplitIntoChunks(data []byte, dataDims []uint64, chunkDims []uint32, elementSize uint32) [][]byte {
	ndims := len(dataDims)
	elem := uint64(elementSize)
	shape := make([]uint64, ndims)
	grid := make([]uint64, ndims)
	for d := range dataDims {
		shape[d] = uint64(chunkDims[d])
		grid[d] = (dataDims[d] + shape[d] - 1) / shape[d]
	}
	chunkBytes := volume(shape) * elem
	dataStrides := strides(dataDims, elem)
	chunkStrides := strides(shape, elem)

	total := volume(grid)
	chunks := make([][]byte, 0, total)
	for i := uint64(0); i < total; i++ {
		origin := make([]uint64, ndims)
		count := make([]uint64, ndims)
		rem := i
		for d := ndims - 1; d >= 0; d-- {
			origin[d] = (rem % grid[d]) * shape[d]
			rem /= grid[d]
			count[d] = min(shape[d], dataDims[d]-origin[d])
		}
		chunk := make([]byte, chunkBytes)
		blit(chunk, data, region{
			count:      count,
			srcStart:   origin,
			dstStart:   make([]uint64, ndims),
			srcStrides: dataStrides,
			dstStrides: chunkStrides,
		})
		chunks = append(chunks, chunk)
	}
	return chunks
}
