package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/btree"
)

// Client IDs of fixed and extensible arrays used as chunk indexes.
const (
	clientChunks         = 0
	clientFilteredChunks = 1
)

// indexReader walks one array-based chunk index.
type indexReader struct {
	c        *Chunked
	grid     []uint64
	client   uint8
	elemSize int
	entries  []btree.ChunkEntry
}

func (c *Chunked) newIndexReader() *indexReader {
	return &indexReader{c: c, grid: c.chunkGrid()}
}

// checkSignature reads and verifies a block signature and version.
func checkSignature(nr *binary.Reader, want string) error {
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("reading %s signature: %w", want, err)
	}
	if string(sig) != want {
		return fmt.Errorf("invalid signature: got %q, expected %q", string(sig), want)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if version != 0 {
		return fmt.Errorf("unsupported %s version: %d", want, version)
	}
	return nil
}

// addElements decodes n raw index elements starting at linear chunk index first.
func (ir *indexReader) addElements(raw []byte, first uint64) {
	r := ir.c.reader
	osize := r.OffsetSize()
	le := r.ByteOrder()
	total := volume(ir.grid)
	for i := 0; (i+1)*ir.elemSize <= len(raw); i++ {
		idx := first + uint64(i)
		if idx >= total {
			return
		}
		el := raw[i*ir.elemSize : (i+1)*ir.elemSize]
		entry := btree.ChunkEntry{Address: binary.Uint(le, el[:osize])}
		if ir.client == clientFilteredChunks && len(el) >= osize+4 {
			sizeEnd := len(el) - 4
			entry.Size = uint32(binary.Uint(le, el[osize:sizeEnd]))
			entry.FilterMask = uint32(binary.Uint(le, el[sizeEnd:]))
		}
		if entry.Address == 0 || r.IsUndefinedOffset(entry.Address) {
			continue
		}
		entry.Offset = ir.c.chunkOffset(idx, ir.grid)
		ir.entries = append(ir.entries, entry)
	}
}

// readPages reads a paged data block body: pages of pageElems elements, each
// followed by a checksum. initialized reports whether page p holds data.
func (ir *indexReader) readPages(addr uint64, nelems, pageElems, first uint64, initialized func(p uint64) bool) error {
	pageBytes := int64(pageElems)*int64(ir.elemSize) + 4
	npages := (nelems + pageElems - 1) / pageElems
	for p := uint64(0); p < npages; p++ {
		if !initialized(p) {
			continue
		}
		n := min(pageElems, nelems-p*pageElems)
		raw, err := ir.c.reader.At(int64(addr)+int64(p)*pageBytes).ReadBytes(int(n) * ir.elemSize)
		if err != nil {
			return fmt.Errorf("reading page %d: %w", p, err)
		}
		ir.addElements(raw, first+p*pageElems)
	}
	return nil
}

func bitSet(bitmap []byte, i uint64) bool {
	return i/8 < uint64(len(bitmap)) && bitmap[i/8]&(0x80>>(i%8)) != 0
}

// readFixedArray reads a fixed array index (FAHD header, FADB data block).
func (c *Chunked) readFixedArray(addr uint64) ([]btree.ChunkEntry, error) {
	ir := c.newIndexReader()
	nr := c.reader.At(int64(addr))
	if err := checkSignature(nr, "FAHD"); err != nil {
		return nil, err
	}

	var hdr [3]byte // client, entry size, page bits
	raw, err := nr.ReadBytes(3)
	if err != nil {
		return nil, err
	}
	copy(hdr[:], raw)
	ir.client, ir.elemSize = hdr[0], int(hdr[1])
	pageBits := hdr[2]
	if ir.elemSize < c.reader.OffsetSize() {
		return nil, fmt.Errorf("fixed array entry size %d smaller than an address", ir.elemSize)
	}

	numEntries, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	dataAddr, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if c.reader.IsUndefinedOffset(dataAddr) || numEntries == 0 {
		return nil, nil
	}

	db := c.reader.At(int64(dataAddr))
	if err := checkSignature(db, "FADB"); err != nil {
		return nil, err
	}
	db.Skip(1) // client
	if _, err := db.ReadOffset(); err != nil {
		return nil, err
	}

	pageElems := uint64(1) << pageBits
	if numEntries <= pageElems {
		raw, err := db.ReadBytes(int(numEntries) * ir.elemSize)
		if err != nil {
			return nil, fmt.Errorf("reading fixed array entries: %w", err)
		}
		ir.addElements(raw, 0)
		return ir.entries, nil
	}

	npages := (numEntries + pageElems - 1) / pageElems
	bitmap, err := db.ReadBytes(int((npages + 7) / 8))
	if err != nil {
		return nil, fmt.Errorf("reading page bitmap: %w", err)
	}
	db.Skip(4) // checksum
	err = ir.readPages(uint64(db.Pos()), numEntries, pageElems, 0, func(p uint64) bool {
		return bitSet(bitmap, p)
	})
	if err != nil {
		return nil, err
	}
	return ir.entries, nil
}

// eaHeader holds the creation parameters of an extensible array.
type eaHeader struct {
	maxElemBits     uint8
	indexElems      uint64
	dataBlockMin    uint64
	superBlockMin   uint64
	pageElemBits    uint8
	maxIndex        uint64
	indexBlockAddr  uint64
	superBlocks     []eaSuperBlockInfo
	blockOffsetSize int
}

// eaSuperBlockInfo describes the data blocks addressed through one super block.
type eaSuperBlockInfo struct {
	dataBlocks uint64
	blockElems uint64
	startIndex uint64
	startBlock uint64
}

func log2(v uint64) int { return bits.Len64(v) - 1 }

func (h *eaHeader) init() error {
	if h.dataBlockMin == 0 || h.superBlockMin == 0 ||
		h.dataBlockMin&(h.dataBlockMin-1) != 0 || h.superBlockMin&(h.superBlockMin-1) != 0 {
		return fmt.Errorf("invalid extensible array parameters: data block min %d, super block min %d",
			h.dataBlockMin, h.superBlockMin)
	}
	if int(h.maxElemBits) < log2(h.dataBlockMin) {
		return fmt.Errorf("invalid extensible array parameters: %d element bits", h.maxElemBits)
	}
	n := 1 + int(h.maxElemBits) - log2(h.dataBlockMin)
	h.superBlocks = make([]eaSuperBlockInfo, n)
	var startIndex, startBlock uint64
	for s := range h.superBlocks {
		info := eaSuperBlockInfo{
			dataBlocks: uint64(1) << (s / 2),
			blockElems: (uint64(1) << ((s + 1) / 2)) * h.dataBlockMin,
			startIndex: startIndex,
			startBlock: startBlock,
		}
		h.superBlocks[s] = info
		startIndex += info.dataBlocks * info.blockElems
		startBlock += info.dataBlocks
	}
	h.blockOffsetSize = (int(h.maxElemBits) + 7) / 8
	return nil
}

// readExtensibleArray reads an extensible array index. Elements live in the
// index block, in data blocks it points at directly, and in data blocks
// reached through super blocks.
func (c *Chunked) readExtensibleArray(addr uint64) ([]btree.ChunkEntry, error) {
	ir := c.newIndexReader()
	nr := c.reader.At(int64(addr))
	if err := checkSignature(nr, "EAHD"); err != nil {
		return nil, err
	}

	raw, err := nr.ReadBytes(7)
	if err != nil {
		return nil, err
	}
	ir.client, ir.elemSize = raw[0], int(raw[1])
	h := &eaHeader{
		maxElemBits:   raw[2],
		indexElems:    uint64(raw[3]),
		dataBlockMin:  uint64(raw[4]),
		superBlockMin: uint64(raw[5]),
		pageElemBits:  raw[6],
	}
	if ir.elemSize < c.reader.OffsetSize() {
		return nil, fmt.Errorf("extensible array element size %d smaller than an address", ir.elemSize)
	}
	if err := h.init(); err != nil {
		return nil, err
	}

	// Statistics: secondary blocks, their size, data blocks, their size.
	nr.Skip(4 * int64(c.reader.LengthSize()))
	if h.maxIndex, err = nr.ReadLength(); err != nil {
		return nil, err
	}
	if _, err = nr.ReadLength(); err != nil { // elements realized
		return nil, err
	}
	if h.indexBlockAddr, err = nr.ReadOffset(); err != nil {
		return nil, err
	}
	if c.reader.IsUndefinedOffset(h.indexBlockAddr) || h.maxIndex == 0 {
		return nil, nil
	}

	if err := ir.readEAIndexBlock(h); err != nil {
		return nil, err
	}
	return ir.entries, nil
}

func (ir *indexReader) readEAIndexBlock(h *eaHeader) error {
	r := ir.c.reader
	nr := r.At(int64(h.indexBlockAddr))
	if err := checkSignature(nr, "EAIB"); err != nil {
		return err
	}
	nr.Skip(1) // client
	if _, err := nr.ReadOffset(); err != nil {
		return err
	}

	raw, err := nr.ReadBytes(int(h.indexElems) * ir.elemSize)
	if err != nil {
		return fmt.Errorf("reading index block elements: %w", err)
	}
	ir.addElements(raw, 0)

	directSuper := 2 * log2(h.superBlockMin)
	dataAddrs := make([]uint64, 2*(h.superBlockMin-1))
	for i := range dataAddrs {
		if dataAddrs[i], err = nr.ReadOffset(); err != nil {
			return fmt.Errorf("reading data block address %d: %w", i, err)
		}
	}
	superAddrs := make([]uint64, max(len(h.superBlocks)-directSuper, 0))
	for i := range superAddrs {
		if superAddrs[i], err = nr.ReadOffset(); err != nil {
			return fmt.Errorf("reading super block address %d: %w", i, err)
		}
	}

	pageElems := uint64(1) << h.pageElemBits
	for s, info := range h.superBlocks {
		base := h.indexElems + info.startIndex
		if base >= h.maxIndex {
			break
		}
		if s < directSuper {
			for k := uint64(0); k < info.dataBlocks; k++ {
				i := info.startBlock + k
				if i >= uint64(len(dataAddrs)) || r.IsUndefinedOffset(dataAddrs[i]) {
					continue
				}
				err := ir.readEADataBlock(h, dataAddrs[i], info.blockElems, base+k*info.blockElems, nil, 0)
				if err != nil {
					return err
				}
			}
			continue
		}
		addr := superAddrs[s-directSuper]
		if r.IsUndefinedOffset(addr) {
			continue
		}
		if err := ir.readEASuperBlock(h, addr, info, base, pageElems); err != nil {
			return fmt.Errorf("super block %d: %w", s, err)
		}
	}
	return nil
}

func (ir *indexReader) readEASuperBlock(h *eaHeader, addr uint64, info eaSuperBlockInfo, base, pageElems uint64) error {
	r := ir.c.reader
	nr := r.At(int64(addr))
	if err := checkSignature(nr, "EASB"); err != nil {
		return err
	}
	nr.Skip(1 + int64(r.OffsetSize()) + int64(h.blockOffsetSize)) // client, header, block offset

	var bitmap []byte
	var pagesPerBlock uint64
	if info.blockElems > pageElems {
		pagesPerBlock = info.blockElems / pageElems
		var err error
		if bitmap, err = nr.ReadBytes(int((info.dataBlocks*pagesPerBlock + 7) / 8)); err != nil {
			return fmt.Errorf("reading page bitmap: %w", err)
		}
	}
	addrs := make([]uint64, info.dataBlocks)
	for k := range addrs {
		var err error
		if addrs[k], err = nr.ReadOffset(); err != nil {
			return fmt.Errorf("reading data block address %d: %w", k, err)
		}
	}
	for k, a := range addrs {
		if r.IsUndefinedOffset(a) {
			continue
		}
		first := base + uint64(k)*info.blockElems
		if first >= h.maxIndex {
			break
		}
		err := ir.readEADataBlock(h, a, info.blockElems, first, bitmap, uint64(k)*pagesPerBlock)
		if err != nil {
			return err
		}
	}
	return nil
}

// readEADataBlock reads one data block of blockElems elements. Paged blocks
// consult bitmap, starting at bit pageBase, to skip pages never written.
func (ir *indexReader) readEADataBlock(h *eaHeader, addr, blockElems, first uint64, bitmap []byte, pageBase uint64) error {
	r := ir.c.reader
	nr := r.At(int64(addr))
	if err := checkSignature(nr, "EADB"); err != nil {
		return err
	}
	nr.Skip(1 + int64(r.OffsetSize()) + int64(h.blockOffsetSize))

	n := min(blockElems, h.maxIndex-first)
	pageElems := uint64(1) << h.pageElemBits
	if blockElems <= pageElems {
		raw, err := nr.ReadBytes(int(n) * ir.elemSize)
		if err != nil {
			return fmt.Errorf("reading data block elements: %w", err)
		}
		ir.addElements(raw, first)
		return nil
	}

	nr.Skip(4) // prefix checksum
	return ir.readPages(uint64(nr.Pos()), n, pageElems, first, func(p uint64) bool {
		return bitmap == nil || bitSet(bitmap, pageBase+p)
	})
}
