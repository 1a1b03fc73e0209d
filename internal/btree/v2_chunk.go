package btree

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/zsimview/internal/binary"
)

// Record types of version 2 B-trees that index dataset chunks.
const (
	// BTreeV2TypeChunkNoFilter records hold an address and scaled offsets.
	BTreeV2TypeChunkNoFilter uint8 = 10
	// BTreeV2TypeChunkWithFilter records add the stored size and filter mask.
	BTreeV2TypeChunkWithFilter uint8 = 11
)

// Every node starts with a signature, version and type and ends in a checksum.
const nodeOverhead = 10

// v2Tree is an open version 2 B-tree of chunk records.
type v2Tree struct {
	r        *binary.Reader
	kind     uint8
	nodeSize uint64
	recSize  int
	depth    int
	root     uint64
	rootRecs uint64
	total    uint64

	scale []uint32
	// per depth: records a node can hold, and the width of the running
	// total of records below a child pointer
	capacity []uint64
	totalLen []int
	countLen int
}

// encSize returns the bytes needed to store values up to n.
func encSize(n uint64) int {
	return (bits.Len64(n)-1)/8 + 1
}

// ReadChunksV2 lists the allocated chunks of a version 2 B-tree index.
// chunkDims is the chunk shape without the element size; records store
// offsets scaled by it.
func ReadChunksV2(r *binary.Reader, addr uint64, chunkDims []uint32) ([]ChunkEntry, error) {
	t, err := openV2(r, addr)
	if err != nil {
		return nil, err
	}
	if t.kind != BTreeV2TypeChunkNoFilter && t.kind != BTreeV2TypeChunkWithFilter {
		return nil, fmt.Errorf("B-tree v2 at %d holds record type %d, not chunks", addr, t.kind)
	}
	if t.total == 0 {
		return []ChunkEntry{}, nil
	}
	t.scale = chunkDims
	if err := t.size(); err != nil {
		return nil, err
	}
	return t.node(t.root, t.rootRecs, t.depth)
}

// openV2 decodes the BTHD header block at addr.
func openV2(r *binary.Reader, addr uint64) (*v2Tree, error) {
	osize, lsize := r.OffsetSize(), r.LengthSize()
	raw, err := r.At(int64(addr)).ReadBytes(16 + osize + 2 + lsize)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree v2 header: %w", err)
	}
	if string(raw[:4]) != "BTHD" {
		return nil, fmt.Errorf("B-tree v2 header signature %q", raw[:4])
	}
	if raw[4] != 0 {
		return nil, fmt.Errorf("B-tree v2 header version %d", raw[4])
	}
	order := r.ByteOrder()
	// Split and merge percentages at raw[14:16] only matter to writers.
	p := 16
	t := &v2Tree{
		r:        r,
		kind:     raw[5],
		nodeSize: uint64(order.Uint32(raw[6:10])),
		recSize:  int(order.Uint16(raw[10:12])),
		depth:    int(order.Uint16(raw[12:14])),
		root:     binary.Uint(order, raw[p:p+osize]),
		rootRecs: uint64(order.Uint16(raw[p+osize : p+osize+2])),
		total:    binary.Uint(order, raw[p+osize+2:]),
	}
	return t, nil
}

// size works out node capacities per depth. They fix the width of the
// record counts stored beside each child pointer.
func (t *v2Tree) size() error {
	if t.recSize == 0 || t.nodeSize <= nodeOverhead {
		return fmt.Errorf("B-tree v2 node size %d, record size %d", t.nodeSize, t.recSize)
	}
	room := t.nodeSize - nodeOverhead
	rec := uint64(t.recSize)

	t.capacity = make([]uint64, t.depth+1)
	t.totalLen = make([]int, t.depth+1)
	t.capacity[0] = room / rec
	t.countLen = encSize(t.capacity[0])
	below := t.capacity[0]
	for d := 1; d <= t.depth; d++ {
		ptr := uint64(t.pointerLen(d))
		if room <= ptr {
			return fmt.Errorf("B-tree v2 node size %d cannot hold depth %d", t.nodeSize, d)
		}
		n := (room - ptr) / (rec + ptr)
		below = (n+1)*below + n
		t.capacity[d] = n
		t.totalLen[d] = encSize(below)
	}
	return nil
}

// pointerLen is the width of one child pointer in a node at depth d.
func (t *v2Tree) pointerLen(d int) int {
	n := t.r.OffsetSize() + t.countLen
	if d > 1 {
		n += t.totalLen[d-1]
	}
	return n
}

// node returns the chunks under the node at addr in key order.
func (t *v2Tree) node(addr, nrec uint64, depth int) ([]ChunkEntry, error) {
	sig := "BTLF"
	if depth > 0 {
		sig = "BTIN"
	}
	cur := t.r.At(int64(addr))
	head, err := cur.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("reading %s node: %w", sig, err)
	}
	if string(head[:4]) != sig {
		return nil, fmt.Errorf("B-tree v2 node signature %q, want %s", head[:4], sig)
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("B-tree v2 node version %d", head[4])
	}

	recs := make([]ChunkEntry, nrec)
	for i := range recs {
		raw, err := cur.ReadBytes(t.recSize)
		if err != nil {
			return nil, fmt.Errorf("reading record %d: %w", i, err)
		}
		if recs[i], err = t.record(raw); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if depth == 0 {
		return allocated(t.r, recs), nil
	}

	// Child i holds the keys before record i. One more child follows the
	// last record.
	var out []ChunkEntry
	for i := uint64(0); i <= nrec; i++ {
		child, err := cur.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading child %d: %w", i, err)
		}
		n, err := cur.ReadUintN(t.countLen)
		if err != nil {
			return nil, fmt.Errorf("reading child %d record count: %w", i, err)
		}
		if depth > 1 {
			cur.Skip(int64(t.totalLen[depth-1]))
		}
		sub, err := t.node(child, n, depth-1)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out = append(out, sub...)
		if i < nrec {
			out = append(out, allocated(t.r, recs[i:i+1])...)
		}
	}
	return out, nil
}

// record decodes one chunk record: address, then for filtered chunks a
// variable width size and a filter mask, then eight bytes per scaled offset.
func (t *v2Tree) record(raw []byte) (ChunkEntry, error) {
	rank := len(t.scale)
	osize := t.r.OffsetSize()
	order := t.r.ByteOrder()
	fixed := osize + 8*rank
	if t.kind == BTreeV2TypeChunkWithFilter {
		fixed += 4
	}
	if len(raw) < fixed {
		return ChunkEntry{}, fmt.Errorf("%d byte record, rank %d needs %d", len(raw), rank, fixed)
	}

	e := ChunkEntry{Address: binary.Uint(order, raw[:osize]), Offset: make([]uint64, rank)}
	rest := raw[osize:]
	if t.kind == BTreeV2TypeChunkWithFilter {
		w := len(raw) - fixed
		e.Size = uint32(binary.Uint(order, rest[:w]))
		e.FilterMask = order.Uint32(rest[w : w+4])
		rest = rest[w+4:]
	}
	for d := range e.Offset {
		e.Offset[d] = order.Uint64(rest[8*d:]) * uint64(t.scale[d])
	}
	return e, nil
}

func allocated(r *binary.Reader, recs []ChunkEntry) []ChunkEntry {
	out := make([]ChunkEntry, 0, len(recs))
	for _, e := range recs {
		if e.Address != 0 && !r.IsUndefinedOffset(e.Address) {
			out = append(out, e)
		}
	}
	return out
}
