// Package btree walks the B-trees HDF5 uses to index old-style group
// members and dataset chunks. Version 1 trees serve both; version 2 trees
// are read only as chunk indexes.
package btree

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/heap"
)

// Version 1 node types.
const (
	groupNode uint8 = 0
	chunkNode uint8 = 1
)

// GroupEntry is one member of an old-style group.
type GroupEntry struct {
	Name string
	Addr uint64
	// Soft entries carry a path in Target instead of an address.
	Soft   bool
	Target string
}

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	// Offset is the chunk origin in dataset elements.
	Offset     []uint64
	FilterMask uint32
	// Size is the stored, possibly filtered, size. Zero means unknown.
	Size    uint32
	Address uint64
}

type v1Node struct {
	level    int
	keys     [][]byte
	children []uint64
}

// readV1Node reads a node with its entries+1 keys interleaved around the
// child pointers.
func readV1Node(r *binpkg.Reader, addr uint64, typ uint8, keySize int) (*v1Node, error) {
	cur := r.At(int64(addr))
	hdr, err := cur.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("B-tree node at 0x%x: %w", addr, err)
	}
	if string(hdr[:4]) != "TREE" {
		return nil, fmt.Errorf("B-tree node at 0x%x: bad signature %q", addr, hdr[:4])
	}
	if hdr[4] != typ {
		return nil, fmt.Errorf("B-tree node at 0x%x: type %d, want %d", addr, hdr[4], typ)
	}
	n := &v1Node{level: int(hdr[5])}
	count := int(binary.LittleEndian.Uint16(hdr[6:]))
	cur.Skip(2 * int64(r.OffsetSize())) // siblings

	for i := 0; ; i++ {
		key, err := cur.ReadBytes(keySize)
		if err != nil {
			return nil, fmt.Errorf("B-tree node at 0x%x: key %d: %w", addr, i, err)
		}
		n.keys = append(n.keys, key)
		if i == count {
			return n, nil
		}
		child, err := cur.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("B-tree node at 0x%x: child %d: %w", addr, i, err)
		}
		n.children = append(n.children, child)
	}
}

// walkV1 calls leaf with the left key and pointer of every leaf child in
// key order. Each level must sit strictly below its parent, which also
// rules out cycles.
func walkV1(r *binpkg.Reader, addr uint64, typ uint8, keySize, parent int, leaf func(key []byte, child uint64) error) error {
	n, err := readV1Node(r, addr, typ, keySize)
	if err != nil {
		return err
	}
	if n.level >= parent {
		return fmt.Errorf("B-tree node at 0x%x: level %d below level %d", addr, n.level, parent)
	}
	for i, child := range n.children {
		if n.level == 0 {
			err = leaf(n.keys[i], child)
		} else {
			err = walkV1(r, child, typ, keySize, n.level, leaf)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadGroup lists the members of an old-style group, resolving names
// through its local heap.
func ReadGroup(r *binpkg.Reader, addr uint64, names *heap.Local) ([]GroupEntry, error) {
	var out []GroupEntry
	err := walkV1(r, addr, groupNode, r.LengthSize(), 256, func(_ []byte, snod uint64) error {
		entries, err := readSymbolNode(r, snod, names)
		out = append(out, entries...)
		return err
	})
	return out, err
}

// symbolEntrySize is name offset, header address, cache type, reserved word
// and the scratch pad, less the two offsets.
const symbolEntrySize = 4 + 4 + 16

func readSymbolNode(r *binpkg.Reader, addr uint64, names *heap.Local) ([]GroupEntry, error) {
	cur := r.At(int64(addr))
	hdr, err := cur.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("symbol node at 0x%x: %w", addr, err)
	}
	if string(hdr[:4]) != "SNOD" || hdr[4] != 1 {
		return nil, fmt.Errorf("symbol node at 0x%x: bad header %q v%d", addr, hdr[:4], hdr[4])
	}
	count := int(binary.LittleEndian.Uint16(hdr[6:]))

	out := make([]GroupEntry, 0, count)
	for i := 0; i < count; i++ {
		nameOff, err := cur.ReadOffset()
		if err != nil {
			return nil, err
		}
		header, err := cur.ReadOffset()
		if err != nil {
			return nil, err
		}
		rest, err := cur.ReadBytes(symbolEntrySize)
		if err != nil {
			return nil, err
		}
		e := GroupEntry{Name: names.Lookup(nameOff), Addr: header}
		if e.Name == "" {
			continue
		}
		if binary.LittleEndian.Uint32(rest) == 2 {
			e.Soft = true
			e.Addr = 0
			e.Target = names.Lookup(uint64(binary.LittleEndian.Uint32(rest[8:])))
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadChunks lists the allocated chunks of a version 1 B-tree index over a
// dataset of ndims dimensions.
func ReadChunks(r *binpkg.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	// Keys hold size, filter mask and one offset per dimension plus one
	// for the element size.
	keySize := 8 + 8*(ndims+1)
	out := []ChunkEntry{}
	err := walkV1(r, addr, chunkNode, keySize, 256, func(key []byte, child uint64) error {
		size := binary.LittleEndian.Uint32(key)
		if size == 0 || r.IsUndefinedOffset(child) {
			return nil
		}
		e := ChunkEntry{
			Offset:     make([]uint64, ndims),
			FilterMask: binary.LittleEndian.Uint32(key[4:]),
			Size:       size,
			Address:    child,
		}
		for d := range e.Offset {
			e.Offset[d] = binary.LittleEndian.Uint64(key[8+8*d:])
		}
		out = append(out, e)
		return nil
	})
	return out, err
}
