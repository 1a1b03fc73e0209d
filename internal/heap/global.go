package heap

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

// ID locates one object in a global heap collection.
type ID struct {
	Addr  uint64
	Index uint32
}

// ParseID decodes a heap ID: a collection address then a four byte index.
func ParseID(b []byte, offsetSize int) (ID, error) {
	if len(b) < offsetSize+4 {
		return ID{}, fmt.Errorf("heap ID needs %d bytes, have %d", offsetSize+4, len(b))
	}
	return ID{
		Addr:  binpkg.Uint(binary.LittleEndian, b[:offsetSize]),
		Index: binary.LittleEndian.Uint32(b[offsetSize:]),
	}, nil
}

// Collection is a decoded global heap collection.
type Collection struct {
	Addr    uint64
	objects map[uint16][]byte
}

// objectHeader is index, reference count and reserved word; the object
// size follows.
const objectHeader = 8

// ReadCollection reads the collection at addr.
func ReadCollection(r *binpkg.Reader, addr uint64) (*Collection, error) {
	if addr == 0 || r.IsUndefinedOffset(addr) {
		return nil, fmt.Errorf("no global heap at 0x%x", addr)
	}
	cur := r.At(int64(addr))
	hdr, err := cur.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("global heap at 0x%x: %w", addr, err)
	}
	if string(hdr[:4]) != "GCOL" {
		return nil, fmt.Errorf("global heap at 0x%x: bad signature %q", addr, hdr[:4])
	}
	if hdr[4] != 1 {
		return nil, fmt.Errorf("global heap at 0x%x: version %d", addr, hdr[4])
	}
	size, err := cur.ReadLength()
	if err != nil {
		return nil, err
	}
	end := int64(addr) + int64(size)

	c := &Collection{Addr: addr, objects: make(map[uint16][]byte)}
	for cur.Pos()+objectHeader+int64(r.LengthSize()) <= end {
		index, err := cur.ReadUint16()
		if err != nil {
			return nil, err
		}
		// Index zero is the free-space tail.
		if index == 0 {
			break
		}
		cur.Skip(objectHeader - 2)
		n, err := cur.ReadLength()
		if err != nil {
			return nil, err
		}
		if cur.Pos()+int64(n) > end {
			return nil, fmt.Errorf("global heap at 0x%x: object %d overruns collection", addr, index)
		}
		if c.objects[index], err = cur.ReadBytes(int(n)); err != nil {
			return nil, err
		}
		cur.Skip(int64(padded(int(n)) - int(n)))
	}
	return c, nil
}

// Object returns a copy of the object with the given index.
func (c *Collection) Object(index uint16) ([]byte, error) {
	obj, ok := c.objects[index]
	if !ok {
		return nil, fmt.Errorf("global heap at 0x%x has no object %d", c.Addr, index)
	}
	return append([]byte(nil), obj...), nil
}

// Len returns the number of objects in the collection.
func (c *Collection) Len() int { return len(c.objects) }
