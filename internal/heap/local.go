// Package heap reads HDF5 local heaps, which hold link names for old-style
// groups, and reads and writes global heap collections, which hold the
// bodies of variable-length elements.
package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/binary"
)

// Local is a local heap data segment.
type Local struct {
	data []byte
}

// ReadLocal reads the local heap whose header is at addr.
func ReadLocal(r *binary.Reader, addr uint64) (*Local, error) {
	cur := r.At(int64(addr))
	hdr, err := cur.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("local heap at 0x%x: %w", addr, err)
	}
	if string(hdr[:4]) != "HEAP" {
		return nil, fmt.Errorf("local heap at 0x%x: bad signature %q", addr, hdr[:4])
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("local heap at 0x%x: version %d", addr, hdr[4])
	}
	size, err := cur.ReadLength()
	if err != nil {
		return nil, err
	}
	cur.Skip(int64(r.LengthSize())) // free list head
	segment, err := cur.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(segment)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap segment at 0x%x: %w", segment, err)
	}
	return &Local{data: data}, nil
}

// Lookup returns the NUL-terminated string at off, or "" past the end.
func (h *Local) Lookup(off uint64) string {
	if off >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
