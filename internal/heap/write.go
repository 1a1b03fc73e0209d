package heap

import (
	"encoding/binary"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

// CollectionWriter queues objects and writes them as one collection.
type CollectionWriter struct {
	w        *binpkg.Writer
	allocate func(size int64) uint64
	objects  [][]byte
}

// NewCollectionWriter places its collection with allocate.
func NewCollectionWriter(w *binpkg.Writer, allocate func(size int64) uint64) *CollectionWriter {
	return &CollectionWriter{w: w, allocate: allocate}
}

// Add queues obj and returns its index, counting from one.
func (cw *CollectionWriter) Add(obj []byte) uint16 {
	cw.objects = append(cw.objects, obj)
	return uint16(len(cw.objects))
}

// AddString queues s with a NUL terminator.
func (cw *CollectionWriter) AddString(s string) uint16 {
	return cw.Add(append([]byte(s), 0))
}

func (cw *CollectionWriter) Len() int { return len(cw.objects) }

func padded(n int) int { return (n + 7) &^ 7 }

// Write stores the queued objects and returns their IDs in queue order. An
// empty writer writes nothing.
func (cw *CollectionWriter) Write() ([]ID, error) {
	if len(cw.objects) == 0 {
		return nil, nil
	}
	lsize := cw.w.LengthSize()
	hdr := objectHeader + lsize

	// Header, objects, then a zeroed free-space record.
	size := hdr
	for _, obj := range cw.objects {
		size += hdr + padded(len(obj))
	}
	size = padded(size + hdr)

	addr := cw.allocate(int64(size))
	buf := make([]byte, size)
	copy(buf, "GCOL\x01")
	binpkg.PutUint(binary.LittleEndian, buf[8:8+lsize], uint64(size))

	ids := make([]ID, len(cw.objects))
	pos := hdr
	for i, obj := range cw.objects {
		index := uint16(i + 1)
		binary.LittleEndian.PutUint16(buf[pos:], index)
		binary.LittleEndian.PutUint16(buf[pos+2:], 1)
		binpkg.PutUint(binary.LittleEndian, buf[pos+objectHeader:pos+hdr], uint64(len(obj)))
		copy(buf[pos+hdr:], obj)
		pos += hdr + padded(len(obj))
		ids[i] = ID{Addr: addr, Index: uint32(index)}
	}
	if err := cw.w.At(int64(addr)).WriteBytes(buf); err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendVarLen appends a variable-length element as stored in a dataset:
// its element count then the heap ID of its body.
func AppendVarLen(b []byte, count uint32, id ID, offsetSize int) []byte {
	b = binary.LittleEndian.AppendUint32(b, count)
	addr := make([]byte, offsetSize)
	binpkg.PutUint(binary.LittleEndian, addr, id.Addr)
	b = append(b, addr...)
	return binary.LittleEndian.AppendUint32(b, id.Index)
}
