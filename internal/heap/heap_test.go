package heap

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

type memFile struct{ buf []byte }

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// bump hands out addresses from 100 upwards so collections never start at
// zero.
func bump() func(int64) uint64 {
	next := uint64(100)
	return func(size int64) uint64 {
		addr := next
		next += uint64(size)
		return addr
	}
}

func TestCollectionRoundTrip(t *testing.T) {
	m := &memFile{}
	cw := NewCollectionWriter(binpkg.NewWriter(m, binpkg.DefaultConfig()), bump())
	cw.AddString("mem.ipc")
	cw.Add([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	cw.AddString("")
	require.Equal(t, 3, cw.Len())

	ids, err := cw.Write()
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for i, id := range ids {
		assert.EqualValues(t, 100, id.Addr)
		assert.EqualValues(t, i+1, id.Index)
	}

	c, err := ReadCollection(binpkg.NewReader(m, binpkg.DefaultConfig()), 100)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
	obj, err := c.Object(1)
	require.NoError(t, err)
	assert.Equal(t, "mem.ipc\x00", string(obj))
	obj, err = c.Object(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, obj)
	obj, err = c.Object(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, obj)

	_, err = c.Object(9)
	assert.Error(t, err)

	obj, _ = c.Object(1)
	obj[0] = 'X'
	again, _ := c.Object(1)
	assert.Equal(t, byte('m'), again[0])
}

func TestEmptyCollectionWritesNothing(t *testing.T) {
	m := &memFile{}
	ids, err := NewCollectionWriter(binpkg.NewWriter(m, binpkg.DefaultConfig()), bump()).Write()
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.Empty(t, m.buf)
}

func TestReadCollectionRejects(t *testing.T) {
	r := binpkg.NewReader(&memFile{buf: make([]byte, 64)}, binpkg.DefaultConfig())
	_, err := ReadCollection(r, 0)
	assert.Error(t, err)
	_, err = ReadCollection(r, binpkg.Undefined(8))
	assert.Error(t, err)
	_, err = ReadCollection(r, 8)
	assert.ErrorContains(t, err, "bad signature")
}

func TestVarLenReference(t *testing.T) {
	id := ID{Addr: 0x1234, Index: 7}
	for _, osize := range []int{4, 8} {
		b := AppendVarLen(nil, 11, id, osize)
		require.Len(t, b, 8+osize)
		assert.EqualValues(t, 11, binary.LittleEndian.Uint32(b))
		got, err := ParseID(b[4:], osize)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
	_, err := ParseID([]byte{1, 2, 3}, 8)
	assert.Error(t, err)
}

func TestLocalHeap(t *testing.T) {
	le := binary.LittleEndian
	b := []byte("HEAP\x00\x00\x00\x00")
	b = le.AppendUint64(b, 24) // segment size
	b = le.AppendUint64(b, 0)  // free list
	b = le.AppendUint64(b, 40) // segment address
	b = append(b, make([]byte, 40-len(b))...)
	b = append(b, "\x00stats\x00phase\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"...)

	h, err := ReadLocal(binpkg.NewReader(&memFile{buf: b}, binpkg.DefaultConfig()), 0)
	require.NoError(t, err)
	assert.Equal(t, "", h.Lookup(0))
	assert.Equal(t, "stats", h.Lookup(1))
	assert.Equal(t, "phase", h.Lookup(7))
	assert.Equal(t, "hase", h.Lookup(8))
	assert.Equal(t, "", h.Lookup(500))

	b[4] = 1
	_, err = ReadLocal(binpkg.NewReader(&memFile{buf: b}, binpkg.DefaultConfig()), 0)
	assert.ErrorContains(t, err, "version")
}
