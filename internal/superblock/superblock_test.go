package superblock

import (
	"bytes"
	"encoding/binary"
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

func encode(t *testing.T, sb *Superblock, at int64) []byte {
	t.Helper()
	m := &memFile{}
	n, err := sb.Write(binpkg.NewWriter(m, binpkg.DefaultConfig()).At(at))
	require.NoError(t, err)
	require.EqualValues(t, sb.Size(), n)
	return m.buf
}

func TestWriteRead(t *testing.T) {
	for _, osize := range []uint8{4, 8} {
		sb := New()
		sb.OffsetSize = osize
		sb.RootGroupAddress = 96
		sb.EOFAddress = 4096

		got, err := Read(bytes.NewReader(encode(t, sb, 0)))
		require.NoError(t, err)
		assert.EqualValues(t, 3, got.Version)
		assert.Equal(t, osize, got.OffsetSize)
		assert.EqualValues(t, 8, got.LengthSize)
		assert.EqualValues(t, 96, got.RootGroupAddress)
		assert.EqualValues(t, 4096, got.EOFAddress)
		assert.Equal(t, binpkg.Undefined(int(osize)), got.ExtensionAddress)
		assert.Zero(t, got.Location)
		assert.Equal(t, int(osize), got.ReaderConfig().OffsetSize)
	}
}

func TestReadAfterUserBlock(t *testing.T) {
	sb := New()
	sb.RootGroupAddress = 600
	data := encode(t, sb, 512)

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, 512, got.Location)
	assert.EqualValues(t, 600, got.RootGroupAddress)
}

func TestReadRejects(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("just some text, not a file header")))
	assert.ErrorIs(t, err, ErrNotHDF5)

	_, err = Read(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrNotHDF5)

	data := encode(t, New(), 0)
	data[8] = 7
	_, err = Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	data = encode(t, New(), 0)
	data[20] ^= 0xff
	_, err = Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidSuperblock)
	assert.ErrorContains(t, err, "checksum")

	data = encode(t, New(), 0)
	data[9] = 3
	_, err = Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidSuperblock)

	data = encode(t, New(), 0)
	_, err = Read(bytes.NewReader(data[:20]))
	assert.ErrorIs(t, err, ErrInvalidSuperblock)
}

// v0Block lays out a version 0 or 1 superblock with four byte offsets.
func v0Block(version uint8) []byte {
	le := binary.LittleEndian
	b := append([]byte{}, Signature...)
	b = append(b, version, 0, 0, 0, 0, 4, 8, 0)
	b = le.AppendUint16(b, 4)  // leaf K
	b = le.AppendUint16(b, 16) // internal K
	b = le.AppendUint32(b, 0)
	if version == 1 {
		b = le.AppendUint16(b, 32)
		b = append(b, 0, 0)
	}
	for _, addr := range []uint32{0, 0xffffffff, 2048, 0xffffffff} {
		b = le.AppendUint32(b, addr)
	}
	b = le.AppendUint32(b, 0)   // link name offset
	b = le.AppendUint32(b, 96)  // object header
	b = le.AppendUint32(b, 1)   // cache type
	b = le.AppendUint32(b, 0)   // reserved
	b = le.AppendUint32(b, 136) // B-tree
	b = le.AppendUint32(b, 680) // local heap
	return append(b, make([]byte, 8)...)
}

func TestReadV0V1(t *testing.T) {
	for _, version := range []uint8{0, 1} {
		got, err := Read(bytes.NewReader(v0Block(version)))
		require.NoError(t, err, "version %d", version)
		assert.Equal(t, version, got.Version)
		assert.EqualValues(t, 4, got.OffsetSize)
		assert.EqualValues(t, 8, got.LengthSize)
		assert.EqualValues(t, 4, got.GroupLeafK)
		assert.EqualValues(t, 16, got.GroupInternalK)
		assert.EqualValues(t, 2048, got.EOFAddress)
		assert.EqualValues(t, 96, got.RootGroupAddress)
		assert.EqualValues(t, 136, got.RootGroupBTreeAddress)
		assert.EqualValues(t, 680, got.RootGroupLocalHeapAddress)
		if version == 1 {
			assert.EqualValues(t, 32, got.IndexedStorageK)
		}
	}
}
