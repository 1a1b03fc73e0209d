package btree

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

// image is a sparse file image assembled at fixed offsets.
type image []byte

func (im *image) put(off int, b []byte) {
	if need := off + len(b); need > len(*im) {
		*im = append(*im, make([]byte, need-len(*im))...)
	}
	copy((*im)[off:], b)
}

func le64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }
func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func le16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

func bthd(typ uint8, nodeSize uint32, recSize, depth uint16, root uint64, rootRecs uint16, total uint64) []byte {
	var b []byte
	b = append(b, "BTHD"...)
	b = append(b, 0, typ)
	b = append(b, le32(nodeSize)...)
	b = append(b, le16(recSize)...)
	b = append(b, le16(depth)...)
	b = append(b, 75, 25)
	b = append(b, le64(root)...)
	b = append(b, le16(rootRecs)...)
	b = append(b, le64(total)...)
	return append(b, 0, 0, 0, 0) // checksum
}

func node(sig string, typ uint8, body ...[]byte) []byte {
	b := append([]byte(sig), 0, typ)
	for _, p := range body {
		b = append(b, p...)
	}
	return append(b, 0, 0, 0, 0)
}

func rec10(addr, scaled uint64) []byte {
	return append(le64(addr), le64(scaled)...)
}

func newReader(im image) *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(im), binpkg.DefaultConfig())
}

func offsets(entries []ChunkEntry) [][]uint64 {
	var out [][]uint64
	for _, e := range entries {
		out = append(out, e.Offset)
	}
	return out
}

func TestReadChunksV2Leaf(t *testing.T) {
	var im image
	im.put(0, bthd(BTreeV2TypeChunkNoFilter, 512, 16, 0, 100, 2, 2))
	im.put(100, node("BTLF", 10, rec10(1000, 0), rec10(2000, 1)))

	entries, err := ReadChunksV2(newReader(im), 0, []uint32{4})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, [][]uint64{{0}, {4}}, offsets(entries))
	assert.Equal(t, uint64(1000), entries[0].Address)
	assert.Equal(t, uint64(2000), entries[1].Address)
	assert.Zero(t, entries[0].Size)
}

func TestReadChunksV2InternalNode(t *testing.T) {
	// Node size 64 with 16-byte records: leaves hold 3 records (1-byte
	// counts), internal nodes hold 1 record and 2 children of 9 bytes.
	child := func(addr uint64, n uint8) []byte { return append(le64(addr), n) }

	var im image
	im.put(0, bthd(BTreeV2TypeChunkNoFilter, 64, 16, 1, 100, 1, 4))
	im.put(100, node("BTIN", 10,
		rec10(1200, 2),
		child(200, 2),
		child(300, 1),
	))
	im.put(200, node("BTLF", 10, rec10(1000, 0), rec10(1100, 1)))
	im.put(300, node("BTLF", 10, rec10(1300, 3)))

	entries, err := ReadChunksV2(newReader(im), 0, []uint32{4})
	require.NoError(t, err)
	assert.Equal(t, [][]uint64{{0}, {4}, {8}, {12}}, offsets(entries))

	var addrs []uint64
	for _, e := range entries {
		addrs = append(addrs, e.Address)
	}
	assert.Equal(t, []uint64{1000, 1100, 1200, 1300}, addrs)
}

func TestReadChunksV2Filtered(t *testing.T) {
	// address(8) size(2) mask(4) offsets(2x8)
	rec := func(addr uint64, size uint16, mask uint32, s0, s1 uint64) []byte {
		b := append(le64(addr), le16(size)...)
		b = append(b, le32(mask)...)
		b = append(b, le64(s0)...)
		return append(b, le64(s1)...)
	}

	var im image
	im.put(0, bthd(BTreeV2TypeChunkWithFilter, 512, 30, 0, 64, 2, 2))
	im.put(64, node("BTLF", 11, rec(4096, 77, 0, 0, 0), rec(8192, 99, 1, 1, 2)))

	entries, err := ReadChunksV2(newReader(im), 0, []uint32{10, 5})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ChunkEntry{Offset: []uint64{0, 0}, Size: 77, Address: 4096}, entries[0])
	assert.Equal(t, ChunkEntry{Offset: []uint64{10, 10}, Size: 99, FilterMask: 1, Address: 8192}, entries[1])
}

func TestReadChunksV2SkipsUnallocated(t *testing.T) {
	var im image
	im.put(0, bthd(BTreeV2TypeChunkNoFilter, 512, 16, 0, 100, 2, 2))
	im.put(100, node("BTLF", 10, rec10(^uint64(0), 0), rec10(2000, 1)))

	entries, err := ReadChunksV2(newReader(im), 0, []uint32{8})
	require.NoError(t, err)
	assert.Equal(t, [][]uint64{{8}}, offsets(entries))
}

func TestReadChunksV2Empty(t *testing.T) {
	var im image
	im.put(256, bthd(BTreeV2TypeChunkNoFilter, 1024, 24, 0, 0, 0, 0))

	entries, err := ReadChunksV2(newReader(im), 256, []uint32{4, 4})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadChunksV2Errors(t *testing.T) {
	header := func(typ uint8, depth uint16) []byte {
		return bthd(typ, 1024, 16, depth, 100, 1, 1)
	}
	tests := []struct {
		name    string
		build   func(im *image)
		wantErr string
	}{
		{"bad signature", func(im *image) { im.put(0, []byte("XXXX")) }, "invalid B-tree v2 signature"},
		{"bad version", func(im *image) { im.put(0, []byte("BTHD\x01")) }, "unsupported B-tree v2 version"},
		{"truncated header", func(im *image) { im.put(0, []byte("BTHD\x00\x0a")) }, "reading B-tree v2 header"},
		{"not a chunk tree", func(im *image) { im.put(0, header(5, 0)) }, "unexpected B-tree v2 type"},
		{"bad leaf", func(im *image) {
			im.put(0, header(10, 0))
			im.put(100, []byte("XXXX\x00\x0a"))
		}, "expected BTLF"},
		{"bad internal node", func(im *image) {
			im.put(0, header(10, 1))
			im.put(100, []byte("BTLF\x00\x0a"))
		}, "expected BTIN"},
		{"bad node version", func(im *image) {
			im.put(0, header(10, 0))
			im.put(100, []byte("BTLF\x05\x0a"))
		}, "unsupported B-tree v2 node version"},
		{"record too short", func(im *image) {
			im.put(0, bthd(10, 1024, 8, 0, 100, 1, 1))
			im.put(100, node("BTLF", 10, le64(1)))
		}, "too short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var im image
			tt.build(&im)
			_, err := ReadChunksV2(newReader(im), 0, []uint32{4})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEncSize(t *testing.T) {
	assert.Equal(t, 1, encSize(1))
	assert.Equal(t, 1, encSize(255))
	assert.Equal(t, 2, encSize(256))
	assert.Equal(t, 3, encSize(1<<16))
}
