package filter

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/message"
)

func pipeline(t *testing.T, filters ...message.FilterInfo) *Pipeline {
	t.Helper()
	p, err := NewPipeline(message.NewFilterPipeline(filters...))
	require.NoError(t, err)
	return p
}

var (
	shuffle4 = message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{4}}
	deflate1 = message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{1}}
	fletcher = message.FilterInfo{ID: message.FilterFletcher32}
)

func counters(n int) []byte {
	b := make([]byte, 0, 8*n)
	for i := 0; i < n; i++ {
		b = binary.LittleEndian.AppendUint64(b, uint64(i*i))
	}
	return b
}

func TestPipelineRoundTrip(t *testing.T) {
	p := pipeline(t, message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{8}}, deflate1, fletcher)
	assert.Equal(t, 3, p.Len())

	in := counters(500)
	enc, err := p.Encode(in)
	require.NoError(t, err)
	assert.Less(t, len(enc), len(in))

	out, err := p.Decode(enc, 0)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestShuffleLayout(t *testing.T) {
	p := pipeline(t, shuffle4)
	in := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
		0xaa, 0xbb,
	}
	want := []byte{
		0x01, 0x11, 0x21,
		0x02, 0x12, 0x22,
		0x03, 0x13, 0x23,
		0x04, 0x14, 0x24,
		0xaa, 0xbb,
	}
	enc, err := p.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, want, enc)

	dec, err := p.Decode(want, 0)
	require.NoError(t, err)
	assert.Equal(t, in, dec)

	// Fewer bytes than one element pass through.
	dec, err = p.Decode([]byte{1, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, dec)
}

func TestSetElementSize(t *testing.T) {
	p := pipeline(t, message.FilterInfo{ID: message.FilterShuffle})
	in := []byte{1, 2, 3, 4, 5, 6}
	enc, err := p.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, in, enc)

	p.SetElementSize(2)
	enc, err = p.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3, 5, 2, 4, 6}, enc)

	// Client data wins over the datatype size.
	q := pipeline(t, shuffle4)
	q.SetElementSize(2)
	enc, err = q.Encode([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 5, 2, 6, 3, 7, 4, 8}, enc)
}

func TestDecodeMask(t *testing.T) {
	p := pipeline(t, shuffle4, deflate1)
	in := counters(16)
	shuffled, err := pipeline(t, shuffle4).Encode(in)
	require.NoError(t, err)

	// Bit 1 says this chunk skipped deflate.
	out, err := p.Decode(shuffled, 1<<1)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = p.Decode(shuffled, 0)
	assert.ErrorContains(t, err, "inflate")
}

func TestDeflateReadsZlib(t *testing.T) {
	in := []byte("zsim stats zsim stats zsim stats")
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(in)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := pipeline(t, message.FilterInfo{ID: message.FilterDeflate}).Decode(buf.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFletcher32(t *testing.T) {
	p := pipeline(t, fletcher)
	data := []byte("abcde")
	enc, err := p.Encode(data)
	require.NoError(t, err)
	assert.Equal(t, binpkg.Fletcher32(data), binary.LittleEndian.Uint32(enc[5:]))

	out, err := p.Decode(enc, 0)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	swapped := binary.LittleEndian.AppendUint32([]byte("abcde"), bits.ReverseBytes32(binpkg.Fletcher32(data)))
	out, err = p.Decode(swapped, 0)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	enc[0] ^= 0x40
	_, err = p.Decode(enc, 0)
	assert.ErrorIs(t, err, errChecksum)

	_, err = p.Decode([]byte{1, 2}, 0)
	assert.ErrorContains(t, err, "no checksum")
}

func TestUnsupportedFilters(t *testing.T) {
	p := pipeline(t, message.FilterInfo{ID: message.FilterSZIP, Flags: 1}, deflate1)
	assert.Equal(t, 1, p.Len())

	_, err := NewPipeline(message.NewFilterPipeline(message.FilterInfo{ID: message.FilterSZIP}))
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorContains(t, err, "szip")

	_, err = NewPipeline(message.NewFilterPipeline(message.FilterInfo{ID: 32000, Name: "lzf"}))
	assert.ErrorContains(t, err, "lzf (id 32000)")

	_, err = NewPipeline(message.NewFilterPipeline(message.FilterInfo{ID: 32001}))
	assert.ErrorContains(t, err, "id 32001")
}

func TestEmptyPipeline(t *testing.T) {
	p, err := NewPipeline(nil)
	require.NoError(t, err)
	assert.True(t, p.Empty())

	var zero Pipeline
	out, err := zero.Decode([]byte{9}, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, out)
}
