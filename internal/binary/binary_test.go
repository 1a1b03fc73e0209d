package binary

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buffer is an in-memory io.WriterAt and io.ReaderAt.
type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	return copy(m.b[off:], p), nil
}

func (m *buffer) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(m.b).ReadAt(p, off)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig(),
		{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 2},
		{ByteOrder: binary.BigEndian, OffsetSize: 3, LengthSize: 8},
	} {
		var buf buffer
		w := NewWriter(&buf, cfg)
		require.NoError(t, w.WriteBytes([]byte("TREE")))
		require.NoError(t, w.WriteUint8(7))
		require.NoError(t, w.WriteUint16(0xbeef))
		require.NoError(t, w.WriteUint32(0xdeadbeef))
		require.NoError(t, w.WriteUint64(1<<40+5))
		require.NoError(t, w.WriteOffset(0x1234))
		require.NoError(t, w.WriteLength(0x56))
		require.NoError(t, w.WriteOffset(w.UndefinedOffset()))
		end := w.Pos()
		assert.Equal(t, int64(4+1+2+4+8+2*cfg.OffsetSize+cfg.LengthSize), end)

		r := NewReader(&buf, cfg)
		sig, err := r.ReadBytes(4)
		require.NoError(t, err)
		assert.Equal(t, "TREE", string(sig))
		u8, _ := r.ReadUint8()
		u16, _ := r.ReadUint16()
		u32, _ := r.ReadUint32()
		u64, _ := r.ReadUint64()
		off, _ := r.ReadOffset()
		length, _ := r.ReadLength()
		undef, err := r.ReadOffset()
		require.NoError(t, err)
		assert.Equal(t, []uint64{7, 0xbeef, 0xdeadbeef, 1<<40 + 5, 0x1234, 0x56},
			[]uint64{uint64(u8), uint64(u16), uint64(u32), u64, off, length})
		assert.True(t, r.IsUndefinedOffset(undef))
		assert.False(t, r.IsUndefinedOffset(off))
		assert.Equal(t, end, r.Pos())
	}
}

func TestReaderCursor(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}), DefaultConfig())

	p, err := r.Peek(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, p)
	assert.Zero(t, r.Pos())

	r.Skip(3)
	r.Align(4)
	assert.Equal(t, int64(4), r.Pos())
	r.Align(4)
	assert.Equal(t, int64(4), r.Pos())

	other := r.At(8)
	b, err := other.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 10}, b)
	assert.Equal(t, int64(4), r.Pos(), "At must not move the parent")

	_, err = other.ReadBytes(1)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	_, err = r.At(8).ReadUint32()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestUintWidths(t *testing.T) {
	assert.Equal(t, uint64(0xffffff), Undefined(3))
	assert.Equal(t, ^uint64(0), Undefined(8))
	assert.Equal(t, uint64(0x030201), Uint(binary.LittleEndian, []byte{1, 2, 3}))
	assert.Equal(t, uint64(0x010203), Uint(binary.BigEndian, []byte{1, 2, 3}))

	b := make([]byte, 5)
	PutUint(binary.BigEndian, b, 0x0102030405)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b)
	PutUint(binary.LittleEndian, b, 0x0102030405)
	assert.Equal(t, []byte{5, 4, 3, 2, 1}, b)
}

func TestLookup3Checksum(t *testing.T) {
	seq := make([]byte, 40)
	for i := range seq {
		seq[i] = byte(i)
	}
	tests := []struct {
		in   []byte
		want uint32
	}{
		{nil, 0xdeadbeef},
		{[]byte("Four score and seven years ago"), 0x17770551},
		{[]byte("OHDR"), 0x33bd5d0a},
		{seq, 0x1c9fa888},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Lookup3Checksum(tt.in), "%q", tt.in)
	}
}

func TestFletcher32(t *testing.T) {
	long := bytes.Repeat(func() []byte {
		b := make([]byte, 256)
		for i := range b {
			b[i] = byte(i)
		}
		return b
	}(), 4)
	tests := []struct {
		in   []byte
		want uint32
	}{
		{nil, 0},
		{[]byte("a"), 0x61006100},
		{[]byte("ab"), 0x61626162},
		{[]byte("abcde"), 0x4ff029c7},
		{long, 0x151600ff}, // more than one 360-word block
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fletcher32(tt.in), "len %d", len(tt.in))
	}
}
