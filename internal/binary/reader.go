package binary

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader is a cursor over an io.ReaderAt. Readers derived with At share
// the source and are safe to use from different goroutines.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

func NewReader(src io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: src, cfg: cfg}
}

// At returns a reader over the same source positioned at off.
func (r *Reader) At(off int64) *Reader {
	return &Reader{src: r.src, cfg: r.cfg, pos: off}
}

func (r *Reader) Pos() int64                  { return r.pos }
func (r *Reader) Skip(n int64)                { r.pos += n }
func (r *Reader) Align(n int64)               { r.pos = alignUp(r.pos, n) }
func (r *Reader) OffsetSize() int             { return r.cfg.OffsetSize }
func (r *Reader) LengthSize() int             { return r.cfg.LengthSize }
func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }

// ReadBytes reads n bytes and advances past them.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.Peek(n)
	if err == nil {
		r.pos += int64(n)
	}
	return b, err
}

// Peek reads n bytes without moving.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	b := make([]byte, n)
	got, err := r.src.ReadAt(b, r.pos)
	if got == n {
		return b, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("reading %d bytes at %d: %w", n, r.pos, err)
}

// ReadUintN reads an n-byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return Uint(r.cfg.ByteOrder, b), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) { return r.ReadUintN(8) }

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) { return r.ReadUintN(r.cfg.OffsetSize) }

// ReadLength reads a length field.
func (r *Reader) ReadLength() (uint64, error) { return r.ReadUintN(r.cfg.LengthSize) }

// IsUndefinedOffset reports whether addr is the unallocated address.
func (r *Reader) IsUndefinedOffset(addr uint64) bool {
	return addr == Undefined(r.cfg.OffsetSize)
}

// Config returns the widths r decodes with.
func (r *Reader) Config() Config { return r.cfg }
