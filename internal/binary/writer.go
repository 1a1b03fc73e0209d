package binary

import (
	"encoding/binary"
	"io"
)

// Writer is the write-side counterpart of Reader.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

func NewWriter(dst io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: dst, cfg: cfg}
}

// At returns a writer over the same destination positioned at off.
func (w *Writer) At(off int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: off}
}

func (w *Writer) Pos() int64                  { return w.pos }
func (w *Writer) OffsetSize() int             { return w.cfg.OffsetSize }
func (w *Writer) LengthSize() int             { return w.cfg.LengthSize }
func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }

// UndefinedOffset is the unallocated address for this file.
func (w *Writer) UndefinedOffset() uint64 { return Undefined(w.cfg.OffsetSize) }

// WriteBytes writes b and advances past it.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(b, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUintN writes v in n bytes.
func (w *Writer) WriteUintN(v uint64, n int) error {
	b := make([]byte, n)
	PutUint(w.cfg.ByteOrder, b, v)
	return w.WriteBytes(b)
}

func (w *Writer) WriteUint8(v uint8) error   { return w.WriteUintN(uint64(v), 1) }
func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }
func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }
func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteOffset writes a file address.
func (w *Writer) WriteOffset(v uint64) error { return w.WriteUintN(v, w.cfg.OffsetSize) }

// WriteLength writes a length field.
func (w *Writer) WriteLength(v uint64) error { return w.WriteUintN(v, w.cfg.LengthSize) }

// Config returns the widths and byte order the writer encodes with.
func (w *Writer) Config() Config { return w.cfg }
