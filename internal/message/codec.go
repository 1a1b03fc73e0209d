package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

// cursor walks a message body. The first short read sticks in err and every
// later read returns zero.
type cursor struct {
	data []byte
	off  int
	cfg  binpkg.Config
	what string
	err  error
}

func newCursor(what string, data []byte, cfg binpkg.Config) *cursor {
	return &cursor{data: data, cfg: cfg, what: what}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.data) {
		c.err = fmt.Errorf("%s truncated at byte %d: need %d of %d", c.what, c.off, n, len(c.data))
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) skip(n int) { c.take(n) }

// align skips to the next multiple of n from the start of the body.
func (c *cursor) align(n int) {
	if r := c.off % n; r != 0 && c.off < len(c.data) {
		c.skip(min(n-r, len(c.data)-c.off))
	}
}

func (c *cursor) u8() uint8 {
	if b := c.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (c *cursor) u16() uint16 { return uint16(c.uintN(2)) }
func (c *cursor) u32() uint32 { return uint32(c.uintN(4)) }
func (c *cursor) u64() uint64 { return c.uintN(8) }

func (c *cursor) uintN(n int) uint64 {
	if b := c.take(n); b != nil {
		return binpkg.Uint(binary.LittleEndian, b)
	}
	return 0
}

func (c *cursor) offset() uint64 { return c.uintN(c.cfg.OffsetSize) }
func (c *cursor) length() uint64 { return c.uintN(c.cfg.LengthSize) }

// name reads a field of n bytes and returns it up to the first NUL.
func (c *cursor) name(n int) string {
	b := c.take(n)
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// cstring reads through the next NUL.
func (c *cursor) cstring() string {
	if c.err != nil {
		return ""
	}
	for i := c.off; i < len(c.data); i++ {
		if c.data[i] == 0 {
			s := string(c.data[c.off:i])
			c.off = i + 1
			return s
		}
	}
	c.err = fmt.Errorf("%s: unterminated name at byte %d", c.what, c.off)
	return ""
}

func (c *cursor) rest() []byte {
	if c.err != nil {
		return nil
	}
	b := c.data[c.off:]
	c.off = len(c.data)
	return b
}

func (c *cursor) remaining() int { return len(c.data) - c.off }

// encoder appends a message body.
type encoder struct {
	b   []byte
	cfg binpkg.Config
}

func (e *encoder) u8(v ...uint8) { e.b = append(e.b, v...) }
func (e *encoder) u16(v uint16)  { e.b = binary.LittleEndian.AppendUint16(e.b, v) }
func (e *encoder) u32(v uint32)  { e.b = binary.LittleEndian.AppendUint32(e.b, v) }
func (e *encoder) u64(v uint64)  { e.b = binary.LittleEndian.AppendUint64(e.b, v) }

func (e *encoder) uintN(v uint64, n int) {
	at := len(e.b)
	e.b = append(e.b, make([]byte, n)...)
	binpkg.PutUint(binary.LittleEndian, e.b[at:], v)
}

func (e *encoder) offset(v uint64) { e.uintN(v, e.cfg.OffsetSize) }
func (e *encoder) length(v uint64) { e.uintN(v, e.cfg.LengthSize) }
func (e *encoder) raw(b []byte)    { e.b = append(e.b, b...) }

func (e *encoder) cstring(s string) {
	e.b = append(e.b, s...)
	e.b = append(e.b, 0)
}

// encodable messages can be written into an object header.
type encodable interface {
	Message
	encode(e *encoder) error
}

// CanEncode reports whether Encode accepts m.
func CanEncode(m Message) bool {
	_, ok := m.(encodable)
	return ok
}

// Encode returns the body of m as stored in an object header.
func Encode(m Message, cfg binpkg.Config) ([]byte, error) {
	em, ok := m.(encodable)
	if !ok {
		return nil, fmt.Errorf("message type %#04x cannot be written", uint16(m.Type()))
	}
	e := &encoder{cfg: cfg}
	if err := em.encode(e); err != nil {
		return nil, err
	}
	return e.b, nil
}
