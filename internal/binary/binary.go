// Package binary reads and writes the fixed and variable-width integer
// fields of the HDF5 on-disk format.
package binary

import (
	"encoding/binary"
)

// Config gives the byte order and the widths of file addresses and
// lengths, both taken from the superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is used to read the superblock itself.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// Undefined returns the all-ones address HDF5 uses for "not allocated"
// in a field of size bytes.
func Undefined(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(size)) - 1
}

// Uint decodes b as an unsigned integer of len(b) bytes.
func Uint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	var v uint64
	if order == binary.BigEndian {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v
	}
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// PutUint encodes v into all of b.
func PutUint(order binary.ByteOrder, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	case 8:
		order.PutUint64(b, v)
	default:
		n := len(b)
		for i := range b {
			if order == binary.BigEndian {
				b[n-1-i] = byte(v >> (8 * i))
			} else {
				b[i] = byte(v >> (8 * i))
			}
		}
	}
}

func alignUp(pos, n int64) int64 {
	if n <= 1 {
		return pos
	}
	return (pos + n - 1) / n * n
}
