package object

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Version 1 prefix: version, reserved, message count, reference count and
// the size of the first block, padded to sixteen bytes.
const v1Prefix = 16

func (h *Header) readV1(r *binpkg.Reader, addr uint64) ([]rawMessage, error) {
	hr := r.At(int64(addr))
	prefix, err := hr.ReadBytes(v1Prefix)
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	h.Version = 1
	h.RefCount = binary.LittleEndian.Uint32(prefix[4:])
	size := binary.LittleEndian.Uint32(prefix[8:])
	block, err := hr.ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	raws, err := splitV1(block)
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	return raws, nil
}

// splitV1 cuts a version 1 block into messages: type, size, flags, three
// reserved bytes, then a body already padded to eight bytes.
func splitV1(block []byte) ([]rawMessage, error) {
	var out []rawMessage
	for off := 0; off+8 <= len(block); {
		typ := message.Type(binary.LittleEndian.Uint16(block[off:]))
		n := int(binary.LittleEndian.Uint16(block[off+2:]))
		off += 8
		if off+n > len(block) {
			return nil, fmt.Errorf("%w: message %#x of %d bytes overruns its block", ErrInvalidHeader, uint16(typ), n)
		}
		if typ != message.TypeNIL {
			out = append(out, rawMessage{typ: typ, body: block[off : off+n]})
		}
		off += n
	}
	return out, nil
}

// Version 2 header flags.
const (
	flagSizeWidth   = 0x03
	flagTrackOrder  = 0x04
	flagPhaseChange = 0x10
	flagTimes       = 0x20
)

func (h *Header) readV2(r *binpkg.Reader, addr uint64) ([]rawMessage, error) {
	hr := r.At(int64(addr))
	fixed, err := hr.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	h.Version, h.Flags = fixed[4], fixed[5]
	if h.Version != 2 {
		return nil, fmt.Errorf("%w at %#x: OHDR version %d", ErrInvalidHeader, addr, h.Version)
	}
	if h.Flags&flagTimes != 0 {
		// access, modification, change and birth
		times, err := hr.ReadBytes(16)
		if err != nil {
			return nil, fmt.Errorf("object header at %#x: %w", addr, err)
		}
		h.ModTime = binary.LittleEndian.Uint32(times[4:])
	}
	if h.Flags&flagPhaseChange != 0 {
		hr.Skip(4)
	}
	size, err := hr.ReadUintN(1 << (h.Flags & flagSizeWidth))
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}

	prefix := int(hr.Pos() - int64(addr))
	block, err := r.At(int64(addr)).ReadBytes(prefix + int(size) + 4)
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	if err := verify(block); err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	raws, err := h.splitV2(block[prefix : len(block)-4])
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	return raws, nil
}

// splitV2 cuts version 2 message data into messages: type, size, flags and
// an optional creation order ahead of each body. A tail shorter than a
// message prefix is a gap.
func (h *Header) splitV2(data []byte) ([]rawMessage, error) {
	head := 4
	if h.Flags&flagTrackOrder != 0 {
		head += 2
	}
	var out []rawMessage
	for off := 0; off+head <= len(data); {
		typ := message.Type(data[off])
		n := int(binary.LittleEndian.Uint16(data[off+1:]))
		off += head
		if off+n > len(data) {
			return nil, fmt.Errorf("%w: message %#x of %d bytes overruns its block", ErrInvalidHeader, uint16(typ), n)
		}
		if typ != message.TypeNIL {
			out = append(out, rawMessage{typ: typ, body: data[off : off+n]})
		}
		off += n
	}
	return out, nil
}
