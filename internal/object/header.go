// Package object reads and writes HDF5 object headers, the message lists
// behind every group and dataset.
//
// Version 1 headers are a fixed prefix and eight-byte aligned messages.
// Version 2 headers start with "OHDR", carry compact message prefixes and
// end each block with a lookup3 checksum. Both may continue in further
// blocks named by continuation messages.
package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/message"
)

var (
	magicHeader       = []byte("OHDR")
	magicContinuation = []byte("OCHK")
)

var (
	ErrInvalidHeader = errors.New("invalid object header")
	ErrChecksum      = errors.New("object header checksum mismatch")
)

// A header spread over more blocks than this is treated as corrupt.
const maxBlocks = 4096

// Header is a decoded object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32
	// ModTime is set when a version 2 header stores times.
	ModTime  uint32
	Messages []message.Message
}

// Find returns the first message of type t, or nil.
func (h *Header) Find(t message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == t {
			return m
		}
	}
	return nil
}

// FindAll returns every message of type t in header order.
func (h *Header) FindAll(t message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

func first[M message.Message](h *Header, t message.Type) M {
	m, _ := h.Find(t).(M)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return first[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return first[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) Layout() *message.DataLayout {
	return first[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) Filters() *message.FilterPipeline {
	return first[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

// rawMessage is a message body before decoding.
type rawMessage struct {
	typ  message.Type
	body []byte
}

// Read decodes the object header at addr, following continuation blocks.
func Read(r *binpkg.Reader, addr uint64) (*Header, error) {
	head, err := r.At(int64(addr)).Peek(4)
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	h := &Header{Address: addr}
	var raws []rawMessage
	var next []*message.Continuation
	switch {
	case bytes.Equal(head, magicHeader):
		raws, err = h.readV2(r, addr)
	case head[0] == 1:
		raws, err = h.readV1(r, addr)
	default:
		return nil, fmt.Errorf("%w at %#x: unrecognised prefix % x", ErrInvalidHeader, addr, head)
	}
	if err != nil {
		return nil, err
	}

	for blocks := 1; ; blocks++ {
		for _, raw := range raws {
			m, err := message.Parse(raw.typ, raw.body, r.Config())
			if err != nil {
				return nil, fmt.Errorf("object header at %#x: %w", addr, err)
			}
			if c, ok := m.(*message.Continuation); ok {
				next = append(next, c)
				continue
			}
			h.Messages = append(h.Messages, m)
		}
		if len(next) == 0 {
			return h, nil
		}
		if blocks >= maxBlocks {
			return nil, fmt.Errorf("%w at %#x: more than %d continuation blocks", ErrInvalidHeader, addr, maxBlocks)
		}
		c := next[0]
		next = next[1:]
		if raws, err = h.readContinuation(r, c); err != nil {
			return nil, fmt.Errorf("object header at %#x: %w", addr, err)
		}
	}
}

func (h *Header) readContinuation(r *binpkg.Reader, c *message.Continuation) ([]rawMessage, error) {
	block, err := r.At(int64(c.Offset)).ReadBytes(int(c.Length))
	if err != nil {
		return nil, fmt.Errorf("continuation block at %#x: %w", c.Offset, err)
	}
	if h.Version == 1 {
		return splitV1(block)
	}
	if len(block) < 8 || !bytes.Equal(block[:4], magicContinuation) {
		return nil, fmt.Errorf("%w: continuation block at %#x has no OCHK signature", ErrInvalidHeader, c.Offset)
	}
	if err := verify(block); err != nil {
		return nil, fmt.Errorf("continuation block at %#x: %w", c.Offset, err)
	}
	return h.splitV2(block[4 : len(block)-4])
}

// verify checks the trailing lookup3 checksum of a version 2 block.
func verify(block []byte) error {
	n := len(block) - 4
	stored := binary.LittleEndian.Uint32(block[n:])
	if sum := binpkg.Lookup3Checksum(block[:n]); sum != stored {
		return fmt.Errorf("%w: computed %#08x, stored %#08x", ErrChecksum, sum, stored)
	}
	return nil
}
