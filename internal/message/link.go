package message

import (
	"fmt"
	"math/bits"
)

// LinkType distinguishes hard, soft and external links.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link names a child of a new-style group.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       uint8

	ObjectAddress uint64
	SoftLinkValue string
	ExternalFile  string
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

// Link flag bits; the low two give the width of the name length.
const (
	linkHasOrder   = 0x04
	linkHasType    = 0x08
	linkHasCharset = 0x10
)

func parseLink(c *cursor) *Link {
	l := &Link{Version: c.u8()}
	flags := c.u8()
	if flags&linkHasType != 0 {
		l.LinkType = LinkType(c.u8())
	}
	if flags&linkHasOrder != 0 {
		l.CreationOrder = c.u64()
	}
	if flags&linkHasCharset != 0 {
		l.Charset = c.u8()
	}
	n := int(c.uintN(1 << (flags & 0x03)))
	l.Name = string(c.take(n))

	switch l.LinkType {
	case LinkTypeHard:
		l.ObjectAddress = c.offset()
	case LinkTypeSoft:
		l.SoftLinkValue = string(c.take(int(c.u16())))
	case LinkTypeExternal:
		ext := newCursor("external link", c.take(int(c.u16())), c.cfg)
		ext.skip(1) // version and flags
		l.ExternalFile = ext.cstring()
		l.ExternalPath = ext.cstring()
		if ext.err != nil && c.err == nil {
			c.err = ext.err
		}
	default:
		c.err = fmt.Errorf("link %q: unknown type %d", l.Name, l.LinkType)
	}
	return l
}

// encode writes version 1 without creation order or charset.
func (m *Link) encode(e *encoder) error {
	// Flag bits 0-1 hold log2 of the name length width.
	width := 0
	if n := len(m.Name); n > 0xff {
		width = bits.Len(uint((bits.Len(uint(n)) - 1) / 8))
	}
	flags := uint8(width)
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}
	e.u8(1, flags)
	if m.LinkType != LinkTypeHard {
		e.u8(uint8(m.LinkType))
	}
	e.uintN(uint64(len(m.Name)), 1<<width)
	e.raw([]byte(m.Name))

	switch m.LinkType {
	case LinkTypeHard:
		e.offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.raw([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		e.u16(uint16(len(m.ExternalFile) + len(m.ExternalPath) + 3))
		e.u8(0)
		e.cstring(m.ExternalFile)
		e.cstring(m.ExternalPath)
	default:
		return fmt.Errorf("link %q: unknown type %d", m.Name, m.LinkType)
	}
	return nil
}

func NewHardLink(name string, addr uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

func NewSoftLink(name, target string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

func NewExternalLink(name, file, path string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeExternal, Name: name, ExternalFile: file, ExternalPath: path}
}
