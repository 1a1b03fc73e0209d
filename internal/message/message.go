// Package message decodes and encodes the header messages stored in HDF5
// object headers: dataspaces, datatypes, layouts, filter pipelines,
// attributes, links and the bookkeeping messages groups carry.
package message

import (
	"errors"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

// Type is a header message type number.
type Type uint16

const (
	TypeNIL                      Type = 0x00
	TypeDataspace                Type = 0x01
	TypeLinkInfo                 Type = 0x02
	TypeDatatype                 Type = 0x03
	TypeFillValueOld             Type = 0x04
	TypeFillValue                Type = 0x05
	TypeLink                     Type = 0x06
	TypeExternalDataFiles        Type = 0x07
	TypeDataLayout               Type = 0x08
	TypeBogus                    Type = 0x09
	TypeGroupInfo                Type = 0x0a
	TypeFilterPipeline           Type = 0x0b
	TypeAttribute                Type = 0x0c
	TypeObjectComment            Type = 0x0d
	TypeObjectModTime            Type = 0x0e
	TypeSharedMessageTable       Type = 0x0f
	TypeObjectHeaderContinuation Type = 0x10
	TypeSymbolTable              Type = 0x11
	TypeObjectModTimeOld         Type = 0x12
	TypeBTreeKValues             Type = 0x13
	TypeDriverInfo               Type = 0x14
	TypeAttributeInfo            Type = 0x15
	TypeObjectRefCount           Type = 0x16
)

// ErrUnsupportedLayout is returned for layouts the reader cannot handle.
var ErrUnsupportedLayout = errors.New("unsupported data layout")

// Message is one decoded header message.
type Message interface {
	Type() Type
}

// Parse decodes the body of a message of type t. Types without a decoder
// come back as *Unknown.
func Parse(t Type, data []byte, cfg binpkg.Config) (Message, error) {
	c := newCursor(t.name(), data, cfg)
	var m Message
	switch t {
	case TypeDataspace:
		m = parseDataspace(c)
	case TypeDatatype:
		m = parseDatatype(c)
	case TypeDataLayout:
		m = parseDataLayout(c)
	case TypeFilterPipeline:
		m = parseFilterPipeline(c)
	case TypeFillValue:
		m = parseFillValue(c)
	case TypeAttribute:
		m = parseAttribute(c)
	case TypeLink:
		m = parseLink(c)
	case TypeLinkInfo:
		m = parseLinkInfo(c)
	case TypeGroupInfo:
		m = parseGroupInfo(c)
	case TypeSymbolTable:
		m = &SymbolTable{BTreeAddress: c.offset(), LocalHeapAddress: c.offset()}
	case TypeObjectHeaderContinuation:
		m = &Continuation{Offset: c.offset(), Length: c.length()}
	default:
		return &Unknown{typ: t, data: data}, nil
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

func (t Type) name() string {
	switch t {
	case TypeDataspace:
		return "dataspace"
	case TypeDatatype:
		return "datatype"
	case TypeDataLayout:
		return "data layout"
	case TypeFilterPipeline:
		return "filter pipeline"
	case TypeFillValue:
		return "fill value"
	case TypeAttribute:
		return "attribute"
	case TypeLink:
		return "link"
	case TypeLinkInfo:
		return "link info"
	case TypeGroupInfo:
		return "group info"
	case TypeSymbolTable:
		return "symbol table"
	case TypeObjectHeaderContinuation:
		return "continuation"
	}
	return "message"
}

// Unknown keeps the raw body of a message type without a decoder.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at the next block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

// SymbolTable points an old-style group at its B-tree and local heap.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }
