package message

import (
	"fmt"
	"math/bits"
	"strings"
)

// DatatypeClass is the class nibble of a datatype message.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = iota
	ClassFloatPoint
	ClassTime
	ClassString
	ClassBitfield
	ClassOpaque
	ClassCompound
	ClassReference
	ClassEnum
	ClassVarLen
	ClassArray
)

var classNames = [...]string{
	"integer", "float", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "vlen", "array",
}

func (c DatatypeClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// ByteOrder of a numeric type.
type ByteOrder uint8

const (
	OrderLE ByteOrder = iota
	OrderBE
	OrderVAX
	OrderNone
)

// StringPadding says how a fixed string fills its width.
type StringPadding uint8

const (
	PadNullTerm StringPadding = iota
	PadNullPad
	PadSpacePad
)

type CharacterSet uint8

const (
	CharsetASCII CharacterSet = iota
	CharsetUTF8
)

// Datatype describes the element type of a dataset or attribute.
type Datatype struct {
	Class     DatatypeClass
	Version   uint8
	ClassBits uint32
	Size      uint32
	ByteOrder ByteOrder

	// Integer and bitfield bit layout.
	BitOffset    uint16
	BitPrecision uint16
	Signed       bool

	StringPadding StringPadding
	CharSet       CharacterSet

	Members []CompoundMember

	// ArrayDims and BaseType describe arrays; enums use BaseType too.
	ArrayDims []uint32
	BaseType  *Datatype

	EnumNames  []string
	EnumValues [][]byte

	VarLenType     *Datatype
	IsVarLenString bool

	// Properties holds the raw float bit layout or the opaque tag.
	Properties []byte
}

// CompoundMember is one named field of a compound type.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) IsCompound() bool { return m.Class == ClassCompound }
func (m *Datatype) IsArray() bool    { return m.Class == ClassArray }

// IsString covers fixed and variable-length strings.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

// Member looks up a compound member by name.
func (m *Datatype) Member(name string) (CompoundMember, bool) {
	for _, mem := range m.Members {
		if mem.Name == name {
			return mem, true
		}
	}
	return CompoundMember{}, false
}

// String is a short numpy-like spelling such as "<u8", "[4]<u8" or
// "compound(3)".
func (m *Datatype) String() string {
	order := "<"
	if m.ByteOrder == OrderBE {
		order = ">"
	}
	switch m.Class {
	case ClassFixedPoint:
		kind := "u"
		if m.Signed {
			kind = "i"
		}
		return fmt.Sprintf("%s%s%d", order, kind, m.Size)
	case ClassFloatPoint:
		return fmt.Sprintf("%sf%d", order, m.Size)
	case ClassString:
		return fmt.Sprintf("S%d", m.Size)
	case ClassCompound:
		return fmt.Sprintf("compound(%d)", len(m.Members))
	case ClassArray:
		var sb strings.Builder
		for _, d := range m.ArrayDims {
			fmt.Fprintf(&sb, "[%d]", d)
		}
		if m.BaseType == nil {
			return sb.String() + "?"
		}
		return sb.String() + m.BaseType.String()
	case ClassEnum:
		if m.BaseType != nil {
			return "enum" + m.BaseType.String()
		}
	case ClassVarLen:
		if m.IsVarLenString {
			return "vlen-str"
		}
		if m.VarLenType != nil {
			return "vlen" + m.VarLenType.String()
		}
	}
	return fmt.Sprintf("%s%d", m.Class, m.Size)
}

// parseDatatype reads one datatype, recursing into member and base types
// on the same cursor.
func parseDatatype(c *cursor) *Datatype {
	head := c.u8()
	dt := &Datatype{
		Class:     DatatypeClass(head & 0x0f),
		Version:   head >> 4,
		ClassBits: uint32(c.uintN(3)),
		Size:      c.u32(),
	}
	if c.err != nil {
		return dt
	}
	cb := dt.ClassBits
	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(cb & 1)
		dt.Signed = cb&0x08 != 0
		dt.BitOffset = c.u16()
		dt.BitPrecision = c.u16()
	case ClassFloatPoint:
		// Bits 0 and 6 together select the order; both set is VAX.
		dt.ByteOrder = ByteOrder(cb & 1)
		if cb&0x41 == 0x41 {
			dt.ByteOrder = OrderVAX
		}
		dt.Properties = c.take(12)
	case ClassTime:
		dt.ByteOrder = ByteOrder(cb & 1)
		c.skip(2)
	case ClassString:
		dt.StringPadding = StringPadding(cb & 0x0f)
		dt.CharSet = CharacterSet((cb>>4)&0x0f)
	case ClassOpaque:
		dt.Properties = c.take(int(cb & 0xff))
	case ClassReference:
	case ClassCompound:
		dt.parseMembers(c)
	case ClassEnum:
		dt.parseEnum(c)
	case ClassVarLen:
		dt.IsVarLenString = cb&0x0f == 1
		dt.StringPadding = StringPadding((cb>>4)&0x0f)
		dt.CharSet = CharacterSet((cb>>8)&0x0f)
		dt.VarLenType = parseDatatype(c)
	case ClassArray:
		dt.parseArray(c)
	default:
		c.err = fmt.Errorf("datatype: unknown class %d", dt.Class)
	}
	return dt
}

// memberName reads a member or enum name: NUL-terminated and, before version 3,
// padded to eight bytes.
func (m *Datatype) memberName(c *cursor) string {
	start := c.off
	s := c.cstring()
	if m.Version < 3 {
		if pad := (c.off - start) % 8; pad != 0 {
			c.skip(8 - pad)
		}
	}
	return s
}

// memberOffsetSize is the width of a version 3 member offset: the fewest
// bytes that can hold the compound size.
func memberOffsetSize(size uint32) int {
	if size == 0 {
		return 1
	}
	return (bits.Len32(size)-1)/8 + 1
}

func (m *Datatype) parseMembers(c *cursor) {
	n := int(m.ClassBits & 0xffff)
	m.Members = make([]CompoundMember, 0, n)
	for i := 0; i < n && c.err == nil; i++ {
		mem := CompoundMember{Name: m.memberName(c)}
		switch m.Version {
		case 1:
			mem.ByteOffset = c.u32()
			mem.Type = parseV1Member(c)
		case 2:
			mem.ByteOffset = c.u32()
			mem.Type = parseDatatype(c)
		default:
			mem.ByteOffset = uint32(c.uintN(memberOffsetSize(m.Size)))
			mem.Type = parseDatatype(c)
		}
		m.Members = append(m.Members, mem)
	}
}

// parseV1Member reads the old member form: an inline array shape of up to
// four dimensions ahead of the member type.
func parseV1Member(c *cursor) *Datatype {
	ndims := int(c.u8())
	c.skip(3 + 4 + 4) // reserved, permutation, reserved
	var dims []uint32
	for i := 0; i < 4; i++ {
		d := c.u32()
		if i < ndims {
			dims = append(dims, d)
		}
	}
	base := parseDatatype(c)
	if len(dims) == 0 {
		return base
	}
	return NewArrayDatatype(dims, base)
}

func (m *Datatype) parseArray(c *cursor) {
	ndims := int(c.u8())
	if m.Version < 3 {
		c.skip(3)
	}
	m.ArrayDims = make([]uint32, ndims)
	for i := range m.ArrayDims {
		m.ArrayDims[i] = c.u32()
	}
	if m.Version < 3 {
		c.skip(4 * ndims) // permutation
	}
	m.BaseType = parseDatatype(c)
}

func (m *Datatype) parseEnum(c *cursor) {
	base := parseDatatype(c)
	m.BaseType = base
	m.ByteOrder = base.ByteOrder
	m.Signed = base.Signed
	n := int(m.ClassBits & 0xffff)
	m.EnumNames = make([]string, n)
	for i := range m.EnumNames {
		m.EnumNames[i] = m.memberName(c)
	}
	m.EnumValues = make([][]byte, n)
	for i := range m.EnumValues {
		m.EnumValues[i] = c.take(int(base.Size))
	}
}

// encodeVersion is the oldest version able to hold m. Compounds and arrays
// use version 3 for unpadded names and packed member offsets.
func (m *Datatype) encodeVersion() uint8 {
	switch m.Class {
	case ClassCompound, ClassArray:
		return 3
	case ClassVarLen:
		if m.VarLenType != nil {
			return m.VarLenType.encodeVersion()
		}
	}
	return 1
}

func (m *Datatype) encode(e *encoder) error {
	cb := m.ClassBits
	if m.Class == ClassCompound {
		cb = uint32(len(m.Members))
	}
	e.u8(uint8(m.Class) | m.encodeVersion()<<4)
	e.uintN(uint64(cb), 3)
	e.u32(m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
	case ClassFloatPoint:
		if len(m.Properties) >= 12 {
			e.raw(m.Properties[:12])
		} else {
			e.raw(ieeeLayout(m.Size))
		}
	case ClassString:
	case ClassCompound:
		width := memberOffsetSize(m.Size)
		for _, mem := range m.Members {
			e.cstring(mem.Name)
			e.uintN(uint64(mem.ByteOffset), width)
			if err := mem.Type.encode(e); err != nil {
				return fmt.Errorf("member %q: %w", mem.Name, err)
			}
		}
	case ClassArray:
		e.u8(uint8(len(m.ArrayDims)))
		for _, d := range m.ArrayDims {
			e.u32(d)
		}
		return m.BaseType.encode(e)
	case ClassVarLen:
		if m.VarLenType != nil {
			return m.VarLenType.encode(e)
		}
	default:
		return fmt.Errorf("writing %s datatypes is not supported", m.Class)
	}
	return nil
}

// ieeeLayout is the float property block: bit offset, precision, exponent
// location and size, mantissa location and size, exponent bias.
func ieeeLayout(size uint32) []byte {
	switch size {
	case 4:
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	case 8:
		return []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0}
	}
	return make([]byte, 12)
}

func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	cb := uint32(order)
	if signed {
		cb |= 0x08
	}
	return &Datatype{
		Class: ClassFixedPoint, ClassBits: cb, Size: size, ByteOrder: order,
		BitPrecision: uint16(size * 8), Signed: signed,
	}
}

// NewFloatDatatype returns an IEEE float of 4 or 8 bytes.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	// Order, implied leading mantissa bit, sign position.
	cb := uint32(order) | 2<<4 | (size*8-1)<<8
	return &Datatype{Class: ClassFloatPoint, ClassBits: cb, Size: size, ByteOrder: order, Properties: ieeeLayout(size)}
}

func NewStringDatatype(size uint32, pad StringPadding, cs CharacterSet) *Datatype {
	return &Datatype{
		Class: ClassString, ClassBits: uint32(pad) | uint32(cs)<<4, Size: size,
		StringPadding: pad, CharSet: cs,
	}
}

func NewCompoundDatatype(size uint32, members []CompoundMember) *Datatype {
	return &Datatype{Class: ClassCompound, ClassBits: uint32(len(members)), Size: size, Members: members}
}

// NewPackedCompound lays the members out back to back.
func NewPackedCompound(names []string, types []*Datatype) *Datatype {
	members := make([]CompoundMember, len(names))
	var off uint32
	for i, name := range names {
		members[i] = CompoundMember{Name: name, ByteOffset: off, Type: types[i]}
		off += types[i].Size
	}
	return NewCompoundDatatype(off, members)
}

func NewArrayDatatype(dims []uint32, base *Datatype) *Datatype {
	n := uint32(1)
	for _, d := range dims {
		n *= d
	}
	return &Datatype{Class: ClassArray, Version: 3, Size: n * base.Size, ArrayDims: dims, BaseType: base}
}

// NewVarLenStringDatatype returns a variable-length string whose elements
// are a length and a global heap ID with offsetSize-byte addresses.
func NewVarLenStringDatatype(offsetSize int, cs CharacterSet) *Datatype {
	return &Datatype{
		Class:          ClassVarLen,
		ClassBits:      1 | uint32(PadNullTerm)<<4 | uint32(cs)<<8,
		Size:           uint32(4 + offsetSize + 4),
		StringPadding:  PadNullTerm,
		CharSet:        cs,
		IsVarLenString: true,
		VarLenType:     NewFixedPointDatatype(1, false, OrderLE),
	}
}
