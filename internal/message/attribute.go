package message

import "fmt"

// Attribute is a small named value attached to an object header.
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func parseAttribute(c *cursor) *Attribute {
	a := &Attribute{Version: c.u8()}
	if a.Version < 1 || a.Version > 3 {
		c.err = fmt.Errorf("attribute: unsupported version %d", a.Version)
		return a
	}
	c.skip(1) // flags
	nameLen := int(c.u16())
	typeLen := int(c.u16())
	spaceLen := int(c.u16())
	if a.Version == 3 {
		c.skip(1) // name encoding
	}

	// Version 1 pads every part to eight bytes.
	part := func(n int) *cursor {
		sub := newCursor(c.what, c.take(n), c.cfg)
		if a.Version == 1 {
			c.align(8)
		}
		return sub
	}
	a.Name = part(nameLen).name(nameLen)

	tc := part(typeLen)
	a.Datatype = parseDatatype(tc)
	sc := part(spaceLen)
	a.Dataspace = parseDataspace(sc)
	for _, sub := range []*cursor{tc, sc} {
		if sub.err != nil && c.err == nil {
			c.err = fmt.Errorf("attribute %q: %w", a.Name, sub.err)
		}
	}
	a.Data = append([]byte(nil), c.rest()...)
	return a
}

// encode writes version 3.
func (m *Attribute) encode(e *encoder) error {
	dt, err := Encode(m.Datatype, e.cfg)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	ds, err := Encode(m.Dataspace, e.cfg)
	if err != nil {
		return err
	}
	e.u8(3, 0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(len(dt)))
	e.u16(uint16(len(ds)))
	e.u8(0)
	e.cstring(m.Name)
	e.raw(dt)
	e.raw(ds)
	e.raw(m.Data)
	return nil
}

func NewAttribute(name string, dt *Datatype, ds *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: dt, Dataspace: ds, Data: data}
}
