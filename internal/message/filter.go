package message

// Predefined filter IDs.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a chunk may skip the filter when it fails.
func (f *FilterInfo) IsOptional() bool { return f.Flags&1 != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func parseFilterPipeline(c *cursor) *FilterPipeline {
	fp := &FilterPipeline{Version: c.u8()}
	n := int(c.u8())
	if fp.Version == 1 {
		c.skip(6)
	}
	fp.Filters = make([]FilterInfo, 0, n)
	for i := 0; i < n && c.err == nil; i++ {
		f := FilterInfo{ID: c.u16()}
		// Version 2 drops the name of predefined filters.
		var nameLen int
		if fp.Version == 1 || f.ID >= 256 {
			nameLen = int(c.u16())
		}
		f.Flags = c.u16()
		cd := int(c.u16())
		if nameLen > 0 {
			f.Name = c.name(nameLen)
			if fp.Version == 1 {
				c.skip((8 - nameLen%8) % 8)
			}
		}
		f.ClientData = make([]uint32, cd)
		for j := range f.ClientData {
			f.ClientData[j] = c.u32()
		}
		if fp.Version == 1 && cd%2 == 1 {
			c.skip(4)
		}
		fp.Filters = append(fp.Filters, f)
	}
	return fp
}

// encode writes version 2.
func (m *FilterPipeline) encode(e *encoder) error {
	e.u8(2, uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.u16(f.ID)
		if f.ID >= 256 {
			e.u16(uint16(len(f.Name) + 1))
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		if f.ID >= 256 {
			e.cstring(f.Name)
		}
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
	return nil
}

func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}
