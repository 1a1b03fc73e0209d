package message

import "fmt"

// FillValue records the value unwritten elements read back as.
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	IsDefined      bool
	Value          []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func parseFillValue(c *cursor) *FillValue {
	fv := &FillValue{Version: c.u8()}
	switch fv.Version {
	case 1, 2:
		fv.SpaceAllocTime = c.u8()
		fv.FillWriteTime = c.u8()
		fv.IsDefined = c.u8() != 0
		if fv.IsDefined && c.remaining() >= 4 {
			fv.Value = c.take(int(c.u32()))
		}
	case 3:
		flags := c.u8()
		fv.SpaceAllocTime = flags & 0x03
		fv.FillWriteTime = (flags>>2)&0x03
		// Bit 4 marks the value undefined, bit 5 says one follows.
		fv.IsDefined = flags&0x10 == 0
		if fv.IsDefined && flags&0x20 != 0 {
			fv.Value = c.take(int(c.u32()))
		}
	default:
		c.err = fmt.Errorf("fill value: unsupported version %d", fv.Version)
	}
	return fv
}
