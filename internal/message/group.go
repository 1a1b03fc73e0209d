package message

// LinkInfo tells a new-style group where dense link storage lives. Groups
// written here keep their links compact, so both addresses are undefined.
type LinkInfo struct {
	Version            uint8
	Flags              uint8
	MaxCreationIndex   uint64
	FractalHeapAddr    uint64
	NameIndexBTreeAddr uint64
	OrderIndexAddr     uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// UndefinedAddress marks an absent address at eight byte offsets.
const UndefinedAddress = ^uint64(0)

func parseLinkInfo(c *cursor) *LinkInfo {
	li := &LinkInfo{Version: c.u8(), Flags: c.u8()}
	if li.Flags&1 != 0 {
		li.MaxCreationIndex = c.u64()
	}
	li.FractalHeapAddr = c.offset()
	li.NameIndexBTreeAddr = c.offset()
	if li.Flags&2 != 0 {
		li.OrderIndexAddr = c.offset()
	}
	return li
}

func (m *LinkInfo) encode(e *encoder) error {
	e.u8(m.Version, m.Flags)
	if m.Flags&1 != 0 {
		e.u64(m.MaxCreationIndex)
	}
	e.offset(m.FractalHeapAddr)
	e.offset(m.NameIndexBTreeAddr)
	if m.Flags&2 != 0 {
		e.offset(m.OrderIndexAddr)
	}
	return nil
}

func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: UndefinedAddress, NameIndexBTreeAddr: UndefinedAddress}
}

// GroupInfo carries the compact-to-dense thresholds of a new-style group.
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func parseGroupInfo(c *cursor) *GroupInfo {
	gi := &GroupInfo{Version: c.u8(), Flags: c.u8()}
	if gi.Flags&1 != 0 {
		gi.MaxCompactLinks = c.u16()
		gi.MinDenseLinks = c.u16()
	}
	if gi.Flags&2 != 0 {
		gi.EstNumEntries = c.u16()
		gi.EstLinkNameLen = c.u16()
	}
	return gi
}

func (m *GroupInfo) encode(e *encoder) error {
	e.u8(m.Version, m.Flags)
	if m.Flags&1 != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&2 != 0 {
		e.u16(m.EstNumEntries)
		e.u16(m.EstLinkNameLen)
	}
	return nil
}

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }
