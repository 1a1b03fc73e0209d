package message

// DataspaceType is the shape class of a dataspace.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace is the shape of a dataset or attribute.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	// MaxDims is nil when the file does not record maxima. Unlimited
	// dimensions are the undefined length.
	MaxDims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements is the product of the dimensions; a scalar holds one element.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }
func (m *Dataspace) IsNull() bool   { return m.SpaceType == DataspaceNull }

func parseDataspace(c *cursor) *Dataspace {
	ds := &Dataspace{Version: c.u8(), Rank: int(c.u8())}
	flags := c.u8()
	if ds.Version >= 2 {
		ds.SpaceType = DataspaceType(c.u8())
	} else {
		// Version 1 has five reserved bytes and no type field.
		c.skip(5)
		ds.SpaceType = DataspaceSimple
		if ds.Rank == 0 {
			ds.SpaceType = DataspaceScalar
		}
	}
	if ds.SpaceType != DataspaceSimple {
		return ds
	}
	ds.Dimensions = make([]uint64, ds.Rank)
	for i := range ds.Dimensions {
		ds.Dimensions[i] = c.length()
	}
	if flags&1 != 0 {
		ds.MaxDims = make([]uint64, ds.Rank)
		for i := range ds.MaxDims {
			ds.MaxDims[i] = c.length()
		}
	}
	return ds
}

// encode writes version 2.
func (m *Dataspace) encode(e *encoder) error {
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags = 1
	}
	e.u8(2, uint8(len(m.Dimensions)), flags, uint8(m.SpaceType))
	for _, d := range m.Dimensions {
		e.length(d)
	}
	if flags != 0 {
		for _, d := range m.MaxDims {
			e.length(d)
		}
	}
	return nil
}

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{Version: 2, Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}
