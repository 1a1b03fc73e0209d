package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Attribute is a small value attached to a group or dataset.
type Attribute struct {
	msg     *message.Attribute
	decoder *dtype.Decoder
}

func (a *Attribute) Name() string                { return a.msg.Name }
func (a *Attribute) Datatype() *message.Datatype { return a.msg.Datatype }

// Shape is nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsScalar also holds for an attribute without a dataspace.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// Value decodes the attribute. Scalars decode to a single value and
// anything else to an Array shaped like the dataspace.
func (a *Attribute) Value() (dtype.Value, error) {
	if a.msg.Datatype == nil {
		return dtype.Value{}, fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	n := int(a.NumElements())
	values, err := a.decoder.DecodeAll(a.msg.Datatype, a.msg.Data, n)
	if err != nil {
		return dtype.Value{}, fmt.Errorf("attribute %q: %w", a.msg.Name, err)
	}
	if a.IsScalar() {
		return values[0], nil
	}
	return dtype.ArrayValue(a.Shape(), values), nil
}
