package dtype

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/heap"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Decoder decodes elements that may reference the global heap. It caches
// heap collections and is safe for concurrent use.
type Decoder struct {
	r *binpkg.Reader

	mu    sync.Mutex
	heaps map[uint64]*heap.Collection
}

// NewDecoder returns a decoder resolving variable-length data through r.
// A nil reader decodes fixed-size types only.
func NewDecoder(r *binpkg.Reader) *Decoder {
	return &Decoder{r: r, heaps: make(map[uint64]*heap.Collection)}
}

// Decode decodes one element of a fixed-size type.
func Decode(dt *message.Datatype, raw []byte) (Value, error) {
	return NewDecoder(nil).Decode(dt, raw)
}

// DecodeAll decodes n consecutive elements of a fixed-size type.
func DecodeAll(dt *message.Datatype, raw []byte, n int) ([]Value, error) {
	return NewDecoder(nil).DecodeAll(dt, raw, n)
}

// ByteOrder returns the byte order of dt.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DecodeAll decodes n consecutive elements.
func (d *Decoder) DecodeAll(dt *message.Datatype, raw []byte, n int) ([]Value, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	size := int(dt.Size)
	if len(raw) < n*size {
		return nil, fmt.Errorf("need %d bytes for %d elements, have %d", n*size, n, len(raw))
	}
	out := make([]Value, n)
	for i := range out {
		v, err := d.Decode(dt, raw[i*size:(i+1)*size])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Decode decodes one element.
func (d *Decoder) Decode(dt *message.Datatype, raw []byte) (Value, error) {
	if dt == nil {
		return Value{}, fmt.Errorf("nil datatype")
	}
	if len(raw) < int(dt.Size) {
		return Value{}, fmt.Errorf("%s element needs %d bytes, have %d", dt.Class, dt.Size, len(raw))
	}
	raw = raw[:dt.Size]

	switch dt.Class {
	case message.ClassFixedPoint:
		return decodeInteger(dt, raw)
	case message.ClassFloatPoint:
		return decodeFloat(dt, raw)
	case message.ClassString:
		return StringValue(trimString(raw, dt.StringPadding)), nil
	case message.ClassEnum:
		if dt.BaseType == nil {
			return Value{}, fmt.Errorf("enum without base type")
		}
		return d.Decode(dt.BaseType, raw)
	case message.ClassCompound:
		return d.decodeCompound(dt, raw)
	case message.ClassArray:
		return d.decodeArray(dt, raw)
	case message.ClassVarLen:
		return d.decodeVarLen(dt, raw)
	case message.ClassBitfield, message.ClassOpaque, message.ClassReference, message.ClassTime:
		return BytesValue(bytes.Clone(raw)), nil
	}
	return Value{}, fmt.Errorf("unsupported datatype class %s", dt.Class)
}

func decodeInteger(dt *message.Datatype, raw []byte) (Value, error) {
	if len(raw) == 0 || len(raw) > 8 {
		return Value{}, fmt.Errorf("unsupported integer size %d", len(raw))
	}
	var u uint64
	if dt.ByteOrder == message.OrderBE {
		for _, b := range raw {
			u = u<<8 | uint64(b)
		}
	} else {
		for i := len(raw) - 1; i >= 0; i-- {
			u = u<<8 | uint64(raw[i])
		}
	}

	bits := uint(len(raw) * 8)
	if dt.BitPrecision > 0 && uint(dt.BitPrecision)+uint(dt.BitOffset) <= bits {
		u >>= dt.BitOffset
		bits = uint(dt.BitPrecision)
		if bits < 64 {
			u &= 1<<bits - 1
		}
	}
	if !dt.Signed {
		return UintValue(u), nil
	}
	shift := 64 - bits
	return IntValue(int64(u<<shift) >> shift), nil
}

func decodeFloat(dt *message.Datatype, raw []byte) (Value, error) {
	if dt.ByteOrder == message.OrderVAX {
		return Value{}, fmt.Errorf("VAX float order is not supported")
	}
	order := ByteOrder(dt)
	switch len(raw) {
	case 4:
		return Float32Value(math.Float32frombits(order.Uint32(raw))), nil
	case 8:
		return FloatValue(math.Float64frombits(order.Uint64(raw))), nil
	}
	return Value{}, fmt.Errorf("unsupported float size %d", len(raw))
}

// trimString applies HDF5 string padding rules.
func trimString(raw []byte, pad message.StringPadding) string {
	switch pad {
	case message.PadSpacePad:
		return string(bytes.TrimRight(raw, " "))
	default:
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		return string(raw)
	}
}

func (d *Decoder) decodeCompound(dt *message.Datatype, raw []byte) (Value, error) {
	fields := make([]Field, len(dt.Members))
	for i, m := range dt.Members {
		if m.Type == nil {
			return Value{}, fmt.Errorf("member %q has no type", m.Name)
		}
		end := uint64(m.ByteOffset) + uint64(m.Type.Size)
		if end > uint64(len(raw)) {
			return Value{}, fmt.Errorf("member %q at offset %d overruns compound of %d bytes", m.Name, m.ByteOffset, len(raw))
		}
		v, err := d.Decode(m.Type, raw[m.ByteOffset:end])
		if err != nil {
			return Value{}, fmt.Errorf("member %q: %w", m.Name, err)
		}
		fields[i] = Field{Name: m.Name, Value: v}
	}
	return CompoundValue(fields...), nil
}

func (d *Decoder) decodeArray(dt *message.Datatype, raw []byte) (Value, error) {
	if dt.BaseType == nil {
		return Value{}, fmt.Errorf("array without base type")
	}
	dims := make([]uint64, len(dt.ArrayDims))
	n := 1
	for i, v := range dt.ArrayDims {
		dims[i] = uint64(v)
		n *= int(v)
	}
	elems, err := d.DecodeAll(dt.BaseType, raw, n)
	if err != nil {
		return Value{}, err
	}
	return ArrayValue(dims, elems), nil
}

// decodeVarLen resolves a variable-length element: a 4-byte count
// followed by a global heap ID.
func (d *Decoder) decodeVarLen(dt *message.Datatype, raw []byte) (Value, error) {
	offsetSize := 8
	if d.r != nil {
		offsetSize = d.r.OffsetSize()
	}
	if len(raw) < 4+offsetSize+4 {
		return Value{}, fmt.Errorf("variable-length reference too short: %d bytes", len(raw))
	}
	count := int(binary.LittleEndian.Uint32(raw))
	id, err := heap.ParseID(raw[4:], offsetSize)
	if err != nil {
		return Value{}, err
	}

	var data []byte
	if id.Addr != 0 && count > 0 {
		data, err = d.heapObject(id)
		if err != nil {
			return Value{}, err
		}
	}

	if dt.IsVarLenString {
		return StringValue(trimString(data, message.PadNullTerm)), nil
	}
	if dt.VarLenType == nil {
		return BytesValue(data), nil
	}
	elems, err := d.DecodeAll(dt.VarLenType, data, count)
	if err != nil {
		return Value{}, fmt.Errorf("variable-length sequence: %w", err)
	}
	return ArrayValue([]uint64{uint64(count)}, elems), nil
}

func (d *Decoder) heapObject(id heap.ID) ([]byte, error) {
	if d.r == nil {
		return nil, fmt.Errorf("variable-length data at 0x%x needs a file reader", id.Addr)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	gh, ok := d.heaps[id.Addr]
	if !ok {
		var err error
		gh, err = heap.ReadCollection(d.r, id.Addr)
		if err != nil {
			return nil, fmt.Errorf("reading global heap at 0x%x: %w", id.Addr, err)
		}
		d.heaps[id.Addr] = gh
	}
	return gh.Object(uint16(id.Index))
}
