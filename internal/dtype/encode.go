package dtype

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/zsimview/internal/message"
)

// Encode encodes v as one element of dt. Only fixed-size types are supported.
func Encode(dt *message.Datatype, v Value) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	buf := make([]byte, dt.Size)
	if err := encodeInto(dt, v, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeAll encodes values back to back.
func EncodeAll(dt *message.Datatype, values []Value) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	size := int(dt.Size)
	buf := make([]byte, len(values)*size)
	for i, v := range values {
		if err := encodeInto(dt, v, buf[i*size:(i+1)*size]); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return buf, nil
}

func encodeInto(dt *message.Datatype, v Value, dst []byte) error {
	switch dt.Class {
	case message.ClassFixedPoint:
		return encodeInteger(dt, v, dst)
	case message.ClassEnum:
		if dt.BaseType == nil {
			return fmt.Errorf("enum without base type")
		}
		return encodeInto(dt.BaseType, v, dst)
	case message.ClassFloatPoint:
		return encodeFloat(dt, v, dst)
	case message.ClassString:
		return encodeString(dt, v, dst)
	case message.ClassBitfield, message.ClassOpaque, message.ClassReference:
		if v.Kind != Bytes {
			return fmt.Errorf("cannot encode %s value as %s", v.Kind, dt.Class)
		}
		if len(v.Raw) != len(dst) {
			return fmt.Errorf("%s needs %d bytes, have %d", dt.Class, len(dst), len(v.Raw))
		}
		copy(dst, v.Raw)
		return nil
	case message.ClassCompound:
		return encodeCompound(dt, v, dst)
	case message.ClassArray:
		return encodeArray(dt, v, dst)
	}
	return fmt.Errorf("cannot encode datatype class %s", dt.Class)
}

func encodeInteger(dt *message.Datatype, v Value, dst []byte) error {
	var u uint64
	switch v.Kind {
	case Int:
		u = uint64(v.Int)
	case Uint:
		u = v.Uint
	default:
		return fmt.Errorf("cannot encode %s value as integer", v.Kind)
	}
	if dt.BitOffset > 0 {
		u <<= dt.BitOffset
	}
	n := len(dst)
	for i := 0; i < n; i++ {
		b := byte(u >> (8 * i))
		if dt.ByteOrder == message.OrderBE {
			dst[n-1-i] = b
		} else {
			dst[i] = b
		}
	}
	return nil
}

func encodeFloat(dt *message.Datatype, v Value, dst []byte) error {
	var f float64
	switch v.Kind {
	case Float:
		f = v.Float
	case Int:
		f = float64(v.Int)
	case Uint:
		f = float64(v.Uint)
	default:
		return fmt.Errorf("cannot encode %s value as float", v.Kind)
	}
	order := ByteOrder(dt)
	switch len(dst) {
	case 4:
		order.PutUint32(dst, math.Float32bits(float32(f)))
	case 8:
		order.PutUint64(dst, math.Float64bits(f))
	default:
		return fmt.Errorf("unsupported float size %d", len(dst))
	}
	return nil
}

func encodeString(dt *message.Datatype, v Value, dst []byte) error {
	if v.Kind != String {
		return fmt.Errorf("cannot encode %s value as string", v.Kind)
	}
	if len(v.Str) > len(dst) {
		return fmt.Errorf("string of %d bytes does not fit in %d", len(v.Str), len(dst))
	}
	n := copy(dst, v.Str)
	pad := byte(0)
	if dt.StringPadding == message.PadSpacePad {
		pad = ' '
	}
	for i := n; i < len(dst); i++ {
		dst[i] = pad
	}
	return nil
}

func encodeCompound(dt *message.Datatype, v Value, dst []byte) error {
	if v.Kind != Compound {
		return fmt.Errorf("cannot encode %s value as compound", v.Kind)
	}
	for _, f := range v.Fields {
		if _, ok := dt.Member(f.Name); !ok {
			return fmt.Errorf("compound has no member %q", f.Name)
		}
	}
	for _, m := range dt.Members {
		fv, ok := v.Field(m.Name)
		if !ok {
			continue
		}
		end := uint64(m.ByteOffset) + uint64(m.Type.Size)
		if end > uint64(len(dst)) {
			return fmt.Errorf("member %q overruns compound", m.Name)
		}
		if err := encodeInto(m.Type, fv, dst[m.ByteOffset:end]); err != nil {
			return fmt.Errorf("member %q: %w", m.Name, err)
		}
	}
	return nil
}

func encodeArray(dt *message.Datatype, v Value, dst []byte) error {
	if v.Kind != Array {
		return fmt.Errorf("cannot encode %s value as array", v.Kind)
	}
	n := 1
	for _, d := range dt.ArrayDims {
		n *= int(d)
	}
	if len(v.Elems) != n {
		return fmt.Errorf("array needs %d elements, have %d", n, len(v.Elems))
	}
	size := int(dt.BaseType.Size)
	for i, e := range v.Elems {
		if err := encodeInto(dt.BaseType, e, dst[i*size:(i+1)*size]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// DatatypeOf derives a little-endian datatype able to hold v: 8-byte
// integers and floats, fixed strings sized to the text, packed compounds
// and arrays shaped like v.
func DatatypeOf(v Value) (*message.Datatype, error) {
	switch v.Kind {
	case Int:
		return message.NewFixedPointDatatype(8, true, message.OrderLE), nil
	case Uint:
		return message.NewFixedPointDatatype(8, false, message.OrderLE), nil
	case Float:
		return message.NewFloatDatatype(uint32(v.FloatBits()/8), message.OrderLE), nil
	case String:
		return message.NewStringDatatype(uint32(max(len(v.Str), 1)), message.PadNullPad, message.CharsetASCII), nil
	case Bytes:
		if len(v.Raw) == 0 {
			return nil, fmt.Errorf("empty opaque value")
		}
		return &message.Datatype{Class: message.ClassOpaque, Size: uint32(len(v.Raw))}, nil
	case Compound:
		names := make([]string, len(v.Fields))
		types := make([]*message.Datatype, len(v.Fields))
		for i, f := range v.Fields {
			t, err := DatatypeOf(f.Value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			names[i], types[i] = f.Name, t
		}
		return message.NewPackedCompound(names, types), nil
	case Array:
		if len(v.Elems) == 0 {
			return nil, fmt.Errorf("empty array has no element type")
		}
		base, err := DatatypeOf(v.Elems[0])
		if err != nil {
			return nil, err
		}
		dims := make([]uint32, len(v.Dims))
		for i, d := range v.Dims {
			dims[i] = uint32(d)
		}
		return message.NewArrayDatatype(dims, base), nil
	}
	return nil, fmt.Errorf("no datatype for %s value", v.Kind)
}
