package dtype

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the shape of a Value.
type Kind uint8

const (
	Invalid Kind = iota
	Int
	Uint
	Float
	String
	Bytes
	Compound
	Array
)

var kindNames = [...]string{
	Invalid:  "invalid",
	Int:      "int",
	Uint:     "uint",
	Float:    "float",
	String:   "string",
	Bytes:    "bytes",
	Compound: "compound",
	Array:    "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Field is one named member of a compound value.
type Field struct {
	Name  string
	Value Value
}

// Value is a decoded HDF5 element. Only the members matching Kind are set.
type Value struct {
	Kind  Kind
	Int   int64
	Uint  uint64
	Float float64
	Bits  int // Float: 32 for single precision, 0 or 64 for double
	Str   string
	Raw   []byte

	Fields []Field // Compound, in file order

	Dims  []uint64 // Array; empty for a 0-d array
	Elems []Value  // Array, row-major
}

// IntValue returns a signed integer value.
func IntValue(v int64) Value { return Value{Kind: Int, Int: v} }

// UintValue returns an unsigned integer value.
func UintValue(v uint64) Value { return Value{Kind: Uint, Uint: v} }

// FloatValue returns a double precision value.
func FloatValue(v float64) Value { return Value{Kind: Float, Float: v} }

// Float32Value returns a single precision value.
func Float32Value(v float32) Value { return Value{Kind: Float, Float: float64(v), Bits: 32} }

// FloatBits is 32 for a single precision float and 64 otherwise.
func (v Value) FloatBits() int {
	if v.Bits == 32 {
		return 32
	}
	return 64
}

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Kind: String, Str: s} }

// BytesValue returns an opaque byte value.
func BytesValue(b []byte) Value { return Value{Kind: Bytes, Raw: b} }

// CompoundValue returns a compound built from fields in order.
func CompoundValue(fields ...Field) Value { return Value{Kind: Compound, Fields: fields} }

// ArrayValue returns an array. The number of elements must equal the
// product of dims.
func ArrayValue(dims []uint64, elems []Value) Value {
	return Value{Kind: Array, Dims: dims, Elems: elems}
}

// IsNumeric reports whether v is an integer or float scalar.
func (v Value) IsNumeric() bool {
	return v.Kind == Int || v.Kind == Uint || v.Kind == Float
}

// IsScalar reports whether v is neither a compound nor an array.
func (v Value) IsScalar() bool {
	return v.Kind != Compound && v.Kind != Array && v.Kind != Invalid
}

// Field returns the named member of a compound.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// FieldNames returns the member names of a compound in order.
func (v Value) FieldNames() []string {
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the extent of the first axis of an array, 1 for a 0-d
// array, the number of fields of a compound and 0 for scalars.
func (v Value) Len() int {
	switch v.Kind {
	case Array:
		if len(v.Dims) == 0 {
			return 1
		}
		return int(v.Dims[0])
	case Compound:
		return len(v.Fields)
	}
	return 0
}

// Rank returns the number of array dimensions, 0 for anything else.
func (v Value) Rank() int {
	if v.Kind != Array {
		return 0
	}
	return len(v.Dims)
}

// ElemKind returns the kind of the array's elements, or Invalid when the
// array is empty or v is not an array. Nested arrays report their leaves.
func (v Value) ElemKind() Kind {
	if v.Kind != Array {
		return Invalid
	}
	flat := v.Flatten()
	if len(flat) == 0 {
		return Invalid
	}
	return flat[0].Kind
}

// Index returns the i-th slice of an array along its first axis: an
// element for 1-D arrays and a sub-array otherwise.
func (v Value) Index(i int) Value {
	if v.Kind != Array {
		panic(fmt.Sprintf("dtype: Index on %s value", v.Kind))
	}
	if len(v.Dims) <= 1 {
		return v.Elems[i]
	}
	stride := len(v.Elems) / int(v.Dims[0])
	return ArrayValue(v.Dims[1:], v.Elems[i*stride:(i+1)*stride])
}

// Flatten returns the non-array leaves of v in row-major order. Arrays of
// arrays are flattened through every level. A non-array returns itself.
func (v Value) Flatten() []Value {
	if v.Kind != Array {
		return []Value{v}
	}
	out := make([]Value, 0, len(v.Elems))
	for _, e := range v.Elems {
		if e.Kind == Array {
			out = append(out, e.Flatten()...)
		} else {
			out = append(out, e)
		}
	}
	return out
}

// AsInt64 converts a numeric scalar to int64. Floats are truncated. A
// uint64 above math.MaxInt64 does not fit and reports false.
func (v Value) AsInt64() (int64, bool) {
	switch v.Kind {
	case Int:
		return v.Int, true
	case Uint:
		if v.Uint > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Uint), true
	case Float:
		return int64(v.Float), true
	}
	return 0, false
}

// Integer prints an integer scalar in base 10. Floats are truncated toward
// zero. It reports false for anything else.
func (v Value) Integer() (string, bool) {
	switch v.Kind {
	case Int:
		return strconv.FormatInt(v.Int, 10), true
	case Uint:
		return strconv.FormatUint(v.Uint, 10), true
	case Float:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return "", false
		}
		return strconv.FormatFloat(math.Trunc(v.Float), 'f', 0, 64), true
	}
	return "", false
}
