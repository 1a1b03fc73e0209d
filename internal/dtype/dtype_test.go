package dtype

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/zsimview/internal/message"
)

var (
	u8le  = message.NewFixedPointDatatype(8, false, message.OrderLE)
	i16le = message.NewFixedPointDatatype(2, true, message.OrderLE)
	i32be = message.NewFixedPointDatatype(4, true, message.OrderBE)
	f64le = message.NewFloatDatatype(8, message.OrderLE)
	f32be = message.NewFloatDatatype(4, message.OrderBE)
)

func TestDecodeIntegers(t *testing.T) {
	tests := []struct {
		name string
		dt   *message.Datatype
		raw  []byte
		want Value
	}{
		{"uint64", u8le, []byte{1, 2, 0, 0, 0, 0, 0, 0}, UintValue(0x0201)},
		{"int16 negative", i16le, []byte{0xfe, 0xff}, IntValue(-2)},
		{"int32 big endian", i32be, []byte{0xff, 0xff, 0xff, 0xfd}, IntValue(-3)},
		{"uint8", message.NewFixedPointDatatype(1, false, message.OrderLE), []byte{200}, UintValue(200)},
		{"int8", message.NewFixedPointDatatype(1, true, message.OrderLE), []byte{200}, IntValue(-56)},
		{"uint32 big endian", message.NewFixedPointDatatype(4, false, message.OrderBE), []byte{0, 0, 1, 0}, UintValue(256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.dt, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFloats(t *testing.T) {
	raw := make([]byte, 8)
	ByteOrder(f64le).PutUint64(raw, math.Float64bits(2.5))
	v, err := Decode(f64le, raw)
	require.NoError(t, err)
	assert.Equal(t, FloatValue(2.5), v)

	raw = []byte{0x3f, 0xc0, 0, 0} // 1.5 big endian
	v, err = Decode(f32be, raw)
	require.NoError(t, err)
	assert.Equal(t, Float32Value(1.5), v)
	assert.Equal(t, 32, v.FloatBits())

	_, err = Decode(&message.Datatype{Class: message.ClassFloatPoint, Size: 2}, []byte{0, 0})
	assert.Error(t, err)
}

func TestDecodeStrings(t *testing.T) {
	tests := []struct {
		name string
		pad  message.StringPadding
		raw  string
		want string
	}{
		{"null terminated", message.PadNullTerm, "ab\x00cd", "ab"},
		{"null padded", message.PadNullPad, "abc\x00\x00", "abc"},
		{"space padded", message.PadSpacePad, "ab   ", "ab"},
		{"full width", message.PadNullTerm, "abcde", "abcde"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := message.NewStringDatatype(5, tt.pad, message.CharsetASCII)
			v, err := Decode(dt, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, StringValue(tt.want), v)
		})
	}
}

func TestDecodeEnumUsesBase(t *testing.T) {
	dt := &message.Datatype{Class: message.ClassEnum, Size: 2, BaseType: i16le}
	v, err := Decode(dt, []byte{7, 0})
	require.NoError(t, err)
	assert.Equal(t, IntValue(7), v)
}

func TestDecodeOpaque(t *testing.T) {
	dt := &message.Datatype{Class: message.ClassOpaque, Size: 3}
	raw := []byte{1, 2, 3, 4}
	v, err := Decode(dt, raw)
	require.NoError(t, err)
	assert.Equal(t, BytesValue([]byte{1, 2, 3}), v)
	raw[0] = 9
	assert.Equal(t, byte(1), v.Raw[0], "decoded bytes must not alias the input")
}

func nestedType() *message.Datatype {
	stall := message.NewPackedCompound([]string{"mem", "br"}, []*message.Datatype{u8le, u8le})
	core := message.NewPackedCompound(
		[]string{"cycles", "lat", "stall"},
		[]*message.Datatype{u8le, message.NewArrayDatatype([]uint32{2}, u8le), stall},
	)
	return message.NewPackedCompound(
		[]string{"phase", "core", "ipc"},
		[]*message.Datatype{u8le, message.NewArrayDatatype([]uint32{2}, core), f64le},
	)
}

func nestedValue() Value {
	core := func(c uint64) Value {
		return CompoundValue(
			Field{"cycles", UintValue(100 + c)},
			Field{"lat", ArrayValue([]uint64{2}, []Value{UintValue(c), UintValue(c + 1)})},
			Field{"stall", CompoundValue(Field{"mem", UintValue(3 * c)}, Field{"br", UintValue(5)})},
		)
	}
	return CompoundValue(
		Field{"phase", UintValue(4)},
		Field{"core", ArrayValue([]uint64{2}, []Value{core(0), core(1)})},
		Field{"ipc", FloatValue(0.75)},
	)
}

func TestEncodeDecodeNestedCompound(t *testing.T) {
	dt := nestedType()
	want := nestedValue()

	raw, err := Encode(dt, want)
	require.NoError(t, err)
	require.Len(t, raw, int(dt.Size))

	got, err := Decode(dt, raw)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("value tree mismatch (-want +got):\n%s", diff)
	}

	// The member after the nested array must not be truncated.
	ipc, ok := got.Field("ipc")
	require.True(t, ok)
	assert.Equal(t, 0.75, ipc.Float)
}

func TestDecodeAll(t *testing.T) {
	raw, err := EncodeAll(i16le, []Value{IntValue(1), IntValue(-1), IntValue(300)})
	require.NoError(t, err)
	got, err := DecodeAll(i16le, raw, 3)
	require.NoError(t, err)
	assert.Equal(t, []Value{IntValue(1), IntValue(-1), IntValue(300)}, got)

	_, err = DecodeAll(i16le, raw, 4)
	assert.Error(t, err)
}

func TestDecodeCompoundOverrun(t *testing.T) {
	dt := message.NewCompoundDatatype(8, []message.CompoundMember{{Name: "x", ByteOffset: 4, Type: u8le}})
	_, err := Decode(dt, make([]byte, 8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `member "x"`)
}

func TestDecodeVarLenNeedsReader(t *testing.T) {
	dt := &message.Datatype{Class: message.ClassVarLen, Size: 16, IsVarLenString: true}
	raw := make([]byte, 16)
	raw[0] = 3 // length
	raw[4] = 0x40
	_, err := Decode(dt, raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a file reader")

	// A null reference decodes to the empty string.
	v, err := Decode(dt, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, StringValue(""), v)
}

func TestEncodeErrors(t *testing.T) {
	str := message.NewStringDatatype(3, message.PadNullPad, message.CharsetASCII)
	tests := []struct {
		name string
		dt   *message.Datatype
		v    Value
	}{
		{"string into integer", u8le, StringValue("x")},
		{"string too long", str, StringValue("abcd")},
		{"unknown member", nestedType(), CompoundValue(Field{"nope", UintValue(1)})},
		{"array length", message.NewArrayDatatype([]uint32{3}, u8le), ArrayValue([]uint64{2}, []Value{UintValue(1), UintValue(2)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.dt, tt.v)
			assert.Error(t, err)
		})
	}
}

func TestEncodeSpacePadAndBigEndian(t *testing.T) {
	raw, err := Encode(message.NewStringDatatype(4, message.PadSpacePad, message.CharsetASCII), StringValue("ab"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab  "), raw)

	raw, err = Encode(i32be, IntValue(-3))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xfd}, raw)
}

func TestValueHelpers(t *testing.T) {
	grid := ArrayValue([]uint64{2, 3}, []Value{
		UintValue(1), UintValue(2), UintValue(3),
		UintValue(4), UintValue(5), UintValue(6),
	})
	assert.Equal(t, 2, grid.Len())
	assert.Equal(t, 2, grid.Rank())
	assert.Equal(t, Uint, grid.ElemKind())
	assert.Len(t, grid.Flatten(), 6)

	row := grid.Index(1)
	assert.Equal(t, []uint64{3}, row.Dims)
	assert.Equal(t, UintValue(4), row.Elems[0])

	scalar := FloatValue(3.9)
	assert.True(t, scalar.IsNumeric())
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, []Value{scalar}, scalar.Flatten())
	n, ok := scalar.AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = StringValue("x").AsInt64()
	assert.False(t, ok)

	_, ok = UintValue(math.MaxUint64 - 5).AsInt64()
	assert.False(t, ok, "uint64 above MaxInt64 must not wrap")
	s, ok := UintValue(math.MaxUint64 - 5).Integer()
	assert.True(t, ok)
	assert.Equal(t, "18446744073709551610", s)
	s, _ = FloatValue(-2.7).Integer()
	assert.Equal(t, "-2", s)
	_, ok = BytesValue([]byte{1}).Integer()
	assert.False(t, ok)

	c := nestedValue()
	assert.Equal(t, []string{"phase", "core", "ipc"}, c.FieldNames())
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.IsScalar())
	_, ok = c.Field("missing")
	assert.False(t, ok)

	zeroD := ArrayValue(nil, []Value{IntValue(1)})
	assert.Equal(t, 1, zeroD.Len())
	assert.Equal(t, "compound", Compound.String())
}

func TestDatatypeOf(t *testing.T) {
	v := CompoundValue(
		Field{"n", IntValue(-1)},
		Field{"name", StringValue("abc")},
		Field{"xs", ArrayValue([]uint64{2}, []Value{FloatValue(1), FloatValue(2)})},
	)
	dt, err := DatatypeOf(v)
	require.NoError(t, err)
	assert.Equal(t, uint32(8+3+16), dt.Size)

	raw, err := Encode(dt, v)
	require.NoError(t, err)
	got, err := Decode(dt, raw)
	require.NoError(t, err)
	if diff := cmp.Diff(v, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = DatatypeOf(Value{})
	assert.Error(t, err)
}
