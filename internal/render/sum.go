package render

import (
	"github.com/robert-malhotra/zsimview/internal/dtype"
)

// project selects member name from every compound in v. Array-valued
// members extend the dimensions of the result.
func project(v dtype.Value, name string) dtype.Value {
	if v.Kind == dtype.Compound {
		f, _ := v.Field(name)
		return f
	}
	if v.Kind != dtype.Array {
		return dtype.Value{}
	}
	elems := make([]dtype.Value, len(v.Elems))
	var inner []uint64
	for i, e := range v.Elems {
		elems[i] = project(e, name)
		if elems[i].Kind == dtype.Array {
			inner = elems[i].Dims
		}
	}
	if inner == nil {
		return dtype.ArrayValue(v.Dims, elems)
	}
	flat := make([]dtype.Value, 0, len(elems)*int(product(inner)))
	for _, e := range elems {
		flat = append(flat, e.Elems...)
	}
	return dtype.ArrayValue(append(append([]uint64(nil), v.Dims...), inner...), flat)
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// sumRows adds rows together. Integers wrap on overflow, arrays add
// element-wise and compounds member by member. It fails for strings,
// bytes and mismatched shapes.
func sumRows(rows []dtype.Value) (dtype.Value, bool) {
	if len(rows) == 0 {
		return dtype.Value{}, false
	}
	acc := rows[0]
	for _, r := range rows[1:] {
		var ok bool
		if acc, ok = add(acc, r); !ok {
			return dtype.Value{}, false
		}
	}
	if _, ok := add(acc, zero(acc)); !ok {
		return dtype.Value{}, false // a single non-numeric row
	}
	return acc, true
}

func zero(v dtype.Value) dtype.Value {
	switch v.Kind {
	case dtype.Array:
		elems := make([]dtype.Value, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = zero(e)
		}
		return dtype.ArrayValue(v.Dims, elems)
	case dtype.Compound:
		fields := make([]dtype.Field, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = dtype.Field{Name: f.Name, Value: zero(f.Value)}
		}
		return dtype.CompoundValue(fields...)
	}
	return dtype.Value{Kind: v.Kind}
}

func add(a, b dtype.Value) (dtype.Value, bool) {
	if a.Kind != b.Kind {
		return dtype.Value{}, false
	}
	switch a.Kind {
	case dtype.Int:
		return dtype.IntValue(a.Int + b.Int), true
	case dtype.Uint:
		return dtype.UintValue(a.Uint + b.Uint), true
	case dtype.Float:
		if a.FloatBits() == 32 && b.FloatBits() == 32 {
			return dtype.Float32Value(float32(a.Float) + float32(b.Float)), true
		}
		return dtype.FloatValue(a.Float + b.Float), true
	case dtype.Array:
		if len(a.Elems) != len(b.Elems) {
			return dtype.Value{}, false
		}
		elems := make([]dtype.Value, len(a.Elems))
		for i := range a.Elems {
			var ok bool
			if elems[i], ok = add(a.Elems[i], b.Elems[i]); !ok {
				return dtype.Value{}, false
			}
		}
		return dtype.ArrayValue(a.Dims, elems), true
	case dtype.Compound:
		if len(a.Fields) != len(b.Fields) {
			return dtype.Value{}, false
		}
		fields := make([]dtype.Field, len(a.Fields))
		for i, f := range a.Fields {
			sum, ok := add(f.Value, b.Fields[i].Value)
			if !ok || f.Name != b.Fields[i].Name {
				return dtype.Value{}, false
			}
			fields[i] = dtype.Field{Name: f.Name, Value: sum}
		}
		return dtype.CompoundValue(fields...), true
	}
	return dtype.Value{}, false
}
