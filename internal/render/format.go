package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/robert-malhotra/zsimview/internal/dtype"
)

// Format prints v the way numpy's str() prints the same element, except
// that nested arrays stay on one line and strings inside arrays are not
// quoted.
func Format(v dtype.Value) string {
	var b strings.Builder
	format(&b, v)
	return b.String()
}

func format(b *strings.Builder, v dtype.Value) {
	switch v.Kind {
	case dtype.Int:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case dtype.Uint:
		b.WriteString(strconv.FormatUint(v.Uint, 10))
	case dtype.Float:
		b.WriteString(FormatFloat(v.Float, v.FloatBits()))
	case dtype.String:
		b.WriteString(v.Str)
	case dtype.Bytes:
		b.WriteString("0x")
		const hex = "0123456789abcdef"
		for _, c := range v.Raw {
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		}
	case dtype.Compound:
		b.WriteByte('(')
		for i, f := range v.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, f.Value)
		}
		if len(v.Fields) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case dtype.Array:
		formatArray(b, v.Dims, v.Elems, columnOf(v.Flatten()))
	}
}

// formatArray prints one array level. Numeric leaves go through col so
// that every element of the array shares one width.
func formatArray(b *strings.Builder, dims []uint64, elems []dtype.Value, col func(dtype.Value) string) {
	if len(dims) == 0 {
		if len(elems) == 1 {
			element(b, elems[0], col)
		}
		return
	}
	b.WriteByte('[')
	n := int(dims[0])
	stride := 0
	if n > 0 {
		stride = len(elems) / n
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if len(dims) == 1 {
			element(b, elems[i], col)
		} else {
			formatArray(b, dims[1:], elems[i*stride:(i+1)*stride], col)
		}
	}
	b.WriteByte(']')
}

func element(b *strings.Builder, v dtype.Value, col func(dtype.Value) string) {
	switch {
	case v.Kind == dtype.Array:
		formatArray(b, v.Dims, v.Elems, col)
	case col != nil && v.IsNumeric():
		b.WriteString(col(v))
	default:
		format(b, v)
	}
}

// columnOf returns the element printer numpy would pick for an array with
// these leaves, or nil when the leaves are not all integers or all floats.
func columnOf(leaves []dtype.Value) func(dtype.Value) string {
	if len(leaves) == 0 {
		return nil
	}
	ints, floats := 0, 0
	for _, v := range leaves {
		switch v.Kind {
		case dtype.Int, dtype.Uint:
			ints++
		case dtype.Float:
			floats++
		}
	}
	switch len(leaves) {
	case ints:
		return intColumn(leaves)
	case floats:
		return newFloatColumn(leaves).format
	}
	return nil
}

// intColumn right aligns integers to the widest one.
func intColumn(leaves []dtype.Value) func(dtype.Value) string {
	width := 0
	for _, v := range leaves {
		s, _ := v.Integer()
		width = max(width, len(s))
	}
	return func(v dtype.Value) string {
		s, _ := v.Integer()
		return pad(width-len(s)) + s
	}
}

// Arrays print floats with at most this many fractional digits.
const arrayPrecision = 8

// floatColumn is the layout numpy gives the floats of one array. All
// elements share a notation and are padded around the decimal point.
type floatColumn struct {
	bits      int
	sci       bool
	intWidth  int // sign and digits before the point
	fracWidth int // digits after the point
	expDigits int
}

func newFloatColumn(leaves []dtype.Value) floatColumn {
	c := floatColumn{bits: 32}
	var (
		finite         []float64
		lo, hi         float64
		nonFinite, neg bool
	)
	for _, v := range leaves {
		if v.FloatBits() == 64 {
			c.bits = 64
		}
		x := v.Float
		switch {
		case math.IsNaN(x):
			nonFinite = true
		case math.IsInf(x, 0):
			nonFinite = true
			neg = neg || x < 0
		default:
			finite = append(finite, x)
			if a := math.Abs(x); a != 0 {
				if lo == 0 || a < lo {
					lo = a
				}
				hi = max(hi, a)
			}
		}
	}
	c.sci = hi != 0 && (hi >= 1e8 || lo < 1e-4 || hi/lo > 1e3)

	for _, x := range finite {
		if c.sci {
			mant, exp := scientific(x, c.bits)
			ip, fp := splitPoint(mant)
			c.intWidth = max(c.intWidth, len(ip))
			c.fracWidth = max(c.fracWidth, len(fp))
			c.expDigits = max(c.expDigits, len(exp)-1)
		} else {
			ip, fp := splitPoint(positional(x, c.bits))
			c.intWidth = max(c.intWidth, len(ip))
			c.fracWidth = max(c.fracWidth, len(fp))
		}
	}
	if nonFinite {
		inf := len("inf")
		if neg {
			inf++
		}
		after := c.right() + 1
		c.intWidth = max(c.intWidth, len("nan")-after, inf-after)
	}
	return c
}

// right is the width after the decimal point, exponent included.
func (c floatColumn) right() int {
	if c.sci {
		return c.fracWidth + 2 + c.expDigits
	}
	return c.fracWidth
}

func (c floatColumn) format(v dtype.Value) string {
	x := v.Float
	if math.IsNaN(x) || math.IsInf(x, 0) {
		s := FormatFloat(x, 64)
		return pad(c.intWidth+c.right()+1-len(s)) + s
	}
	if c.sci {
		mant, exp := scientific(x, c.bits)
		ip, fp := splitPoint(mant)
		digits := exp[1:]
		return pad(c.intWidth-len(ip)) + ip + "." + fp + strings.Repeat("0", c.fracWidth-len(fp)) +
			"e" + exp[:1] + strings.Repeat("0", c.expDigits-len(digits)) + digits
	}
	ip, fp := splitPoint(positional(x, c.bits))
	return pad(c.intWidth-len(ip)) + ip + "." + fp + pad(c.fracWidth-len(fp))
}

// positional prints the shortest digits that identify x, rounded to
// arrayPrecision fractional digits.
func positional(x float64, bits int) string {
	s := strconv.FormatFloat(x, 'f', -1, bits)
	if _, fp := splitPoint(s); len(fp) > arrayPrecision {
		s = trimZeros(strconv.FormatFloat(x, 'f', arrayPrecision, bits))
	}
	return s
}

// scientific splits the shortest exponent form of x into mantissa and a
// signed exponent such as "-05".
func scientific(x float64, bits int) (mant, exp string) {
	s := strconv.FormatFloat(x, 'e', -1, bits)
	mant, exp, _ = strings.Cut(s, "e")
	if _, fp := splitPoint(mant); len(fp) > arrayPrecision {
		s = strconv.FormatFloat(x, 'e', arrayPrecision, bits)
		mant, exp, _ = strings.Cut(s, "e")
		mant = trimZeros(mant)
	}
	return mant, exp
}

func splitPoint(s string) (ip, fp string) {
	ip, fp, _ = strings.Cut(s, ".")
	return ip, fp
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	return strings.TrimRight(s, "0")
}

func pad(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// FormatFloat prints the shortest representation that reads back as f at
// the given bit size, always with a '.' or an exponent. Exponents are used
// below 1e-4 and from 1e16 up.
func FormatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if bitSize != 32 {
		bitSize = 64
	}
	e := strconv.FormatFloat(f, 'e', -1, bitSize)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if f != 0 && (exp < -4 || exp >= 16) {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
