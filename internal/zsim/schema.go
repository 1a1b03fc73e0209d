package zsim

import (
	"fmt"
	"io"
	"strings"

	"github.com/robert-malhotra/zsimview/internal/message"
)

// FieldInfo describes one member of the root record.
type FieldInfo struct {
	Name    string
	Class   string      // class of the element type, e.g. "integer" or "compound"
	Type    string      // element type, e.g. "<u8"
	Shape   []uint64    // array dimensions, nil for a scalar member
	Members []FieldInfo // members of a compound element
}

// Schema returns the field tree of the root record.
func (s *Stats) Schema() []FieldInfo {
	root, _ := s.stats.Datatype().Member("root")
	return members(root.Type)
}

func members(dt *message.Datatype) []FieldInfo {
	if dt == nil || !dt.IsCompound() {
		return nil
	}
	out := make([]FieldInfo, len(dt.Members))
	for i, m := range dt.Members {
		out[i] = describe(m.Name, m.Type)
	}
	return out
}

func describe(name string, dt *message.Datatype) FieldInfo {
	fi := FieldInfo{Name: name}
	for dt.IsArray() && dt.BaseType != nil {
		for _, d := range dt.ArrayDims {
			fi.Shape = append(fi.Shape, uint64(d))
		}
		dt = dt.BaseType
	}
	fi.Class = dt.Class.String()
	fi.Type = dt.String()
	fi.Members = members(dt)
	return fi
}

// WriteSchema prints fields as an indented tree, one member per line.
func WriteSchema(w io.Writer, fields []FieldInfo) error {
	return writeFields(w, fields, 0)
}

func writeFields(w io.Writer, fields []FieldInfo, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		typ := f.Type
		if f.Members != nil {
			typ = "compound"
		}
		shape := ""
		for _, d := range f.Shape {
			shape += fmt.Sprintf("[%d]", d)
		}
		if _, err := fmt.Fprintf(w, "%s%s %s%s\n", indent, f.Name, shape, typ); err != nil {
			return err
		}
		if err := writeFields(w, f.Members, depth+1); err != nil {
			return err
		}
	}
	return nil
}
