package hdf5

import (
	"errors"

	"github.com/robert-malhotra/zsimview/internal/dtype"
)

// WalkFunc receives each object met by Walk: a *Group or *Dataset, or nil
// with err set when the object could not be opened. A non-nil return ends
// the walk.
type WalkFunc func(path string, obj any, err error) error

// ErrStopWalk ends a walk without Walk returning an error.
var ErrStopWalk = errors.New("walk stopped")

// Walk visits g and its descendants depth first, each group before its
// members and members in storage order.
func Walk(g *Group, fn WalkFunc) error {
	if err := walk(g, fn); err != nil && !errors.Is(err, ErrStopWalk) {
		return err
	}
	return nil
}

func walk(g *Group, fn WalkFunc) error {
	if err := fn(g.path, g, nil); err != nil {
		return err
	}
	names, err := g.Members()
	if err != nil {
		return fn(g.path, nil, err)
	}
	for _, name := range names {
		obj, err := g.open(name)
		switch o := obj.(type) {
		case *Group:
			err = walk(o, fn)
		case *Dataset:
			err = fn(o.path, o, nil)
		default:
			err = fn(childPath(g.path, name), nil, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// AttrInfo is one attribute met by WalkAttrs.
type AttrInfo struct {
	Path       string // e.g. "/stats@generator"
	ObjectPath string
	ObjectType string // "group" or "dataset"
	Name       string
	Value      dtype.Value
	Err        error // from decoding Value
}

// WalkAttrs calls fn for every attribute in the file. Objects that fail to
// open are skipped.
func (f *File) WalkAttrs(fn func(AttrInfo) error) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, func(path string, obj any, err error) error {
		var n *node
		kind := "group"
		switch o := obj.(type) {
		case *Group:
			n = &o.node
		case *Dataset:
			n, kind = &o.node, "dataset"
		default:
			return nil
		}
		for _, name := range n.Attrs() {
			info := AttrInfo{Path: JoinAttrPath(path, name), ObjectPath: path, ObjectType: kind, Name: name}
			info.Value, info.Err = n.Attr(name).Value()
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
