package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/message"
)

// MaxLinkDepth bounds the soft and external links one lookup may follow.
const MaxLinkDepth = 100

// resolver walks paths across links. It remembers each link target it has
// followed so a cycle fails instead of recursing forever.
type resolver struct {
	hops int
	seen map[string]bool
}

func newResolver() *resolver {
	return &resolver{seen: make(map[string]bool)}
}

// walk descends from start through names. Paths of the nodes it returns
// are the ones the caller asked for, not the link targets.
func (r *resolver) walk(start node, names []string) (node, error) {
	cur := start
	for _, name := range names {
		if cur.isDataset() {
			return node{}, fmt.Errorf("%s: %w", cur.path, ErrNotGroup)
		}
		next, err := r.child(&Group{node: cur}, name)
		if err != nil {
			return node{}, err
		}
		next.path = childPath(cur.path, name)
		cur = next
	}
	return cur, nil
}

func (r *resolver) child(g *Group, name string) (node, error) {
	mems, err := g.members()
	if err != nil {
		return node{}, err
	}
	for _, m := range mems {
		if m.name == name {
			return r.follow(g.file, m)
		}
	}
	return node{}, fmt.Errorf("%s: %w", childPath(g.path, name), ErrNotFound)
}

func (r *resolver) follow(f *File, m member) (node, error) {
	switch m.kind {
	case message.LinkTypeHard:
		h, err := f.readHeader(m.addr)
		if err != nil {
			return node{}, err
		}
		return node{file: f, addr: m.addr, header: h}, nil
	case message.LinkTypeSoft:
		if err := r.visit(f.path + ":" + m.target); err != nil {
			return node{}, err
		}
		return r.walk(f.root.node, splitPath(m.target))
	case message.LinkTypeExternal:
		if err := r.visit(m.file + ":" + m.target); err != nil {
			return node{}, err
		}
		ext, err := f.externalFile(m.file)
		if err != nil {
			return node{}, err
		}
		return r.walk(ext.root.node, splitPath(m.target))
	}
	return node{}, fmt.Errorf("%w: link %q of type %d", ErrUnsupported, m.name, m.kind)
}

func (r *resolver) visit(key string) error {
	r.hops++
	if r.hops > MaxLinkDepth {
		return fmt.Errorf("%w: following %s", ErrLinkDepth, key)
	}
	if r.seen[key] {
		return fmt.Errorf("%w: link cycle through %s", ErrLinkDepth, key)
	}
	r.seen[key] = true
	return nil
}
