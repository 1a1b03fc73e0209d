package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/btree"
	"github.com/robert-malhotra/zsimview/internal/heap"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Group is an HDF5 group.
type Group struct {
	node

	// parent is known for groups reached through CreateGroup; writes
	// repoint its link when this header moves.
	parent *Group
	// pendingLinks is the link set the next header rewrite stores.
	pendingLinks []*message.Link
}

// member is one named child of a group, from a link message or a symbol
// table entry.
type member struct {
	name   string
	kind   message.LinkType
	addr   uint64
	target string // soft link path, or the path inside an external file
	file   string
}

// members lists the group's children. New-style groups store link
// messages; old-style groups a symbol table, found for the root of a
// version 0 file in the superblock.
func (g *Group) members() ([]member, error) {
	var out []member
	for _, m := range g.header.FindAll(message.TypeLink) {
		l := m.(*message.Link)
		mem := member{name: l.Name, kind: l.LinkType, addr: l.ObjectAddress, target: l.SoftLinkValue}
		if l.IsExternal() {
			mem.file, mem.target = l.ExternalFile, l.ExternalPath
		}
		out = append(out, mem)
	}
	if len(out) > 0 {
		return out, nil
	}

	st, _ := g.header.Find(message.TypeSymbolTable).(*message.SymbolTable)
	if sb := g.file.superblock; st == nil && g.path == "/" && sb.RootGroupBTreeAddress != 0 {
		st = &message.SymbolTable{BTreeAddress: sb.RootGroupBTreeAddress, LocalHeapAddress: sb.RootGroupLocalHeapAddress}
	}
	if st == nil {
		return nil, nil
	}
	names, err := heap.ReadLocal(g.file.reader, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	entries, err := btree.ReadGroup(g.file.reader, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	for _, e := range entries {
		mem := member{name: e.Name, kind: message.LinkTypeHard, addr: e.Addr}
		if e.Soft {
			mem.kind, mem.target = message.LinkTypeSoft, e.Target
		}
		out = append(out, mem)
	}
	return out, nil
}

// Members returns child names in storage order.
func (g *Group) Members() ([]string, error) {
	mems, err := g.members()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(mems))
	for i, m := range mems {
		names[i] = m.name
	}
	return names, nil
}

// OpenGroup opens a group by a path relative to g.
func (g *Group) OpenGroup(rel string) (*Group, error) {
	obj, err := g.open(rel)
	if err != nil {
		return nil, err
	}
	if grp, ok := obj.(*Group); ok {
		return grp, nil
	}
	return nil, fmt.Errorf("%s: %w", obj.(*Dataset).path, ErrNotGroup)
}

// OpenDataset opens a dataset by a path relative to g.
func (g *Group) OpenDataset(rel string) (*Dataset, error) {
	obj, err := g.open(rel)
	if err != nil {
		return nil, err
	}
	if ds, ok := obj.(*Dataset); ok {
		return ds, nil
	}
	return nil, fmt.Errorf("%s: %w", obj.(*Group).path, ErrNotDataset)
}

// open returns the *Group or *Dataset at rel.
func (g *Group) open(rel string) (any, error) {
	n, err := newResolver().walk(g.node, splitPath(rel))
	if err != nil {
		return nil, err
	}
	if n.isDataset() {
		return newDataset(n)
	}
	if n.addr == g.addr && n.file == g.file {
		return g, nil
	}
	return &Group{node: n}, nil
}
