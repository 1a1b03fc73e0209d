package hdf5

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/message"
	"github.com/robert-malhotra/zsimview/internal/object"
)

// CreateGroup creates a new subgroup with the given name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}

	messages := object.GroupMessages()
	addr, err := g.file.writeHeader(messages, object.MinGroupChunkSize, "group header")
	if err != nil {
		return nil, fmt.Errorf("writing group %q: %w", name, err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, fmt.Errorf("linking group %q: %w", name, err)
	}

	child, err := g.file.groupAt(addr, childPath(g.path, name))
	if err != nil {
		return nil, err
	}
	child.parent = g
	return child, nil
}

// CreateSoftLink links name to the absolute path target, which need not exist yet.
func (g *Group) CreateSoftLink(name, target string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	return g.addLink(message.NewSoftLink(name, CleanPath(target)))
}

// CreateExternalLink links name to path inside another file, named
// relative to this file's directory.
func (g *Group) CreateExternalLink(name, file, path string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	return g.addLink(message.NewExternalLink(name, file, CleanPath(path)))
}

func checkName(name string) error {
	if name == "" || name == "." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: object name %q", ErrInvalidPath, name)
	}
	return nil
}

// writeHeader writes an object header at a fresh address and returns it.
func (f *File) writeHeader(messages []message.Message, minChunk int, tag string) (uint64, error) {
	buf, err := object.Encode(messages, f.writer.Config(), minChunk)
	if err != nil {
		return 0, err
	}
	addr := f.allocateTagged(len(buf), tag)
	if err := f.writer.At(int64(addr)).WriteBytes(buf); err != nil {
		return 0, err
	}
	return addr, nil
}

// addLink appends a link to this group and rewrites its header.
func (g *Group) addLink(link *message.Link) error {
	g.loadLinks()
	for _, l := range g.pendingLinks {
		if l.Name == link.Name {
			return fmt.Errorf("%s: name already exists", childPath(g.path, link.Name))
		}
	}
	g.pendingLinks = append(g.pendingLinks, link)
	return g.rewriteHeader()
}

func (g *Group) loadLinks() {
	if g.pendingLinks != nil {
		return
	}
	g.pendingLinks = []*message.Link{}
	for _, msg := range g.header.FindAll(message.TypeLink) {
		g.pendingLinks = append(g.pendingLinks, msg.(*message.Link))
	}
}

// SetAttribute attaches an attribute to the group, replacing any
// attribute of the same name.
func (g *Group) SetAttribute(name string, value dtype.Value) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	attr, err := newAttribute(name, value)
	if err != nil {
		return err
	}
	g.loadLinks()
	return g.rewriteHeader(attr)
}

// rewriteHeader writes the group header with every link at a new address,
// since headers cannot grow in place, and repoints the parent at it.
func (g *Group) rewriteHeader(attrs ...*message.Attribute) error {
	messages := object.GroupMessages(g.pendingLinks...)
	replaced := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		replaced[a.Name] = true
	}
	for _, msg := range g.header.FindAll(message.TypeAttribute) {
		if !replaced[msg.(*message.Attribute).Name] {
			messages = append(messages, msg)
		}
	}
	for _, a := range attrs {
		messages = append(messages, a)
	}
	newAddr, err := g.file.writeHeader(messages, object.MinGroupChunkSize, "group header")
	if err != nil {
		return err
	}
	header, err := g.file.readHeader(newAddr)
	if err != nil {
		return fmt.Errorf("reading back group header: %w", err)
	}
	g.addr, g.header = newAddr, header

	if g.path == "/" {
		g.file.superblock.RootGroupAddress = newAddr
		return nil
	}
	if g.parent == nil {
		return fmt.Errorf("group %s: parent unknown, open it through CreateGroup", g.path)
	}
	name := g.Name()
	for _, link := range g.parent.pendingLinks {
		if link.Name == name {
			link.ObjectAddress = newAddr
		}
	}
	return g.parent.rewriteHeader()
}
