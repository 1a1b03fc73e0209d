package hdf5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/zsimview/internal/alloc"
	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/message"
	"github.com/robert-malhotra/zsimview/internal/object"
	"github.com/robert-malhotra/zsimview/internal/superblock"
)

// File is an open HDF5 file. Reads may run concurrently; writes may not.
type File struct {
	path       string
	file       *os.File
	reader     *binpkg.Reader
	decoder    *dtype.Decoder
	superblock *superblock.Superblock
	root       *Group
	closed     bool

	// Files reached through external links, keyed by the name in the link.
	external map[string]*File

	writable  bool
	writer    *binpkg.Writer
	allocator *alloc.Allocator
}

// Open opens path read-only.
func Open(path string) (*File, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r := binpkg.NewReader(osFile, sb.ReaderConfig())
	f := &File{path: path, file: osFile, reader: r, decoder: dtype.NewDecoder(r), superblock: sb}
	if f.root, err = f.groupAt(sb.RootGroupAddress, "/"); err != nil {
		osFile.Close()
		return nil, fmt.Errorf("%s: root group: %w", path, err)
	}
	return f, nil
}

// Close releases the file and every file opened through its external
// links. A writable file is flushed first.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	var errs []error
	if f.writable {
		errs = append(errs, f.Flush())
	}
	for _, ext := range f.external {
		errs = append(errs, ext.Close())
	}
	f.external = nil
	errs = append(errs, f.file.Close())
	return errors.Join(errs...)
}

func (f *File) Root() *Group     { return f.root }
func (f *File) Path() string     { return f.path }
func (f *File) Version() int     { return int(f.superblock.Version) }
func (f *File) IsWritable() bool { return f.writable }

// OpenGroup opens the group at an absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens the dataset at an absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// ReadAttr decodes the attribute named by an attribute path such as
// "/stats@snapshots".
func (f *File) ReadAttr(attrPath string) (dtype.Value, error) {
	if f.closed {
		return dtype.Value{}, ErrClosed
	}
	objPath, name, err := ParseAttrPath(attrPath)
	if err != nil {
		return dtype.Value{}, err
	}
	obj, err := f.root.open(objPath)
	if err != nil {
		return dtype.Value{}, err
	}
	var attr *Attribute
	switch o := obj.(type) {
	case *Group:
		attr = o.Attr(name)
	case *Dataset:
		attr = o.Attr(name)
	}
	if attr == nil {
		return dtype.Value{}, fmt.Errorf("attribute %s: %w", attrPath, ErrNotFound)
	}
	return attr.Value()
}

func (f *File) readHeader(addr uint64) (*object.Header, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return h, nil
}

func (f *File) groupAt(addr uint64, path string) (*Group, error) {
	h, err := f.readHeader(addr)
	if err != nil {
		return nil, err
	}
	return &Group{node: node{file: f, path: path, addr: addr, header: h}}, nil
}

func (f *File) datasetAt(addr uint64, path string) (*Dataset, error) {
	h, err := f.readHeader(addr)
	if err != nil {
		return nil, err
	}
	return newDataset(node{file: f, path: path, addr: addr, header: h})
}

// externalFile opens a file named by an external link relative to this
// file's directory. It stays open until f is closed.
func (f *File) externalFile(name string) (*File, error) {
	if ext, ok := f.external[name]; ok {
		return ext, nil
	}
	ext, err := Open(filepath.Join(filepath.Dir(f.path), name))
	if err != nil {
		return nil, fmt.Errorf("external link: %w", err)
	}
	if f.external == nil {
		f.external = make(map[string]*File)
	}
	f.external[name] = ext
	return ext, nil
}

// node holds what groups and datasets share: where the object lives and
// its header.
type node struct {
	file   *File
	path   string
	addr   uint64
	header *object.Header
}

// Name is the last component of the path, "/" for the root group.
func (n *node) Name() string { return baseName(n.path) }
func (n *node) Path() string { return n.path }

func (n *node) isDataset() bool { return n.header.Find(message.TypeDataspace) != nil }

// Attrs lists attribute names in header order.
func (n *node) Attrs() []string {
	var names []string
	for _, m := range n.header.FindAll(message.TypeAttribute) {
		names = append(names, m.(*message.Attribute).Name)
	}
	return names
}

// Attr returns the named attribute, or nil.
func (n *node) Attr(name string) *Attribute {
	for _, m := range n.header.FindAll(message.TypeAttribute) {
		if a := m.(*message.Attribute); a.Name == name {
			return &Attribute{msg: a, decoder: n.file.decoder}
		}
	}
	return nil
}
