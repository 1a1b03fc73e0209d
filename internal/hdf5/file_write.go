package hdf5

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/zsimview/internal/alloc"
	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/object"
	"github.com/robert-malhotra/zsimview/internal/superblock"
)

// Create creates a new HDF5 file at path with a version 3 superblock,
// eight byte addresses and version 2 object headers. The file stays
// readable while it is written.
func Create(path string) (*File, error) {
	osFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	fail := func(err error) (*File, error) {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	cfg := binpkg.DefaultConfig()
	writer := binpkg.NewWriter(osFile, cfg)
	reader := binpkg.NewReader(osFile, cfg)

	sb := superblock.New()

	// The root group header follows the superblock directly.
	sbSize := sb.Size()
	rootAddr := uint64(sbSize)
	sb.RootGroupAddress = rootAddr
	rootHeader, err := object.Encode(object.GroupMessages(), cfg, object.MinGroupChunkSize)
	if err != nil {
		return fail(fmt.Errorf("encoding root group: %w", err))
	}
	sb.EOFAddress = uint64(sbSize + len(rootHeader))

	if _, err := sb.Write(writer); err != nil {
		return fail(fmt.Errorf("writing superblock: %w", err))
	}
	if err := writer.At(int64(rootAddr)).WriteBytes(rootHeader); err != nil {
		return fail(fmt.Errorf("writing root group: %w", err))
	}

	f := &File{
		path:       path,
		file:       osFile,
		reader:     reader,
		decoder:    dtype.NewDecoder(reader),
		superblock: sb,
		writable:   true,
		writer:     writer,
		allocator:  alloc.New(sb.EOFAddress),
	}
	if f.root, err = f.groupAt(rootAddr, "/"); err != nil {
		return fail(fmt.Errorf("reading back root group: %w", err))
	}
	return f, nil
}

// Flush rewrites the superblock with the current root group address and
// end of file, then syncs the file to disk.
func (f *File) Flush() error {
	if !f.writable {
		return nil
	}
	f.superblock.EOFAddress = f.allocator.EOF()
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return f.file.Sync()
}

// allocate reserves size bytes at the end of the file.
func (f *File) allocate(size int64) uint64 {
	return f.allocator.Alloc(uint64(size), "")
}

// allocateTagged is allocate with a label kept for Validate reports.
func (f *File) allocateTagged(size int, tag string) uint64 {
	return f.allocator.Alloc(uint64(size), tag)
}

// checkWritable fails unless the file is open for writing.
func (f *File) checkWritable() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrNotWritable
	}
	return nil
}
