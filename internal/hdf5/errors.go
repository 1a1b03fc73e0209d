// Package hdf5 reads HDF5 files in pure Go and writes the subset needed to
// produce simple files: link-message groups, contiguous and chunked datasets
// and attributes.
package hdf5

import (
	"errors"

	"github.com/robert-malhotra/zsimview/internal/superblock"
)

// Common errors. Lookup failures wrap these, so test them with errors.Is.
var (
	ErrNotHDF5     = superblock.ErrNotHDF5
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
	ErrNotWritable = errors.New("file is not writable")
)
