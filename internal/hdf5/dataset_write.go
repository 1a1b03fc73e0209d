package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/filter"
	"github.com/robert-malhotra/zsimview/internal/heap"
	"github.com/robert-malhotra/zsimview/internal/layout"
	"github.com/robert-malhotra/zsimview/internal/message"
	"github.com/robert-malhotra/zsimview/internal/object"
)

// CreateDataset writes a dataset of dims elements of type dt whose
// row-major bytes are raw, and links it into g. Empty dims make a scalar.
// Without WithChunks the data is stored contiguously. Chunked data that
// fits one chunk uses a single-chunk index and anything larger a fixed
// array index.
func (g *Group) CreateDataset(name string, dt *message.Datatype, dims []uint64, raw []byte, opts ...DatasetOption) (*Dataset, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if dt == nil || dt.Size == 0 {
		return nil, fmt.Errorf("dataset %q: datatype with a size is required", name)
	}

	cfg := &datasetConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	dataspace, err := newDataspace(dims, cfg.maxDims)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if want := dataspace.NumElements() * uint64(dt.Size); uint64(len(raw)) != want {
		return nil, fmt.Errorf("dataset %q: need %d bytes of data, have %d", name, want, len(raw))
	}

	pipeline := cfg.pipeline(dt.Size)
	if pipeline != nil && cfg.chunks == nil {
		return nil, fmt.Errorf("dataset %q: filters need a chunked layout", name)
	}

	var lay *message.DataLayout
	if cfg.chunks != nil {
		lay, err = g.file.writeChunked(dt, dataspace.Dimensions, raw, cfg.chunks, pipeline)
	} else {
		lay, err = g.file.writeContiguous(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	messages := object.DatasetMessages(dataspace, dt, lay)
	if pipeline != nil {
		messages = append(messages, pipeline)
	}
	for _, a := range cfg.attrs {
		attr, err := newAttribute(a.name, a.value)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		messages = append(messages, attr)
	}

	addr, err := g.file.writeHeader(messages, 0, "dataset header")
	if err != nil {
		return nil, fmt.Errorf("writing dataset %q header: %w", name, err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, fmt.Errorf("linking dataset %q: %w", name, err)
	}
	return g.file.datasetAt(addr, childPath(g.path, name))
}

// CreateStringDataset writes a 1-D dataset of variable-length UTF-8
// strings. The strings themselves go into one global heap collection.
func (g *Group) CreateStringDataset(name string, values []string, opts ...DatasetOption) (*Dataset, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	offsetSize := g.file.writer.OffsetSize()
	gh := heap.NewCollectionWriter(g.file.writer, g.file.allocate)
	for _, s := range values {
		gh.AddString(s)
	}
	ids, err := gh.Write()
	if err != nil {
		return nil, fmt.Errorf("dataset %q: writing strings: %w", name, err)
	}

	dt := message.NewVarLenStringDatatype(offsetSize, message.CharsetUTF8)
	raw := make([]byte, 0, len(values)*int(dt.Size))
	for i, s := range values {
		raw = heap.AppendVarLen(raw, uint32(len(s)), ids[i], offsetSize)
	}
	return g.CreateDataset(name, dt, []uint64{uint64(len(values))}, raw, opts...)
}

// newDataspace builds a scalar or simple dataspace. A zero maximum
// dimension means unlimited.
func newDataspace(dims, maxDims []uint64) (*message.Dataspace, error) {
	if len(dims) == 0 {
		return message.NewScalarDataspace(), nil
	}
	if maxDims == nil {
		return message.NewDataspace(dims, nil), nil
	}
	if len(maxDims) != len(dims) {
		return nil, fmt.Errorf("max dims %v do not match rank %d", maxDims, len(dims))
	}
	limits := make([]uint64, len(maxDims))
	for i, m := range maxDims {
		switch {
		case m == 0:
			limits[i] = ^uint64(0)
		case m < dims[i]:
			return nil, fmt.Errorf("max dim %d smaller than dim %d", m, dims[i])
		default:
			limits[i] = m
		}
	}
	return message.NewDataspace(dims, limits), nil
}

func (f *File) writeContiguous(raw []byte) (*message.DataLayout, error) {
	if len(raw) == 0 {
		return message.NewContiguousLayout(f.writer.UndefinedOffset(), 0), nil
	}
	addr := f.allocateTagged(len(raw), "contiguous data")
	if err := f.writer.At(int64(addr)).WriteBytes(raw); err != nil {
		return nil, fmt.Errorf("writing data: %w", err)
	}
	return message.NewContiguousLayout(addr, uint64(len(raw))), nil
}

func (f *File) writeChunked(dt *message.Datatype, dims []uint64, raw []byte, chunks []uint64, fp *message.FilterPipeline) (*message.DataLayout, error) {
	if len(dims) == 0 {
		dims = []uint64{1}
	}
	if len(chunks) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(chunks), len(dims))
	}
	chunkDims := make([]uint32, len(chunks))
	for i, c := range chunks {
		if c == 0 || c > 1<<32-1 {
			return nil, fmt.Errorf("invalid chunk dimension %d", c)
		}
		chunkDims[i] = uint32(c)
	}

	pipeline, err := filter.NewPipeline(fp)
	if err != nil {
		return nil, err
	}
	pipeline.SetElementSize(int(dt.Size))
	cw := layout.NewChunkWriter(f.writer, chunkDims, dt.Size, pipeline, f.allocate)

	pieces := layout.SplitIntoChunks(raw, dims, chunkDims, dt.Size)
	refs, err := cw.WriteChunks(pieces)
	if err != nil {
		return nil, fmt.Errorf("writing chunks: %w", err)
	}

	if len(refs) == 1 {
		lay := message.NewChunkedLayout(chunkDims, dt.Size, message.ChunkIndexSingleChunk)
		lay.ChunkIndexAddr = refs[0].Address
		if cw.Filtered() {
			lay.FilteredChunkSize = refs[0].Size
		}
		return lay, nil
	}

	indexAddr, pageBits, err := cw.WriteFixedArrayIndex(refs)
	if err != nil {
		return nil, fmt.Errorf("writing chunk index: %w", err)
	}
	lay := message.NewChunkedLayout(chunkDims, dt.Size, message.ChunkIndexFixedArray)
	lay.ChunkIndexAddr = indexAddr
	lay.PageBits = pageBits
	return lay, nil
}

// newAttribute encodes value with a datatype derived from it. An Array
// value becomes a simple dataspace of its elements, anything else a scalar.
func newAttribute(name string, value dtype.Value) (*message.Attribute, error) {
	if name == "" {
		return nil, fmt.Errorf("attribute name cannot be empty")
	}
	elems := []dtype.Value{value}
	space := message.NewScalarDataspace()
	if value.Kind == dtype.Array {
		if len(value.Elems) == 0 {
			return nil, fmt.Errorf("attribute %q: empty array", name)
		}
		elems = value.Elems
		space = message.NewDataspace(value.Dims, nil)
	}

	dt, err := dtype.DatatypeOf(elems[0])
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	if dt.Class == message.ClassString {
		// Size strings to the longest element.
		width := uint32(1)
		for _, e := range elems {
			width = max(width, uint32(len(e.Str)))
		}
		dt = message.NewStringDatatype(width, message.PadNullPad, message.CharsetASCII)
	}
	data, err := dtype.EncodeAll(dt, elems)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	return message.NewAttribute(name, dt, space, data), nil
}
