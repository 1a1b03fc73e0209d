// Package zsim reads the statistics files written by ZSim and BZSim: a
// /stats dataset of compound records, one per snapshot, each holding the
// counter tree under a root member.
package zsim

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/hdf5"
)

var (
	ErrNoStats       = errors.New("file does not contain a 'stats' dataset")
	ErrNoRoot        = errors.New("dataset 'stats' does not contain a 'root' field: this viewer is tailored to ZSim/BZSim files")
	ErrSnapshotRange = errors.New("snapshot index out of range")
)

// DefaultConcurrency bounds the snapshot reads done by Labels.
const DefaultConcurrency = 8

type options struct {
	logger      *zap.Logger
	concurrency int
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger for snapshot reads.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConcurrency sets how many snapshots Labels reads at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Stats is an open statistics file.
type Stats struct {
	file  *hdf5.File
	stats *hdf5.Dataset
	n     int
	opts  options
}

// Open opens path and checks that it holds a ZSim stats dataset. The file
// is closed again when the check fails.
func Open(path string, opts ...Option) (*Stats, error) {
	o := options{logger: zap.NewNop(), concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	ds, err := f.OpenDataset("/stats")
	if err != nil {
		f.Close()
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotDataset) {
			return nil, ErrNoStats
		}
		return nil, err
	}
	dt := ds.Datatype()
	if !dt.IsCompound() {
		f.Close()
		return nil, ErrNoRoot
	}
	if _, ok := dt.Member("root"); !ok {
		f.Close()
		return nil, ErrNoRoot
	}

	n := 0
	if shape := ds.Shape(); len(shape) > 0 {
		n = int(shape[0])
	} else {
		n = 1 // a scalar record
	}
	o.logger.Debug("opened stats file", zap.String("path", path), zap.Int("snapshots", n))
	return &Stats{file: f, stats: ds, n: n, opts: o}, nil
}

// Path returns the path the file was opened from.
func (s *Stats) Path() string { return s.file.Path() }

// Len returns the number of snapshots.
func (s *Stats) Len() int { return s.n }

// File returns the underlying HDF5 file.
func (s *Stats) File() *hdf5.File { return s.file }

// Close closes the file.
func (s *Stats) Close() error { return s.file.Close() }

// Snapshot is the root record of one snapshot.
type Snapshot struct {
	Index int
	Root  dtype.Value
}

// Fields returns the member names of the root record in file order.
func (sn Snapshot) Fields() []string { return sn.Root.FieldNames() }

// Field returns one member of the root record.
func (sn Snapshot) Field(name string) (dtype.Value, bool) { return sn.Root.Field(name) }

// Snapshot reads record i and returns its root member. Only record i is
// read from disk.
func (s *Stats) Snapshot(i int) (Snapshot, error) {
	if i < 0 || i >= s.n {
		return Snapshot{}, fmt.Errorf("%w: %d not in [0, %d)", ErrSnapshotRange, i, s.n)
	}

	var (
		vals []dtype.Value
		err  error
	)
	if s.stats.IsScalar() {
		vals, err = s.stats.ReadValues()
	} else {
		start := make([]uint64, s.stats.Rank())
		count := append([]uint64(nil), s.stats.Shape()...)
		start[0], count[0] = uint64(i), 1
		vals, err = s.stats.ReadValuesAt(start, count)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot %d: %w", i, err)
	}
	if len(vals) == 0 {
		return Snapshot{}, fmt.Errorf("reading snapshot %d: no data", i)
	}
	root, ok := vals[0].Field("root")
	if !ok {
		return Snapshot{}, ErrNoRoot
	}
	s.opts.logger.Debug("read snapshot", zap.Int("snapshot", i), zap.Int("fields", root.Len()))
	return Snapshot{Index: i, Root: root}, nil
}

// Label returns "i: phase=P, time=T" for snapshot i, or just "i" when the
// snapshot has no usable phase or time.
func (s *Stats) Label(i int) string {
	sn, err := s.Snapshot(i)
	if err != nil {
		return strconv.Itoa(i)
	}
	return label(sn)
}

func label(sn Snapshot) string {
	plain := strconv.Itoa(sn.Index)
	phase, ok := sn.Field("phase")
	if !ok {
		return plain
	}
	p, ok := scalarInt(phase)
	if !ok {
		return plain
	}
	tv, ok := sn.Field("time")
	if !ok {
		return plain
	}
	if tv.Kind == dtype.Array {
		flat := tv.Flatten()
		if len(flat) == 0 {
			return plain
		}
		tv = flat[len(flat)-1]
	}
	t, ok := tv.Integer()
	if !ok {
		return plain
	}
	return fmt.Sprintf("%d: phase=%s, time=%s", sn.Index, p, t)
}

// scalarInt prints a numeric scalar, or a one-element array of one, as an
// integer.
func scalarInt(v dtype.Value) (string, bool) {
	if v.Kind == dtype.Array {
		flat := v.Flatten()
		if len(flat) != 1 {
			return "", false
		}
		v = flat[0]
	}
	return v.Integer()
}

// Labels returns the label of every snapshot in order. Snapshots are read
// concurrently, at most the configured number at a time.
func (s *Stats) Labels(ctx context.Context) ([]string, error) {
	labels := make([]string, s.n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency)
	for i := range labels {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			labels[i] = s.Label(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}
