// Package viewer holds the browsing state of the GUI independently of any
// widget toolkit: the open stats file, its snapshot labels, the selected
// snapshot and field, and the rendered table.
package viewer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/robert-malhotra/zsimview/internal/render"
	"github.com/robert-malhotra/zsimview/internal/zsim"
)

const (
	BaseTitle   = "ZSim HDF5 Viewer"
	InitialInfo = "Select a snapshot and a field."
	OpenedInfo  = "Select a snapshot on the left, then a field in the middle."
)

// SnapshotError reports a snapshot that could not be read.
type SnapshotError struct {
	Index int
	Err   error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("Failed to read snapshot %d:\n%v", e.Index, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// FieldError reports a field missing from the selected snapshot.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Failed to read field '%s':\n%v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Session is the viewer state. All methods are safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	log    *zap.Logger
	opts   []zsim.Option
	stats  *zsim.Stats
	path   string
	title  string
	info   string
	labels []string

	snapIndex int
	snapshot  *zsim.Snapshot
	fields    []string

	fieldIndex int
	table      *render.Table
}

// NewSession returns an empty session. opts are passed to zsim.Open.
func NewSession(logger *zap.Logger, opts ...zsim.Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{log: logger, opts: append([]zsim.Option{zsim.WithLogger(logger)}, opts...)}
	s.reset()
	return s
}

// reset clears everything but the logger and options.
func (s *Session) reset() {
	s.stats = nil
	s.path = ""
	s.title = BaseTitle
	s.info = InitialInfo
	s.labels = nil
	s.clearSnapshot()
}

func (s *Session) clearSnapshot() {
	s.snapIndex = -1
	s.snapshot = nil
	s.fields = nil
	s.clearField()
}

func (s *Session) clearField() {
	s.fieldIndex = -1
	s.table = nil
}

func (s *Session) closeStats() {
	if s.stats == nil {
		return
	}
	if err := s.stats.Close(); err != nil {
		s.log.Warn("closing stats file", zap.String("path", s.path), zap.Error(err))
	}
}

// Open replaces the current file with path. On failure the session is
// left empty and the error returned.
func (s *Session) Open(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeStats()
	s.reset()

	stats, labels, err := s.load(ctx, path)
	if err != nil {
		s.log.Info("open failed", zap.String("path", path), zap.Error(err))
		return err
	}
	s.stats = stats
	s.path = path
	s.labels = labels
	s.title = BaseTitle + " - " + filepath.Base(path)
	s.info = OpenedInfo
	s.log.Info("opened file", zap.String("path", path), zap.Int("snapshots", len(labels)))
	return nil
}

func (s *Session) load(ctx context.Context, path string) (*zsim.Stats, []string, error) {
	stats, err := zsim.Open(path, s.opts...)
	if err != nil {
		return nil, nil, err
	}
	labels, err := stats.Labels(ctx)
	if err != nil {
		stats.Close()
		return nil, nil, err
	}
	return stats, labels, nil
}

// Close closes the file and empties the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeStats()
	s.reset()
}

// SelectSnapshot reads snapshot i and lists its fields. The previously
// selected field stays selected when the new snapshot has it. A negative
// index or an empty session is ignored. When the read fails the session
// is left as it was.
func (s *Session) SelectSnapshot(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectSnapshot(i)
}

func (s *Session) selectSnapshot(i int) error {
	if i < 0 || s.stats == nil {
		return nil
	}
	sn, err := s.stats.Snapshot(i)
	if err != nil {
		// The previous snapshot stays on screen.
		s.log.Warn("snapshot read failed", zap.String("path", s.path), zap.Int("snapshot", i), zap.Error(err))
		return &SnapshotError{Index: i, Err: err}
	}
	prev := s.fieldName()
	s.snapIndex = i
	s.snapshot = &sn
	s.fields = sn.Fields()
	s.clearField()
	s.log.Debug("selected snapshot", zap.Int("snapshot", i), zap.Int("fields", len(s.fields)))

	if j := render.FieldIndex(s.fields, prev); j >= 0 {
		return s.selectField(j)
	}
	s.info = fmt.Sprintf("Snapshot %d selected. Field list updated.\nSelect a field to view values.", i)
	return nil
}

// SelectField renders field i of the selected snapshot. A negative index
// or no selected snapshot is ignored.
func (s *Session) SelectField(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectField(i)
}

func (s *Session) selectField(i int) error {
	if i < 0 || s.snapshot == nil {
		return nil
	}
	if i >= len(s.fields) {
		return &FieldError{Field: fmt.Sprint(i), Err: fmt.Errorf("no field at index %d", i)}
	}
	name := s.fields[i]
	v, ok := s.snapshot.Field(name)
	if !ok {
		return &FieldError{Field: name, Err: fmt.Errorf("not in snapshot %d", s.snapIndex)}
	}
	s.fieldIndex = i
	s.table = render.Build(name, v)
	s.info = s.table.Info
	s.log.Debug("selected field", zap.Int("snapshot", s.snapIndex), zap.String("field", name))
	return nil
}

// SelectFieldByName selects the named field, if the snapshot has it.
func (s *Session) SelectFieldByName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectField(render.FieldIndex(s.fields, name))
}

// Reload reopens the current file and restores the selection, clamping
// the snapshot index to the new snapshot count.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	path, snap, field := s.path, s.snapIndex, s.fieldName()

	stats, labels, err := s.load(ctx, path)
	if err != nil {
		return err
	}
	s.closeStats()
	s.reset()
	s.stats = stats
	s.path = path
	s.labels = labels
	s.title = BaseTitle + " - " + filepath.Base(path)
	s.info = OpenedInfo
	s.log.Debug("reloaded file", zap.String("path", path), zap.Int("snapshots", len(labels)))

	if snap < 0 || len(labels) == 0 {
		return nil
	}
	snap = min(snap, len(labels)-1)
	if err := s.selectSnapshot(snap); err != nil {
		return err
	}
	if j := render.FieldIndex(s.fields, field); j >= 0 && s.fieldIndex != j {
		return s.selectField(j)
	}
	return nil
}

func (s *Session) fieldName() string {
	if s.fieldIndex < 0 || s.fieldIndex >= len(s.fields) {
		return ""
	}
	return s.fields[s.fieldIndex]
}

// Path returns the open file, or "".
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Title returns the window title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Info returns the status text above the table.
func (s *Session) Info() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Labels returns the snapshot labels.
func (s *Session) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}

// Fields returns the fields of the selected snapshot.
func (s *Session) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fields...)
}

// Table returns the rendered field, or nil.
func (s *Session) Table() *render.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// SnapshotIndex returns the selected snapshot, or -1.
func (s *Session) SnapshotIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapIndex
}

// FieldIndex returns the selected field, or -1.
func (s *Session) FieldIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldIndex
}

// FieldName returns the selected field name, or "".
func (s *Session) FieldName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldName()
}
