package viewer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/zsimview/internal/hdf5"
	"github.com/robert-malhotra/zsimview/internal/render"
	"github.com/robert-malhotra/zsimview/internal/sample"
	"github.com/robert-malhotra/zsimview/internal/zsim"
)

func writeSample(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, "zsim.h5")
	require.NoError(t, sample.Write(path, sample.Options{Snapshots: n}))
	return path
}

func openSession(t *testing.T, n int) (*Session, string) {
	t.Helper()
	path := writeSample(t, t.TempDir(), n)
	s := NewSession(nil)
	require.NoError(t, s.Open(context.Background(), path))
	t.Cleanup(s.Close)
	return s, path
}

func TestInitialState(t *testing.T) {
	s := NewSession(nil)
	assert.Equal(t, BaseTitle, s.Title())
	assert.Equal(t, InitialInfo, s.Info())
	assert.Empty(t, s.Labels())
	assert.Equal(t, -1, s.SnapshotIndex())
	assert.Equal(t, -1, s.FieldIndex())
	assert.Nil(t, s.Table())

	// nothing open: selections are ignored
	assert.NoError(t, s.SelectSnapshot(0))
	assert.NoError(t, s.SelectField(0))
	assert.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, -1, s.SnapshotIndex())
}

func TestOpen(t *testing.T) {
	s, path := openSession(t, 3)
	assert.Equal(t, path, s.Path())
	assert.Equal(t, "ZSim HDF5 Viewer - zsim.h5", s.Title())
	assert.Equal(t, OpenedInfo, s.Info())
	assert.Equal(t, []string{
		"0: phase=0, time=750",
		"1: phase=10, time=1750",
		"2: phase=20, time=2750",
	}, s.Labels())
	assert.Empty(t, s.Fields())
}

func TestOpenFailureClearsState(t *testing.T) {
	s, _ := openSession(t, 3)
	require.NoError(t, s.SelectSnapshot(1))

	bad := filepath.Join(t.TempDir(), "bad.h5")
	f, err := hdf5.Create(bad)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = s.Open(context.Background(), bad)
	assert.ErrorIs(t, err, zsim.ErrNoStats)
	assert.Equal(t, BaseTitle, s.Title())
	assert.Empty(t, s.Labels())
	assert.Empty(t, s.Fields())
	assert.Equal(t, "", s.Path())
	assert.Equal(t, -1, s.SnapshotIndex())

	notHDF5 := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notHDF5, []byte("not a stats file at all, just text"), 0o644))
	assert.ErrorIs(t, s.Open(context.Background(), notHDF5), hdf5.ErrNotHDF5)
}

func TestSelectSnapshotAndField(t *testing.T) {
	s, _ := openSession(t, 4)

	require.NoError(t, s.SelectSnapshot(2))
	assert.Equal(t, 2, s.SnapshotIndex())
	assert.Equal(t, []string{"phase", "time", "ipc", "sched", "core", "hist", "name"}, s.Fields())
	assert.Equal(t, "Snapshot 2 selected. Field list updated.\nSelect a field to view values.", s.Info())
	assert.Nil(t, s.Table())

	require.NoError(t, s.SelectField(4))
	assert.Equal(t, "core", s.FieldName())
	tbl := s.Table()
	require.NotNil(t, tbl)
	assert.Equal(t, render.SumRow, tbl.Rows[0])
	assert.Equal(t, "Field 'core': SUM row + 4 entries", s.Info())

	// the field survives a snapshot change
	require.NoError(t, s.SelectSnapshot(3))
	assert.Equal(t, 4, s.FieldIndex())
	assert.Equal(t, "4000", s.Table().Cell(1, 0))
	assert.Equal(t, "Field 'core': SUM row + 4 entries", s.Info())

	// ignored
	require.NoError(t, s.SelectField(-1))
	require.NoError(t, s.SelectSnapshot(-1))
	assert.Equal(t, 3, s.SnapshotIndex())

	require.NoError(t, s.SelectFieldByName("ipc"))
	assert.Equal(t, "1.25", s.Table().Cell(0, 0))

	var fe *FieldError
	assert.True(t, errors.As(s.SelectField(99), &fe))
}

func TestSelectSnapshotError(t *testing.T) {
	s, _ := openSession(t, 2)
	err := s.SelectSnapshot(5)
	var se *SnapshotError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 5, se.Index)
	assert.ErrorIs(t, err, zsim.ErrSnapshotRange)
	assert.Contains(t, err.Error(), "Failed to read snapshot 5:")
	assert.Empty(t, s.Fields())
	assert.Equal(t, -1, s.SnapshotIndex())
}

func TestSelectSnapshotErrorKeepsView(t *testing.T) {
	s, _ := openSession(t, 3)
	require.NoError(t, s.SelectSnapshot(1))
	require.NoError(t, s.SelectFieldByName("core"))
	fields := s.Fields()
	tbl := s.Table()
	info := s.Info()

	var se *SnapshotError
	require.ErrorAs(t, s.SelectSnapshot(7), &se)
	assert.Equal(t, 7, se.Index)

	assert.Equal(t, 1, s.SnapshotIndex())
	assert.Equal(t, fields, s.Fields())
	assert.Equal(t, "core", s.FieldName())
	assert.Same(t, tbl, s.Table())
	assert.Equal(t, info, s.Info())
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir, 5)
	s := NewSession(nil)
	require.NoError(t, s.Open(context.Background(), path))
	defer s.Close()

	require.NoError(t, s.SelectSnapshot(4))
	require.NoError(t, s.SelectFieldByName("hist"))

	// the file shrinks: the snapshot index is clamped
	require.NoError(t, sample.Write(path, sample.Options{Snapshots: 3}))
	require.NoError(t, s.Reload(context.Background()))
	assert.Len(t, s.Labels(), 3)
	assert.Equal(t, 2, s.SnapshotIndex())
	assert.Equal(t, "hist", s.FieldName())
	assert.Equal(t, "Field 'hist': 2D array, flattened to length 6", s.Info())

	// a broken file leaves the old state in place
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))
	assert.Error(t, s.Reload(context.Background()))
	assert.Len(t, s.Labels(), 3)
	assert.Equal(t, "hist", s.FieldName())
}

func TestConcurrentAccess(t *testing.T) {
	s, _ := openSession(t, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.SelectSnapshot(i)
			_ = s.SelectField(1)
		}()
		go func() {
			defer wg.Done()
			_ = s.Reload(context.Background())
			_ = s.Labels()
			_ = s.Table()
		}()
	}
	wg.Wait()
	assert.Len(t, s.Labels(), 4)
}
