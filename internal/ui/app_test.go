package ui

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/zsimview/internal/config"
	"github.com/robert-malhotra/zsimview/internal/sample"
	"github.com/robert-malhotra/zsimview/internal/state"
	"github.com/robert-malhotra/zsimview/internal/viewer"
)

func writeSample(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zsim.h5")
	require.NoError(t, sample.Write(path, sample.Options{Snapshots: n}))
	return path
}

func newViewer(t *testing.T, opts Options) *Viewer {
	t.Helper()
	a := test.NewTempApp(t)
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
		opts.Config.Watch.Enabled = false
	}
	v := New(a, opts)
	t.Cleanup(v.Shutdown)
	return v
}

func TestEmptyWindow(t *testing.T) {
	v := newViewer(t, Options{})
	assert.Equal(t, viewer.BaseTitle, v.Window().Title())
	assert.Equal(t, viewer.InitialInfo, v.info.Text)
	assert.Zero(t, v.snapList.Length())
	rows, cols := v.grid.Length()
	assert.Zero(t, rows)
	assert.Zero(t, cols)
}

func TestOpenAndSelect(t *testing.T) {
	path := writeSample(t, 4)
	v := newViewer(t, Options{File: path})

	assert.Equal(t, "ZSim HDF5 Viewer - zsim.h5", v.Window().Title())
	assert.Equal(t, 4, v.snapList.Length())
	assert.Equal(t, "3: phase=30, time=3750", v.labels[3])

	v.snapList.Select(3)
	assert.Equal(t, 3, v.sess.SnapshotIndex())
	require.NotEmpty(t, v.fields)

	core := slices.Index(v.fields, "core")
	require.GreaterOrEqual(t, core, 0)
	v.fieldList.Select(core)
	require.NotNil(t, v.table)

	rows, cols := v.grid.Length()
	assert.Equal(t, 5, rows) // the sum and four cores
	assert.Equal(t, len(v.table.Columns), cols)
	assert.Equal(t, "cycles", v.headerText(widget.TableCellID{Row: -1, Col: 0}))
	assert.Equal(t, "SUM", v.headerText(widget.TableCellID{Row: 0, Col: -1}))
	assert.Equal(t, "4000", v.table.Cell(1, 0))

	// switching snapshot keeps the field
	v.snapList.Select(1)
	assert.Equal(t, "core", v.sess.FieldName())
	assert.Equal(t, core, v.sess.FieldIndex())
}

func TestOpenError(t *testing.T) {
	junk := filepath.Join(t.TempDir(), "junk.h5")
	require.NoError(t, os.WriteFile(junk, []byte("not hdf5 at all"), 0o644))

	v := newViewer(t, Options{})
	v.OpenFile(junk)
	assert.Equal(t, viewer.BaseTitle, v.Window().Title())
	assert.NotNil(t, v.Window().Canvas().Overlays().Top(), "error dialog not shown")
	assert.Empty(t, v.st.Recent)
}

func TestRestoreAndSave(t *testing.T) {
	path := writeSample(t, 5)
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	st := state.New()
	st.LastFile = path
	st.LastSnapshot = 9 // clamped to the last snapshot
	st.LastField = "hist"

	v := newViewer(t, Options{State: st, StatePath: statePath})
	assert.Equal(t, 4, v.sess.SnapshotIndex())
	assert.Equal(t, "hist", v.sess.FieldName())

	v.SetDarkMode(true)
	v.Shutdown()

	saved, err := state.Load(statePath)
	require.NoError(t, err)
	assert.Equal(t, path, saved.LastFile)
	assert.Equal(t, 4, saved.LastSnapshot)
	assert.Equal(t, "hist", saved.LastField)
	assert.True(t, saved.DarkMode)
}

func TestRestoreMissingFile(t *testing.T) {
	st := state.New()
	st.LastFile = filepath.Join(t.TempDir(), "gone.h5")
	v := newViewer(t, Options{State: st})
	assert.Empty(t, v.sess.Path())
	assert.Nil(t, v.Window().Canvas().Overlays().Top())
}

func TestFileChangedReloads(t *testing.T) {
	path := writeSample(t, 2)
	v := newViewer(t, Options{File: path})
	require.Equal(t, 2, v.snapList.Length())

	require.NoError(t, sample.Write(path, sample.Options{Snapshots: 6}))
	v.onFileChanged(path)
	assert.Equal(t, 6, v.snapList.Length())
}

func TestWatchToggle(t *testing.T) {
	path := writeSample(t, 2)
	v := newViewer(t, Options{File: path})
	assert.Nil(t, v.watcher)

	v.SetWatch(true)
	require.NotNil(t, v.watcher)
	assert.True(t, v.watchItem.Checked)
	abs, _ := filepath.Abs(path)
	assert.Equal(t, []string{abs}, v.watcher.Files())

	v.SetWatch(false)
	assert.Nil(t, v.watcher)
}

func TestThemeFor(t *testing.T) {
	base := theme.DefaultTheme()
	bg := theme.ColorNameBackground

	dark := themeFor(true, "light")
	assert.Equal(t, base.Color(bg, theme.VariantDark), dark.Color(bg, theme.VariantLight))

	light := themeFor(false, "dark")
	assert.Equal(t, base.Color(bg, theme.VariantLight), light.Color(bg, theme.VariantDark))

	assert.Equal(t, base, themeFor(false, "system"))
}
