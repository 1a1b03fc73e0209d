// Package ui is the Fyne front-end of the viewer: a snapshot list, a
// field list and a table of the selected field's values.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/robert-malhotra/zsimview/internal/config"
	"github.com/robert-malhotra/zsimview/internal/render"
	"github.com/robert-malhotra/zsimview/internal/state"
	"github.com/robert-malhotra/zsimview/internal/viewer"
	"github.com/robert-malhotra/zsimview/internal/watch"
	"github.com/robert-malhotra/zsimview/internal/zsim"
)

// Options configure the viewer window.
type Options struct {
	Config    *config.Config
	State     *state.State
	StatePath string // where State is saved on quit; empty skips saving
	File      string // opened at start instead of the last file
	Logger    *zap.Logger
}

// Viewer is the main window.
type Viewer struct {
	app  fyne.App
	win  fyne.Window
	sess *viewer.Session
	log  *zap.Logger

	cfg       *config.Config
	st        *state.State
	statePath string

	ctx    context.Context
	cancel context.CancelFunc

	// widget data, only touched on the UI goroutine
	labels []string
	fields []string
	table  *render.Table
	sync   bool // set while refresh moves the selection

	snapList  *widget.List
	fieldList *widget.List
	info      *widget.Label
	grid      *widget.Table

	menu      *fyne.MainMenu
	darkItem  *fyne.MenuItem
	watchItem *fyne.MenuItem
	dark      bool
	watching  bool
	watcher   *watch.Watcher
}

// New builds the viewer window and opens the file from opts, or restores
// the last session when no file is given.
func New(a fyne.App, opts Options) *Viewer {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.State == nil {
		opts.State = state.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		app:       a,
		win:       a.NewWindow(viewer.BaseTitle),
		sess:      viewer.NewSession(opts.Logger, zsim.WithConcurrency(opts.Config.Labels.Concurrency)),
		log:       opts.Logger,
		cfg:       opts.Config,
		st:        opts.State,
		statePath: opts.StatePath,
		ctx:       ctx,
		cancel:    cancel,
		dark:      opts.State.DarkMode || opts.Config.Theme == "dark",
		watching:  opts.Config.Watch.Enabled && opts.State.Watch,
	}

	v.app.Settings().SetTheme(themeFor(v.dark, v.cfg.Theme))
	v.win.SetContent(v.buildContent())
	v.buildMenu()
	v.win.Resize(v.initialSize())
	v.win.SetCloseIntercept(v.Quit)

	switch {
	case opts.File != "":
		v.OpenFile(opts.File)
	case v.st.LastFile != "":
		v.restore()
	}
	return v
}

func (v *Viewer) initialSize() fyne.Size {
	if w := v.st.Window; w.Width > 0 && w.Height > 0 {
		return fyne.NewSize(w.Width, w.Height)
	}
	return fyne.NewSize(v.cfg.Window.Width, v.cfg.Window.Height)
}

// Window returns the main window.
func (v *Viewer) Window() fyne.Window { return v.win }

// ShowAndRun shows the window and runs the application loop.
func (v *Viewer) ShowAndRun() { v.win.ShowAndRun() }

func (v *Viewer) buildContent() fyne.CanvasObject {
	v.snapList = widget.NewList(
		func() int { return len(v.labels) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(v.labels[id])
		},
	)
	v.snapList.OnSelected = v.onSnapshotSelected

	v.fieldList = widget.NewList(
		func() int { return len(v.fields) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(v.fields[id])
		},
	)
	v.fieldList.OnSelected = v.onFieldSelected

	v.info = widget.NewLabel(v.sess.Info())
	v.info.Wrapping = fyne.TextWrapWord

	v.grid = widget.NewTableWithHeaders(
		func() (int, int) {
			if v.table == nil {
				return 0, 0
			}
			return v.table.NumRows(), v.table.NumColumns()
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(v.table.Cell(id.Row, id.Col))
		},
	)
	v.grid.CreateHeader = func() fyne.CanvasObject {
		return widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	}
	v.grid.UpdateHeader = func(id widget.TableCellID, o fyne.CanvasObject) {
		o.(*widget.Label).SetText(v.headerText(id))
	}

	left := container.NewBorder(widget.NewLabel("Snapshots"), nil, nil, nil, v.snapList)
	middle := container.NewBorder(widget.NewLabel("Fields in snapshot"), nil, nil, nil, v.fieldList)
	right := container.NewBorder(v.info, nil, nil, nil, v.grid)

	inner := container.NewHSplit(middle, right)
	inner.SetOffset(0.25)
	outer := container.NewHSplit(left, inner)
	outer.SetOffset(0.2)
	return outer
}

func (v *Viewer) headerText(id widget.TableCellID) string {
	if v.table == nil {
		return ""
	}
	switch {
	case id.Row < 0 && id.Col >= 0 && id.Col < len(v.table.Columns):
		return v.table.Columns[id.Col]
	case id.Col < 0 && id.Row >= 0 && id.Row < len(v.table.Rows):
		return v.table.Rows[id.Row]
	}
	return ""
}

func (v *Viewer) buildMenu() {
	v.darkItem = fyne.NewMenuItem("Dark mode", func() { v.SetDarkMode(!v.dark) })
	v.darkItem.Checked = v.dark
	v.watchItem = fyne.NewMenuItem("Watch file for changes", func() { v.SetWatch(!v.watching) })
	v.watchItem.Checked = v.watching

	recent := fyne.NewMenuItem("Open Recent", nil)
	var items []*fyne.MenuItem
	for _, p := range v.st.Recent {
		items = append(items, fyne.NewMenuItem(p, func() { v.OpenFile(p) }))
	}
	if len(items) == 0 {
		recent.Disabled = true
	}
	recent.ChildMenu = fyne.NewMenu("", items...)

	file := fyne.NewMenu("File",
		fyne.NewMenuItem("Open HDF5...", v.showOpenDialog),
		recent,
		fyne.NewMenuItem("Reload", v.Reload),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", v.Quit),
	)
	file.Items[len(file.Items)-1].IsQuit = true
	view := fyne.NewMenu("View", v.darkItem, v.watchItem)
	v.menu = fyne.NewMainMenu(file, view)
	v.win.SetMainMenu(v.menu)
}

func (v *Viewer) showOpenDialog() {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, v.win)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		rc.Close()
		v.OpenFile(path)
	}, v.win)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".h5", ".hdf5"}))
	if cwd, err := os.Getwd(); err == nil {
		if dir, err := storage.ListerForURI(storage.NewFileURI(cwd)); err == nil {
			d.SetLocation(dir)
		}
	}
	d.Show()
}

// OpenFile opens path, replacing the current file.
func (v *Viewer) OpenFile(path string) {
	err := v.sess.Open(v.ctx, path)
	v.refresh()
	if err != nil {
		v.showOpenError(err)
		v.updateWatch()
		return
	}
	v.st.AddRecent(path)
	v.buildMenu()
	v.updateWatch()
}

func (v *Viewer) showOpenError(err error) {
	if !errors.Is(err, zsim.ErrNoStats) && !errors.Is(err, zsim.ErrNoRoot) {
		err = fmt.Errorf("Failed to open file:\n%w", err)
	}
	dialog.ShowError(err, v.win)
}

// restore reopens the last file with its snapshot and field. A file
// that has gone away is skipped silently.
func (v *Viewer) restore() {
	path := v.st.LastFile
	if _, err := os.Stat(path); err != nil {
		v.log.Info("last file unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	if err := v.sess.Open(v.ctx, path); err != nil {
		v.log.Info("restoring last file", zap.String("path", path), zap.Error(err))
		v.refresh()
		return
	}
	if i := v.st.LastSnapshot; i >= 0 {
		i = min(i, len(v.sess.Labels())-1)
		if err := v.sess.SelectSnapshot(i); err != nil {
			v.log.Info("restoring snapshot", zap.Int("snapshot", i), zap.Error(err))
		} else if v.st.LastField != "" {
			_ = v.sess.SelectFieldByName(v.st.LastField)
		}
	}
	v.refresh()
	v.updateWatch()
}

func (v *Viewer) onSnapshotSelected(id widget.ListItemID) {
	if v.sync {
		return
	}
	if err := v.sess.SelectSnapshot(id); err != nil {
		dialog.ShowError(err, v.win)
	}
	v.refresh()
}

func (v *Viewer) onFieldSelected(id widget.ListItemID) {
	if v.sync {
		return
	}
	if err := v.sess.SelectField(id); err != nil {
		dialog.ShowError(err, v.win)
	}
	v.refresh()
}

// Reload rereads the current file, keeping the selection.
func (v *Viewer) Reload() {
	if err := v.sess.Reload(v.ctx); err != nil {
		dialog.ShowError(err, v.win)
	}
	v.refresh()
}

// onFileChanged runs on the watcher goroutine. A file that is still being
// written may not parse yet; the next event retries.
func (v *Viewer) onFileChanged(path string) {
	if err := v.sess.Reload(v.ctx); err != nil {
		v.log.Warn("reload after change failed", zap.String("path", path), zap.Error(err))
		return
	}
	v.log.Info("reloaded changed file", zap.String("path", path))
	fyne.Do(v.refresh)
}

// refresh copies the session into the widgets.
func (v *Viewer) refresh() {
	v.sync = true
	defer func() { v.sync = false }()

	v.win.SetTitle(v.sess.Title())
	v.info.SetText(v.sess.Info())
	v.labels = v.sess.Labels()
	v.fields = v.sess.Fields()
	v.table = v.sess.Table()

	v.snapList.Refresh()
	if i := v.sess.SnapshotIndex(); i >= 0 && i < len(v.labels) {
		v.snapList.Select(i)
	} else {
		v.snapList.UnselectAll()
	}
	v.fieldList.Refresh()
	if i := v.sess.FieldIndex(); i >= 0 && i < len(v.fields) {
		v.fieldList.Select(i)
	} else {
		v.fieldList.UnselectAll()
	}
	v.sizeColumns()
	v.grid.Refresh()
}

// sizeColumns fits each column to its widest cell.
func (v *Viewer) sizeColumns() {
	if v.table == nil {
		return
	}
	pad := 4 * theme.Padding()
	for c, name := range v.table.Columns {
		w := fyne.MeasureText(name, theme.TextSize(), fyne.TextStyle{Bold: true}).Width
		for r := range v.table.Rows {
			w = max(w, fyne.MeasureText(v.table.Cell(r, c), theme.TextSize(), fyne.TextStyle{}).Width)
		}
		v.grid.SetColumnWidth(c, min(w+pad, 600))
	}
}

// SetDarkMode switches between the dark variant and the configured theme.
func (v *Viewer) SetDarkMode(on bool) {
	v.dark = on
	v.darkItem.Checked = on
	v.menu.Refresh()
	v.app.Settings().SetTheme(themeFor(on, v.cfg.Theme))
}

// SetWatch turns reloading on file changes on or off.
func (v *Viewer) SetWatch(on bool) {
	v.watching = on
	v.watchItem.Checked = on
	v.menu.Refresh()
	v.updateWatch()
}

// updateWatch points the watcher at the open file, or stops it.
func (v *Viewer) updateWatch() {
	path := v.sess.Path()
	if !v.watching || path == "" {
		v.stopWatch()
		return
	}
	if v.watcher == nil {
		w, err := watch.New(v.log, v.cfg.Watch.Debounce, v.onFileChanged)
		if err != nil {
			v.log.Warn("file watching unavailable", zap.Error(err))
			return
		}
		if err := w.Start(v.ctx); err != nil {
			v.log.Warn("file watching unavailable", zap.Error(err))
			w.Stop()
			return
		}
		v.watcher = w
	}
	abs, _ := filepath.Abs(path)
	for _, f := range v.watcher.Files() {
		if f != abs {
			_ = v.watcher.Remove(f)
		}
	}
	if err := v.watcher.Add(path); err != nil {
		v.log.Warn("watching file", zap.String("path", path), zap.Error(err))
	}
}

func (v *Viewer) stopWatch() {
	if v.watcher != nil {
		v.watcher.Stop()
		v.watcher = nil
	}
}

// saveState records the current file, selection, toggles and window
// size in the state file.
func (v *Viewer) saveState() {
	v.st.LastFile = v.sess.Path()
	v.st.LastSnapshot = v.sess.SnapshotIndex()
	v.st.LastField = v.sess.FieldName()
	v.st.DarkMode = v.dark
	v.st.Watch = v.watching
	size := v.win.Canvas().Size()
	if size.Width > 0 && size.Height > 0 {
		v.st.Window = state.Window{Width: size.Width, Height: size.Height}
	}
	if v.statePath == "" {
		return
	}
	if err := v.st.Save(v.statePath); err != nil {
		v.log.Warn("saving state", zap.String("path", v.statePath), zap.Error(err))
	}
}

// Shutdown saves state and releases the file and watcher without quitting
// the application.
func (v *Viewer) Shutdown() {
	v.saveState()
	v.stopWatch()
	v.cancel()
	v.sess.Close()
}

// Quit saves state and exits.
func (v *Viewer) Quit() {
	v.Shutdown()
	v.app.Quit()
}
