// Command zsimview browses ZSim HDF5 statistics files.
package main

import (
	"fmt"
	"os"

	"fyne.io/fyne/v2/app"
	"go.uber.org/zap"

	"github.com/robert-malhotra/zsimview/internal/cli"
	"github.com/robert-malhotra/zsimview/internal/state"
	"github.com/robert-malhotra/zsimview/internal/ui"
)

const appID = "io.github.robert-malhotra.zsimview"

func main() {
	if err := cli.NewRootCommand(runGUI).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runGUI(opts *cli.RootOptions, file string) error {
	undo := zap.ReplaceGlobals(opts.Logger)
	defer undo()

	statePath, err := state.DefaultPath()
	if err != nil {
		return err
	}
	st, err := state.Load(statePath)
	if err != nil {
		opts.Logger.Warn("ignoring unreadable state", zap.String("path", statePath), zap.Error(err))
		st = state.New()
	}

	v := ui.New(app.NewWithID(appID), ui.Options{
		Config:    opts.Config,
		State:     st,
		StatePath: statePath,
		File:      file,
		Logger:    opts.Logger,
	})
	v.ShowAndRun()
	return nil
}
