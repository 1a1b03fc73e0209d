// Package cli holds the zsimview cobra commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/zsimview/internal/config"
	"github.com/robert-malhotra/zsimview/internal/logging"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// RootOptions holds the global flags and what PersistentPreRunE builds
// from them.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	LogFile    string

	Config *config.Config
	Logger *zap.Logger
}

// GUIFunc starts the graphical viewer, opening file when it is not empty.
type GUIFunc func(opts *RootOptions, file string) error

// NewRootCommand creates the zsimview command. Running it without a
// subcommand calls gui.
func NewRootCommand(gui GUIFunc) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "zsimview [file]",
		Short: "Browse ZSim HDF5 statistics",
		Long: "zsimview shows the snapshots stored in a ZSim/BZSim HDF5 stats file.\n" +
			"Without a subcommand it opens the graphical viewer.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			return gui(opts, file)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default is $XDG_CONFIG_HOME/zsimview/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "write logs to this file instead of stderr")

	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewSampleCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// setup loads the config and builds the logger.
func (o *RootOptions) setup() error {
	path := o.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if o.LogFile != "" {
		cfg.Logging.File = o.LogFile
	}
	logger, err := logging.New(cfg.Logging, o.Verbose)
	if err != nil {
		return err
	}
	o.Config = cfg
	o.Logger = logger
	logger.Debug("configuration loaded", zap.String("path", path))
	return nil
}

// NewVersionCommand prints the version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "zsimview %s\n", Version)
			return err
		},
	}
}
