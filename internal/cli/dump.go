package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/zsimview/internal/render"
	"github.com/robert-malhotra/zsimview/internal/zsim"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Snapshot int
	Field    string
	Format   string
}

// NewDumpCommand prints one field of one snapshot as a table.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print a field of a snapshot",
		Long: `Print one field of one snapshot the way the viewer tabulates it.

Without --field, list the snapshot labels and the fields of the chosen
snapshot instead.`,
		Example: `  zsimview dump zsim.h5 -s 3 -f core
  zsimview dump zsim.h5 -f hist --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Snapshot, "snapshot", "s", 0, "snapshot index")
	cmd.Flags().StringVarP(&opts.Field, "field", "f", "", "field name")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table|tsv|csv)")
	return cmd
}

func runDump(cmd *cobra.Command, opts *DumpOptions, path string) error {
	write, err := render.Writer(opts.Format)
	if err != nil {
		return err
	}
	stats, err := zsim.Open(path,
		zsim.WithLogger(opts.Logger),
		zsim.WithConcurrency(opts.Config.Labels.Concurrency))
	if err != nil {
		return err
	}
	defer stats.Close()

	sn, err := stats.Snapshot(opts.Snapshot)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if opts.Field == "" {
		labels, err := stats.Labels(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Snapshots:")
		for _, l := range labels {
			fmt.Fprintf(out, "  %s\n", l)
		}
		fmt.Fprintf(out, "Fields in snapshot %d:\n", sn.Index)
		for _, f := range sn.Fields() {
			fmt.Fprintf(out, "  %s\n", f)
		}
		return nil
	}

	v, ok := sn.Field(opts.Field)
	if !ok {
		return fmt.Errorf("no field %q in snapshot %d", opts.Field, sn.Index)
	}
	t := render.Build(opts.Field, v)
	if opts.Format != "table" {
		// the text table carries its own info line
		fmt.Fprintln(cmd.ErrOrStderr(), t.Info)
	}
	return write(out, t)
}
