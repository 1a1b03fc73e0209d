package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/zsimview/internal/hdf5"
	"github.com/robert-malhotra/zsimview/internal/render"
	"github.com/robert-malhotra/zsimview/internal/zsim"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	All bool
}

// NewSchemaCommand describes the layout of a stats file.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <file>",
		Short: "Describe the snapshot record of a stats file",
		Long: `Print the snapshot count and the field tree of 'root'.

With --all, also list every group and dataset in the file and every
attribute.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd.OutOrStdout(), opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "walk every object and attribute in the file")
	return cmd
}

func runSchema(w io.Writer, opts *SchemaOptions, path string) error {
	stats, err := zsim.Open(path, zsim.WithLogger(opts.Logger))
	if err != nil {
		return err
	}
	defer stats.Close()

	fmt.Fprintf(w, "%s: %d snapshots, superblock v%d\n", stats.Path(), stats.Len(), stats.File().Version())
	if err := zsim.WriteSchema(w, stats.Schema()); err != nil {
		return err
	}
	if !opts.All {
		return nil
	}

	fmt.Fprintln(w)
	if err := writeObjects(w, stats.File()); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return writeAttrs(w, stats.File())
}

// writeObjects lists every group and dataset, indented by depth.
func writeObjects(w io.Writer, f *hdf5.File) error {
	return hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
		depth := strings.Count(path, "/")
		if path == "/" {
			depth = 0
		}
		indent := strings.Repeat("  ", depth)
		switch o := obj.(type) {
		case *hdf5.Group:
			_, err = fmt.Fprintf(w, "%sgroup %s\n", indent, path)
		case *hdf5.Dataset:
			_, err = fmt.Fprintf(w, "%sdataset %s %v %s (%s)\n", indent, path, o.Shape(), o.Datatype(), o.Layout())
		default:
			_, err = fmt.Fprintf(w, "%s%s: %v\n", indent, path, err)
		}
		return err
	})
}

func writeAttrs(w io.Writer, f *hdf5.File) error {
	fmt.Fprintln(w, "attributes")
	return f.WalkAttrs(func(info hdf5.AttrInfo) error {
		if info.Err != nil {
			_, err := fmt.Fprintf(w, "  %s: %v\n", info.Path, info.Err)
			return err
		}
		_, err := fmt.Fprintf(w, "  %s = %s\n", info.Path, render.Format(info.Value))
		return err
	})
}
