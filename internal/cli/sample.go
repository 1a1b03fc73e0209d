package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/zsimview/internal/sample"
)

// NewSampleCommand writes a small synthetic stats file.
func NewSampleCommand(rootOpts *RootOptions) *cobra.Command {
	var opts sample.Options

	cmd := &cobra.Command{
		Use:   "sample <out>",
		Short: "Write a synthetic ZSim stats file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sample.Write(args[0], opts); err != nil {
				return fmt.Errorf("writing %s: %w", args[0], err)
			}
			rootOpts.Logger.Info("sample written",
				zap.String("path", args[0]),
				zap.Int("snapshots", opts.Snapshots))
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Snapshots, "snapshots", 5, "number of snapshots")
	cmd.Flags().IntVar(&opts.ChunkRows, "chunk-rows", 2, "snapshots per chunk")
	cmd.Flags().IntVar(&opts.Compression, "compression", 0, "deflate level, 0 to store chunks unfiltered")
	return cmd
}
