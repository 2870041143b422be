package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/signstage/internal/relocate"
)

// HarvestOptions holds flags for the harvest command.
type HarvestOptions struct {
	*RootOptions
	BuildDir string
	Force    bool
}

// NewHarvestCommand creates the harvest command.
func NewHarvestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HarvestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Move signable DLLs into the staging directory",
		Long: `Find every signable DLL in the build tree, record where each came from
in <staging_dir>/dll_mapping.json, and move the DLLs into the staging
directory.

The mapping is written before the first move. If a move fails the run
stops; DLLs already moved stay in staging and can be put back with
restore.

Exit codes:
  0 - All DLLs staged
  1 - A move failed, two DLLs share a name, or staging is already harvested
  2 - Command error (missing --build_dir, build dir not found, bad config)

Examples:
  signstage harvest --build_dir ./build
  signstage harvest --build_dir ./build --staging_dir /mnt/signing --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BuildDir, "build_dir", "", "build root containing libs/ (required)")
	_ = cmd.MarkFlagRequired("build_dir")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "harvest even if staging still holds DLLs from an unrestored cycle")

	return cmd
}

func runHarvest(opts *HarvestOptions, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.checkBuildDir(opts.BuildDir); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, s.logger)
	defer cancel()

	// The move listing is text output only
	var out io.Writer = io.Discard
	if opts.Format != "json" {
		out = cmd.OutOrStdout()
	}
	ropts := s.options(opts.RootOptions, out)
	ropts.Force = opts.Force

	s.logger.Debug("harvest starting", "build_dir", opts.BuildDir, "force", opts.Force)
	report, err := relocate.Harvest(ctx, opts.BuildDir, ropts)
	if err != nil {
		return reportError(s.formatter, "harvest failed", err, report)
	}

	if opts.Format == "json" {
		return s.formatter.Success(report)
	}
	s.formatter.VerboseLog("Staged %d DLL(s) in %s", report.Moved(), report.StagingDir)
	return nil
}
