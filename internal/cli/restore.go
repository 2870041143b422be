package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/signstage/internal/relocate"
)

// RestoreOptions holds flags for the restore command.
type RestoreOptions struct {
	*RootOptions
	BuildDir string
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RestoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Move staged DLLs back to their original locations",
		Long: `Read <staging_dir>/dll_mapping.json and move every staged DLL back to
the path it was harvested from. The mapping file is left in place.

Nothing is moved when the mapping file is missing or malformed. The
first DLL that cannot be moved stops the run.

Exit codes:
  0 - All DLLs restored
  1 - A move failed (staged DLL missing, destination directory gone, ...)
  2 - Command error (missing --build_dir, mapping file missing or corrupt)

Examples:
  signstage restore --build_dir ./build
  signstage restore --build_dir ./build --journal ./signstage.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BuildDir, "build_dir", "", "build root the DLLs were harvested from (required)")
	_ = cmd.MarkFlagRequired("build_dir")

	return cmd
}

func runRestore(opts *RestoreOptions, cmd *cobra.Command) error {
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

	var out io.Writer = io.Discard
	if opts.Format != "json" {
		out = cmd.OutOrStdout()
	}

	s.logger.Debug("restore starting", "build_dir", opts.BuildDir)
	report, err := relocate.Restore(ctx, opts.BuildDir, s.options(opts.RootOptions, out))
	if err != nil {
		return reportError(s.formatter, "restore failed", err, report)
	}

	if opts.Format == "json" {
		return s.formatter.Success(report)
	}
	s.formatter.VerboseLog("Restored %d DLL(s) from %s", report.Moved(), report.StagingDir)
	return nil
}
