package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/signstage/internal/relocate"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	BuildDir string
}

// StatusResult is the status command output.
type StatusResult struct {
	*relocate.Status

	// LastCycle is the most recent journal entry, when a journal is configured.
	LastCycle *relocate.Cycle `json:"last_cycle,omitempty"`
	LastMoves []relocate.Move `json:"last_moves,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the build dir is in the harvest/restore cycle",
		Long: `Compare the staging directory against its mapping file and report the
cycle state:

  EMPTY      no mapping file
  HARVESTED  mapping file present and at least one listed DLL staged
  RESTORED   mapping file present and none of its DLLs staged

With --journal, the last recorded cycle and its moves are shown too.
Nothing is modified.

Examples:
  signstage status --build_dir ./build
  signstage status --build_dir ./build --journal ./signstage.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BuildDir, "build_dir", "", "build root to inspect (required)")
	_ = cmd.MarkFlagRequired("build_dir")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.checkBuildDir(opts.BuildDir); err != nil {
		return err
	}

	status, err := relocate.Inspect(opts.BuildDir, s.options(opts.RootOptions, nil))
	if err != nil {
		return reportError(s.formatter, "status failed", err, nil)
	}
	result := StatusResult{Status: status}

	j, err := s.openJournal()
	if err != nil {
		return reportCode(s.formatter, ErrCodeJournal, ExitCommandError, "failed to open journal", err, nil)
	}
	if j != nil {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		last, ok, err := j.LastCycle(ctx)
		if err != nil {
			return reportCode(s.formatter, ErrCodeJournal, ExitFailure, "failed to read journal", err, nil)
		}
		if ok {
			moves, err := j.Moves(ctx, last.ID)
			if err != nil {
				return reportCode(s.formatter, ErrCodeJournal, ExitFailure, "failed to read journal", err, nil)
			}
			result.LastCycle = &last
			result.LastMoves = moves
		}
	}

	if opts.Format == "json" {
		return s.formatter.Success(result)
	}
	writeStatusText(s.formatter, result)
	return nil
}

func writeStatusText(f *OutputFormatter, r StatusResult) {
	w := f.Writer
	fmt.Fprintf(w, "State:   %s\n", r.State)
	fmt.Fprintf(w, "Staging: %s\n", r.StagingDir)
	if r.Ledger != nil {
		fmt.Fprintf(w, "Ledger:  %d entr%s\n", r.Ledger.Len(), plural(r.Ledger.Len(), "y", "ies"))
	}
	writeNames(w, "Staged", r.Staged)
	writeNames(w, "Pending", r.Pending)
	writeNames(w, "Unlisted", r.Unlisted)

	if r.LastCycle != nil {
		moved := 0
		for _, m := range r.LastMoves {
			if m.Status == relocate.MoveDone {
				moved++
			}
		}
		fmt.Fprintf(w, "Last cycle: %s %s (%d of %d moved)\n",
			r.LastCycle.Mode, r.LastCycle.ID, moved, len(r.LastMoves))
		for _, m := range r.LastMoves {
			if m.Status == relocate.MoveFailed {
				fmt.Fprintf(w, "  failed %s: %s\n", m.Name, m.Error)
			}
		}
	}
}

func writeNames(w io.Writer, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d): %s\n", label, len(names), strings.Join(names, ", "))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
