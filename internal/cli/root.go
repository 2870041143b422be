package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/signstage/internal/config"
	"github.com/roach88/signstage/internal/journal"
	"github.com/roach88/signstage/internal/relocate"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// IDs allows overriding the cycle ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs relocate.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// configFlags are the persistent flags that viper resolves alongside
// environment variables and the config file.
var configFlags = []string{
	config.KeyStagingDir,
	config.KeyConfiguration,
	config.KeyOnDuplicate,
	config.KeyJournal,
}

// NewRootCommand creates the root command for the signstage CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "signstage",
		Short: "Stage build DLLs for code signing and restore them",
		Long: `Move signable DLLs out of a build tree into one staging directory
for an external signing tool, then move them back.

harvest finds libs/*/*.{vcxproj,csproj} and libs/*/*/*.{vcxproj,csproj},
moves each project's Release/<name>.dll (test projects excluded) into
<build_dir>/to_sign and records where it came from in dll_mapping.json.
restore reads that file and moves every DLL back.

Settings can also come from SIGNSTAGE_* environment variables or a YAML
config file (.signstage.yaml in the working directory, or --config).`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	defaults := config.Defaults()
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default .signstage.yaml)")
	cmd.PersistentFlags().String(config.KeyStagingDir, defaults.StagingDir, "staging directory, relative to the build dir unless absolute")
	cmd.PersistentFlags().String(config.KeyConfiguration, defaults.Configuration, "build configuration directory holding the DLLs")
	cmd.PersistentFlags().String(config.KeyOnDuplicate, defaults.OnDuplicate, "what to do when two DLLs share a name (fail|overwrite)")
	cmd.PersistentFlags().String(config.KeyJournal, defaults.Journal, "record every move in this SQLite database")

	// Add subcommands
	cmd.AddCommand(NewHarvestCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// Run executes the CLI with args and returns the process exit code.
// Errors raised by cobra itself (unknown command, bad or missing flags)
// carry no ExitError and are reported as command errors.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(stderr, "signstage:", err)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newLogger configures logging based on the verbose flag.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// session is the resolved state shared by every subcommand run.
type session struct {
	cfg       config.Config
	logger    *slog.Logger
	formatter *OutputFormatter
	journal   *journal.Journal
}

// openSession resolves configuration and logging. The journal is opened
// later, by openJournal.
// Flags absent from cmd (a subcommand built on its own) fall back to
// environment, config file and defaults.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	formatter := &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
	s := &session{
		logger:    newLogger(cmd.ErrOrStderr(), o.Verbose),
		formatter: formatter,
	}

	v := viper.New()
	for _, key := range configFlags {
		if f := cmd.Flags().Lookup(key); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, reportCode(formatter, ErrCodeConfig, ExitCommandError, "failed to bind flag", err, nil)
			}
		}
	}

	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return nil, reportCode(formatter, ErrCodeConfig, ExitCommandError, "invalid configuration", err, nil)
	}
	s.cfg = cfg
	s.logger.Debug("configuration loaded",
		"config_file", v.ConfigFileUsed(),
		"staging_dir", cfg.StagingDir,
		"configuration", cfg.Configuration,
		"on_duplicate", cfg.OnDuplicate,
		"journal", cfg.Journal)

	return s, nil
}

// openJournal opens the configured journal on first use. It returns nil
// when no journal is configured.
func (s *session) openJournal() (*journal.Journal, error) {
	if s.journal != nil || s.cfg.Journal == "" {
		return s.journal, nil
	}
	j, err := journal.Open(s.cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errJournalOpen, err)
	}
	s.journal = j
	s.logger.Debug("journal ready", "path", s.cfg.Journal)
	return j, nil
}

// BeginCycle opens the journal and records the cycle. Runs that fail
// before a cycle begins never create the journal file.
func (s *session) BeginCycle(ctx context.Context, c relocate.Cycle) error {
	j, err := s.openJournal()
	if err != nil {
		return err
	}
	return j.BeginCycle(ctx, c)
}

func (s *session) RecordMove(ctx context.Context, cycleID string, m relocate.Move) error {
	j, err := s.openJournal()
	if err != nil {
		return err
	}
	return j.RecordMove(ctx, cycleID, m)
}

// options builds relocate options for one run.
func (s *session) options(o *RootOptions, out io.Writer) relocate.Options {
	opts := s.cfg.Options()
	opts.Out = out
	opts.Logger = s.logger
	opts.IDs = o.IDs
	if s.cfg.Journal != "" {
		opts.Recorder = s
	}
	return opts
}

func (s *session) Close() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		s.logger.Error("error closing journal", "error", err)
	}
}

// checkBuildDir verifies the build root before anything touches it.
func (s *session) checkBuildDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return reportCode(s.formatter, ErrCodeBuildDir, ExitCommandError, "build directory not found", err, nil)
	}
	if !info.IsDir() {
		return reportCode(s.formatter, ErrCodeBuildDir, ExitCommandError, "build directory not found",
			fmt.Errorf("not a directory: %s", dir), nil)
	}
	return nil
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
// Uses the command's context if available (for testing).
func commandContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, stopping after the current move", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
