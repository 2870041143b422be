package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/signstage/internal/journal"
	"github.com/roach88/signstage/internal/ledger"
	"github.com/roach88/signstage/internal/relocate"
	"github.com/roach88/signstage/internal/testutil"
)

// rootPlaceholder replaces the temporary build root in recorded errors.
const rootPlaceholder = "$BUILD"

// Harness is the scenario execution engine.
// It runs scenarios with sequential cycle IDs and an in-memory journal.
type Harness struct {
	root    string
	journal *journal.Journal
	opts    relocate.Options
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary build root and in-memory journal.
//
// Execution flow:
// 1. Create the build root and write the scenario tree
// 2. Execute steps, checking each against its expect_error
// 3. Snapshot the tree and ledger
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "signstage-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create build root: %w", err)
	}
	defer os.RemoveAll(root)

	// EvalSymlinks keeps paths stable on systems where the temp dir is a link
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build root: %w", err)
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	h := &Harness{
		root:    root,
		journal: j,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.opts = relocate.Options{
		StagingDir:    scenario.Options.StagingDir,
		Configuration: scenario.Options.Configuration,
		OnDuplicate:   relocate.DuplicatePolicy(scenario.Options.OnDuplicate),
		Logger:        h.logger,
		Recorder:      j,
		IDs:           testutil.NewSequenceIDGenerator("cycle"),
	}

	if err := h.writeTree(scenario.Tree); err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if result.Tree, err = h.listTree(); err != nil {
		return nil, err
	}
	if result.Ledger, err = h.readLedger(); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(h, result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one step and records it in the result.
// Returned errors are harness failures; step failures are recorded.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	sr := StepResult{Index: index, Op: step.Op, Path: step.Path}

	var report *relocate.Report
	var stepErr error
	switch step.Op {
	case OpHarvest:
		opts := h.opts
		opts.Force = step.Force
		report, stepErr = relocate.Harvest(ctx, h.root, opts)
	case OpRestore:
		report, stepErr = relocate.Restore(ctx, h.root, h.opts)
	case OpRemove:
		if err := os.RemoveAll(h.abs(step.Path)); err != nil {
			return fmt.Errorf("remove %s: %w", step.Path, err)
		}
	case OpWrite:
		path := h.abs(step.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("write %s: %w", step.Path, err)
		}
		if err := os.WriteFile(path, []byte(step.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", step.Path, err)
		}
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if report != nil && report.ID != "" {
		moves, err := h.cycleMoves(ctx, report.ID)
		if err != nil {
			return err
		}
		sr.Cycle = report.ID
		sr.Moves = moves
	}
	if stepErr != nil {
		sr.Error = h.relativize(stepErr.Error())
	}
	result.Steps = append(result.Steps, sr)

	switch {
	case step.ExpectError == "" && stepErr != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %s", index, step.Op, sr.Error))
	case step.ExpectError != "" && stepErr == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got success", index, step.Op, step.ExpectError))
	case step.ExpectError != "" && !strings.Contains(sr.Error, step.ExpectError):
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got %q", index, step.Op, step.ExpectError, sr.Error))
	}

	h.logger.Info("step completed", "step", index, "op", step.Op, "cycle", sr.Cycle, "error", sr.Error)
	return nil
}

// cycleMoves reads a cycle's moves back from the journal with paths made
// relative to the build root.
func (h *Harness) cycleMoves(ctx context.Context, cycleID string) ([]relocate.Move, error) {
	moves, err := h.journal.Moves(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	for i := range moves {
		moves[i].Src = h.rel(moves[i].Src)
		moves[i].Dst = h.rel(moves[i].Dst)
		moves[i].Error = h.relativize(moves[i].Error)
	}
	return moves, nil
}

func (h *Harness) writeTree(tree map[string]string) error {
	for rel, content := range tree {
		path := h.abs(rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("write tree: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write tree: %w", err)
		}
	}
	return nil
}

// listTree returns every regular file under the root, sorted.
func (h *Harness) listTree() ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(h.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, h.rel(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (h *Harness) readLedger() (string, error) {
	staging := h.abs(h.stagingDir())
	data, err := os.ReadFile(ledger.Path(staging))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read ledger: %w", err)
	}
	return string(data), nil
}

func (h *Harness) stagingDir() string {
	if h.opts.StagingDir == "" {
		return relocate.DefaultStagingDir
	}
	return h.opts.StagingDir
}

func (h *Harness) abs(rel string) string {
	return filepath.Join(h.root, filepath.FromSlash(rel))
}

func (h *Harness) rel(path string) string {
	rel, err := filepath.Rel(h.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// relativize rewrites absolute paths under the root in an error message.
func (h *Harness) relativize(msg string) string {
	return filepath.ToSlash(strings.ReplaceAll(msg, h.root, rootPlaceholder))
}
