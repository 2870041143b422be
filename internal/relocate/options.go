package relocate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/roach88/signstage/internal/ledger"
	"github.com/roach88/signstage/internal/locate"
)

// DefaultStagingDir is the staging directory name under the build root.
const DefaultStagingDir = "to_sign"

// Mode identifies which half of the cycle is running.
type Mode string

const (
	ModeHarvest Mode = "harvest"
	ModeRestore Mode = "restore"
)

// DuplicatePolicy decides what happens when two distinct artifacts share a
// file name and would collide in the flat staging directory.
type DuplicatePolicy string

const (
	// DuplicateFail refuses the harvest before anything is moved.
	DuplicateFail DuplicatePolicy = "fail"

	// DuplicateOverwrite stages both; the later artifact replaces the
	// earlier one and restoring the earlier entry will fail.
	DuplicateOverwrite DuplicatePolicy = "overwrite"
)

// ParseDuplicatePolicy validates a policy name.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case DuplicateFail, DuplicateOverwrite:
		return DuplicatePolicy(s), nil
	case "":
		return DuplicateFail, nil
	default:
		return "", fmt.Errorf("invalid duplicate policy %q: must be one of [fail overwrite]", s)
	}
}

// Recorder receives an audit record of every attempted move.
// Implemented by journal.Journal.
type Recorder interface {
	BeginCycle(ctx context.Context, cycle Cycle) error
	RecordMove(ctx context.Context, cycleID string, move Move) error
}

// Cycle identifies one harvest or restore invocation.
type Cycle struct {
	ID         string `json:"id"`
	Mode       Mode   `json:"mode"`
	BuildRoot  string `json:"build_root"`
	StagingDir string `json:"staging_dir"`
}

// MoveStatus is the outcome of one attempted move.
type MoveStatus string

const (
	MoveDone   MoveStatus = "moved"
	MoveFailed MoveStatus = "failed"
)

// Move is one attempted relocation.
type Move struct {
	Name   string     `json:"dll"`
	Src    string     `json:"src"`
	Dst    string     `json:"dst"`
	Status MoveStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Report describes what a harvest or restore did. It is returned even when
// the operation fails so the attempted moves can be inspected.
type Report struct {
	Cycle
	Ledger *ledger.Ledger `json:"ledger,omitempty"`
	Moves  []Move         `json:"moves"`
}

// Moved returns the number of completed moves.
func (r *Report) Moved() int {
	n := 0
	for _, m := range r.Moves {
		if m.Status == MoveDone {
			n++
		}
	}
	return n
}

// Options configures Harvest, Restore and Inspect. The zero value uses the
// default staging directory, locator conventions and a discarding logger.
type Options struct {
	// StagingDir is the staging directory, relative to the build root unless
	// absolute. Defaults to DefaultStagingDir.
	StagingDir string

	// Configuration selects the build configuration directory ("Release").
	Configuration string

	// OnDuplicate decides how colliding artifact names are handled.
	OnDuplicate DuplicatePolicy

	// Force allows harvesting over a HARVESTED staging directory.
	Force bool

	// Out receives the human-readable move listing. Defaults to io.Discard.
	Out io.Writer

	Logger   *slog.Logger
	Recorder Recorder
	IDs      IDGenerator

	// Mover overrides file moves. Defaults to a Mover using os.Rename.
	Mover *Mover
}

func (o Options) stagingPath(root string) string {
	dir := o.StagingDir
	if dir == "" {
		dir = DefaultStagingDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func (o Options) ids() IDGenerator {
	if o.IDs == nil {
		return UUIDv7Generator{}
	}
	return o.IDs
}

func (o Options) mover() *Mover {
	if o.Mover != nil {
		return o.Mover
	}
	return &Mover{IDs: o.ids()}
}

func (o Options) locator() *locate.Locator {
	l := locate.New()
	if o.Configuration != "" {
		l.Configuration = o.Configuration
	}
	l.Logger = o.logger()
	return l
}

// begin starts a cycle and notifies the recorder.
func (o Options) begin(ctx context.Context, mode Mode, root string) (*Report, error) {
	rep := &Report{
		Cycle: Cycle{
			ID:         o.ids().Generate(),
			Mode:       mode,
			BuildRoot:  root,
			StagingDir: o.stagingPath(root),
		},
		Moves: []Move{},
	}
	if o.Recorder != nil {
		if err := o.Recorder.BeginCycle(ctx, rep.Cycle); err != nil {
			return rep, fmt.Errorf("journal: %w", err)
		}
	}
	return rep, nil
}

// move performs one relocation, appends it to the report and records it.
func (o Options) move(ctx context.Context, rep *Report, name, src, dst string, precheck func() error) error {
	var err error
	if precheck != nil {
		err = precheck()
	}
	if err == nil {
		err = o.mover().Move(src, dst)
	}

	m := Move{Name: name, Src: src, Dst: dst, Status: MoveDone}
	if err != nil {
		m.Status = MoveFailed
		m.Error = err.Error()
	}
	rep.Moves = append(rep.Moves, m)

	log := o.logger().With("cycle", rep.ID, "mode", string(rep.Mode), "dll", name)
	if err != nil {
		log.Error("move failed", "src", src, "dst", dst, "error", err)
	} else {
		log.Info("moved", "src", src, "dst", dst)
	}

	if o.Recorder != nil {
		if recErr := o.Recorder.RecordMove(ctx, rep.ID, m); recErr != nil {
			if err == nil {
				return fmt.Errorf("journal: %w", recErr)
			}
			log.Error("journal write failed", "error", recErr)
		}
	}

	if err != nil {
		return &MoveError{Mode: rep.Mode, Name: name, Src: src, Dst: dst, Err: err}
	}
	return nil
}
