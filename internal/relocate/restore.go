package relocate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/signstage/internal/ledger"
)

// Restore moves every artifact listed in the staging ledger back to its
// recorded location under root.
//
// The ledger is read fresh and left in place afterwards. A missing or
// malformed ledger fails before anything moves. Entries are restored in
// ledger order and the first failure stops the run with a *MoveError;
// the Report still lists every entry that was attempted.
func Restore(ctx context.Context, root string, opts Options) (*Report, error) {
	if _, err := os.Stat(root); err != nil {
		return &Report{Moves: []Move{}}, fmt.Errorf("build root: %w", err)
	}

	staging := opts.stagingPath(root)
	l, err := ledger.Load(staging)
	if err != nil {
		return &Report{Moves: []Move{}}, err
	}

	rep, err := opts.begin(ctx, ModeRestore, root)
	rep.Ledger = l
	if err != nil {
		return rep, err
	}
	log := opts.logger().With("cycle", rep.ID, "mode", string(ModeRestore))
	log.Debug("ledger loaded", "path", ledger.Path(staging), "entries", l.Len())

	out := opts.out()
	fmt.Fprintln(out, "DLLs to restore:")
	for _, entry := range l.Mapping {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("restore interrupted: %w", err)
		}

		src := entry.Staged(staging)
		dst := entry.Destination(root)
		fmt.Fprintln(out, src, "->", dst)

		precheck := func() error {
			if _, err := os.Stat(src); err != nil {
				if isNotExist(err) {
					return ErrStagedMissing
				}
				return err
			}
			info, err := os.Stat(filepath.Dir(dst))
			if err != nil {
				if isNotExist(err) {
					return fmt.Errorf("%w: %s", ErrDestinationMissing, filepath.Dir(dst))
				}
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%w: %s is not a directory", ErrDestinationMissing, filepath.Dir(dst))
			}
			return nil
		}
		if err := opts.move(ctx, rep, entry.Name, src, dst, precheck); err != nil {
			return rep, err
		}
	}

	log.Info("restore complete", "moved", rep.Moved())
	return rep, nil
}
