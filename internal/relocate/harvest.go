package relocate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/cases"

	"github.com/roach88/signstage/internal/ledger"
)

// Harvest moves every signable artifact under root into the staging
// directory and persists the ledger there.
//
// The ledger is written before the first move, so an aborted harvest still
// leaves a record of every artifact it meant to stage. The first failed
// move stops the run with a *MoveError; earlier moves are kept.
func Harvest(ctx context.Context, root string, opts Options) (*Report, error) {
	rep, err := opts.begin(ctx, ModeHarvest, root)
	if err != nil {
		return rep, err
	}
	log := opts.logger().With("cycle", rep.ID, "mode", string(ModeHarvest))

	found, err := opts.locator().Locate(root)
	if err != nil {
		return rep, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	artifacts, err := plan(found, opts.OnDuplicate)
	if err != nil {
		return rep, err
	}
	log.Debug("artifacts located", "found", len(found), "planned", len(artifacts))

	if !opts.Force {
		status, err := Inspect(root, opts)
		if err != nil {
			return rep, fmt.Errorf("check staging state: %w", err)
		}
		if status.State == StateHarvested {
			return rep, fmt.Errorf("%w: %s still holds %d artifact(s) from a previous cycle; restore first or use --force",
				ErrAlreadyHarvested, rep.StagingDir, len(status.Staged))
		}
	}

	l, err := ledger.Build(root, artifacts)
	if err != nil {
		return rep, err
	}
	rep.Ledger = l

	if err := os.MkdirAll(rep.StagingDir, 0o755); err != nil {
		return rep, fmt.Errorf("create staging directory: %w", err)
	}
	if err := ledger.Save(rep.StagingDir, l); err != nil {
		return rep, err
	}
	log.Info("ledger written", "path", ledger.Path(rep.StagingDir), "entries", l.Len())

	out := opts.out()
	fmt.Fprintln(out, "DLLs to sign:")
	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("harvest interrupted: %w", err)
		}
		fmt.Fprintln(out, " -", artifact)

		name := filepath.Base(artifact)
		dst := filepath.Join(rep.StagingDir, name)
		if err := opts.move(ctx, rep, name, artifact, dst, nil); err != nil {
			return rep, err
		}
	}

	log.Info("harvest complete", "moved", rep.Moved())
	return rep, nil
}

// plan drops repeated paths and applies the duplicate-name policy, comparing
// names case-folded. It runs before anything is written so a refusal leaves
// the tree untouched.
func plan(found []string, policy DuplicatePolicy) ([]string, error) {
	if policy == "" {
		policy = DuplicateFail
	}

	fold := cases.Fold()
	seenPath := make(map[string]bool, len(found))
	byName := make(map[string]string, len(found))
	artifacts := make([]string, 0, len(found))
	for _, p := range found {
		clean := filepath.Clean(p)
		if seenPath[clean] {
			continue
		}
		seenPath[clean] = true

		name := filepath.Base(clean)
		key := fold.String(name)
		if prev, ok := byName[key]; ok && policy == DuplicateFail {
			return nil, fmt.Errorf("%w: %s is produced by both %s and %s", ErrDuplicateName, name, prev, p)
		}
		byName[key] = p
		artifacts = append(artifacts, p)
	}
	return artifacts, nil
}
