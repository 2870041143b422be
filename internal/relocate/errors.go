package relocate

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery wraps failures to scan the build tree.
	ErrDiscovery = errors.New("artifact discovery failed")

	// ErrDuplicateName reports two distinct artifacts that would collide in
	// the flat staging directory.
	ErrDuplicateName = errors.New("duplicate artifact name")

	// ErrAlreadyHarvested reports a harvest over a staging directory that
	// still holds artifacts from an unrestored cycle.
	ErrAlreadyHarvested = errors.New("staging directory already harvested")

	// ErrStagedMissing reports a ledger entry whose artifact is not in staging.
	ErrStagedMissing = errors.New("staged artifact missing")

	// ErrDestinationMissing reports a restore target whose parent directory
	// no longer exists.
	ErrDestinationMissing = errors.New("destination directory missing")
)

// MoveError reports the artifact whose move aborted a harvest or restore.
type MoveError struct {
	Mode Mode
	Name string
	Src  string
	Dst  string
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("%s %s: move %s -> %s: %v", e.Mode, e.Name, e.Src, e.Dst, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// IsMoveError returns true if err is or wraps a *MoveError.
func IsMoveError(err error) bool {
	var me *MoveError
	return errors.As(err, &me)
}
