package relocate

import (
	"fmt"
	"os"
	"sort"

	"github.com/roach88/signstage/internal/ledger"
)

// State is the position of a staging directory in the signing cycle.
type State string

const (
	StateEmpty     State = "EMPTY"
	StateHarvested State = "HARVESTED"
	StateRestored  State = "RESTORED"
)

// Status is a snapshot of a staging directory compared against its ledger.
type Status struct {
	State      State          `json:"state"`
	StagingDir string         `json:"staging_dir"`
	Ledger     *ledger.Ledger `json:"ledger,omitempty"`

	// Staged lists ledger entries whose artifact is in staging.
	Staged []string `json:"staged"`

	// Pending lists ledger entries whose artifact is not in staging.
	Pending []string `json:"pending"`

	// Unlisted lists files in staging the ledger does not mention.
	Unlisted []string `json:"unlisted"`
}

// Inspect derives the cycle state of root's staging directory. It reads
// the file system only. A malformed ledger is returned as an error.
func Inspect(root string, opts Options) (*Status, error) {
	staging := opts.stagingPath(root)
	st := &Status{
		State:      StateEmpty,
		StagingDir: staging,
		Staged:     []string{},
		Pending:    []string{},
		Unlisted:   []string{},
	}

	present, err := stagedFiles(staging)
	if err != nil {
		return nil, err
	}

	exists, err := ledger.Exists(staging)
	if err != nil {
		return nil, err
	}
	if !exists {
		st.Unlisted = sortedKeys(present)
		return st, nil
	}

	l, err := ledger.Load(staging)
	if err != nil {
		return nil, err
	}
	st.Ledger = l

	listed := make(map[string]bool, l.Len())
	for _, name := range l.Names() {
		if listed[name] {
			continue
		}
		listed[name] = true
		if present[name] {
			st.Staged = append(st.Staged, name)
		} else {
			st.Pending = append(st.Pending, name)
		}
	}
	for name := range present {
		if !listed[name] {
			st.Unlisted = append(st.Unlisted, name)
		}
	}
	sort.Strings(st.Unlisted)

	st.State = StateRestored
	if len(st.Staged) > 0 {
		st.State = StateHarvested
	}
	return st, nil
}

// stagedFiles lists the regular files in staging, excluding the ledger and
// hidden temp files. A missing directory has no files.
func stagedFiles(staging string) (map[string]bool, error) {
	entries, err := os.ReadDir(staging)
	if isNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read staging directory: %w", err)
	}

	files := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == ledger.FileName || isStagingTemp(name) {
			continue
		}
		files[name] = true
	}
	return files, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
