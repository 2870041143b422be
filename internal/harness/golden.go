package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a scenario result as stable text for golden comparison:
// every step with its cycle and moves, the final tree and the ledger.
func Snapshot(scenarioName string, result *Result) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)
	fmt.Fprintln(&buf, "steps:")
	for _, s := range result.Steps {
		fmt.Fprintf(&buf, "  [%d] %s", s.Index, s.Op)
		if s.Path != "" {
			fmt.Fprintf(&buf, " %s", s.Path)
		}
		if s.Cycle != "" {
			fmt.Fprintf(&buf, " %s", s.Cycle)
		}
		fmt.Fprintln(&buf)
		for _, m := range s.Moves {
			fmt.Fprintf(&buf, "      %s %s: %s -> %s\n", m.Status, m.Name, m.Src, m.Dst)
		}
		if s.Error != "" {
			fmt.Fprintf(&buf, "      error: %s\n", s.Error)
		}
	}

	fmt.Fprintln(&buf, "tree:")
	for _, f := range result.Tree {
		fmt.Fprintf(&buf, "  %s\n", f)
	}

	if result.Ledger != "" {
		fmt.Fprintln(&buf, "ledger:")
		buf.WriteString(result.Ledger)
	}

	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect it further, or an error if the
// scenario could not be executed.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's snapshot against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
