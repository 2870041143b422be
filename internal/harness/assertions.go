package harness

import (
	"fmt"
	"os"
	"strings"

	"github.com/roach88/signstage/internal/ledger"
	"github.com/roach88/signstage/internal/relocate"
)

// AssertionError is returned when an assertion fails.
// It includes the final tree to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Tree     []string // Final tree for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Tree) > 0 {
		fmt.Fprintf(&buf, "\nFinal tree:\n")
		for _, f := range e.Tree {
			fmt.Fprintf(&buf, "  %s\n", f)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(h *Harness, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(h, result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(h *Harness, result *Result, a Assertion) error {
	switch a.Type {
	case AssertFileExists:
		return assertFileExists(h, result, a)
	case AssertFileAbsent:
		return assertFileAbsent(h, result, a)
	case AssertFileContent:
		return assertFileContent(h, result, a)
	case AssertLedgerContains:
		return assertLedgerContains(result, a)
	case AssertState:
		return assertState(h, result, a)
	case AssertMoveCount:
		return assertMoveCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFileExists(h *Harness, result *Result, a Assertion) error {
	if _, err := os.Stat(h.abs(a.Path)); err != nil {
		return &AssertionError{
			Type:     AssertFileExists,
			Expected: a.Path + " exists",
			Actual:   err.Error(),
			Tree:     result.Tree,
		}
	}
	return nil
}

func assertFileAbsent(h *Harness, result *Result, a Assertion) error {
	if _, err := os.Stat(h.abs(a.Path)); err == nil || !os.IsNotExist(err) {
		return &AssertionError{
			Type:     AssertFileAbsent,
			Expected: a.Path + " does not exist",
			Actual:   "present",
			Tree:     result.Tree,
		}
	}
	return nil
}

func assertFileContent(h *Harness, result *Result, a Assertion) error {
	data, err := os.ReadFile(h.abs(a.Path))
	if err != nil {
		return &AssertionError{
			Type:     AssertFileContent,
			Expected: fmt.Sprintf("%s contains %q", a.Path, a.Content),
			Actual:   err.Error(),
			Tree:     result.Tree,
		}
	}
	if string(data) != a.Content {
		return &AssertionError{
			Type:     AssertFileContent,
			Expected: fmt.Sprintf("%s contains %q", a.Path, a.Content),
			Actual:   fmt.Sprintf("%q", string(data)),
		}
	}
	return nil
}

func assertLedgerContains(result *Result, a Assertion) error {
	if result.Ledger == "" {
		return &AssertionError{
			Type:     AssertLedgerContains,
			Expected: fmt.Sprintf("ledger entry %s -> %s", a.DLL, a.Path),
			Actual:   "no ledger",
			Tree:     result.Tree,
		}
	}
	l, err := ledger.Unmarshal([]byte(result.Ledger))
	if err != nil {
		return &AssertionError{
			Type:     AssertLedgerContains,
			Expected: fmt.Sprintf("ledger entry %s -> %s", a.DLL, a.Path),
			Actual:   err.Error(),
		}
	}
	for _, e := range l.Mapping {
		if e.Name == a.DLL && e.Path == a.Path {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertLedgerContains,
		Expected: fmt.Sprintf("ledger entry %s -> %s", a.DLL, a.Path),
		Actual:   fmt.Sprintf("entries %v", l.Mapping),
	}
}

func assertState(h *Harness, result *Result, a Assertion) error {
	status, err := relocate.Inspect(h.root, h.opts)
	if err != nil {
		return &AssertionError{
			Type:     AssertState,
			Expected: a.State,
			Actual:   h.relativize(err.Error()),
		}
	}
	if string(status.State) != a.State {
		return &AssertionError{
			Type:     AssertState,
			Expected: a.State,
			Actual:   string(status.State),
			Tree:     result.Tree,
		}
	}
	return nil
}

func assertMoveCount(result *Result, a Assertion) error {
	step := result.Step(a.Step)
	if step == nil {
		return fmt.Errorf("step %d was not executed", a.Step)
	}
	moved := 0
	for _, m := range step.Moves {
		if m.Status == relocate.MoveDone {
			moved++
		}
	}
	if moved != a.Count {
		return &AssertionError{
			Type:     AssertMoveCount,
			Expected: fmt.Sprintf("step %d moved %d artifact(s)", a.Step, a.Count),
			Actual:   fmt.Sprintf("%d moved of %d attempted", moved, len(step.Moves)),
		}
	}
	return nil
}
