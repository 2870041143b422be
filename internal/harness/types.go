package harness

import "github.com/roach88/signstage/internal/relocate"

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Index int    `json:"index"` // 1-indexed for readability
	Op    string `json:"op"`
	Path  string `json:"path,omitempty"`

	// Cycle is the journal cycle the step started, if any.
	Cycle string `json:"cycle,omitempty"`

	// Moves are read back from the journal, paths relative to the build root.
	Moves []relocate.Move `json:"moves,omitempty"`

	// Error is the step's error with the build root replaced by $BUILD.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectation and all assertions hold.
	Pass bool `json:"pass"`

	// Steps contains one entry per executed step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tree lists every file under the build root after the last step.
	Tree []string `json:"tree"`

	// Ledger is the ledger file content after the last step, if present.
	Ledger string `json:"ledger,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
		Tree:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Step returns the result of the 1-indexed step, or nil.
func (r *Result) Step(index int) *StepResult {
	if index < 1 || index > len(r.Steps) {
		return nil
	}
	return &r.Steps[index-1]
}
