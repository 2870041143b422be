package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/signstage/internal/relocate"
)

// Scenario defines a harvest/restore scenario.
// Scenarios build a tree, run a sequence of steps against it and assert on
// the resulting files, ledger and trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Options configures every harvest and restore in the scenario.
	Options ScenarioOptions `yaml:"options,omitempty"`

	// Tree maps slash-separated paths under the build root to file content.
	Tree map[string]string `yaml:"tree"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final tree, ledger and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioOptions mirrors the settings a user can pass on the command line.
type ScenarioOptions struct {
	StagingDir    string `yaml:"staging_dir,omitempty"`
	Configuration string `yaml:"configuration,omitempty"`
	OnDuplicate   string `yaml:"on_duplicate,omitempty"`
}

// Step is a single operation against the build root.
type Step struct {
	// Op is one of harvest, restore, remove, write.
	Op string `yaml:"op"`

	// Path is the target of remove and write, relative to the build root.
	Path string `yaml:"path,omitempty"`

	// Content is the file content for write.
	Content string `yaml:"content,omitempty"`

	// Force overrides the already-harvested check (harvest only).
	Force bool `yaml:"force,omitempty"`

	// ExpectError, if set, requires the step to fail with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "file_exists": Path exists under the build root
	// - "file_absent": Path does not exist under the build root
	// - "file_content": Path holds exactly Content
	// - "ledger_contains": the ledger lists DLL at Path
	// - "state": the cycle state is State
	// - "move_count": step Step moved exactly Count artifacts
	Type string `yaml:"type"`

	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`
	DLL     string `yaml:"dll,omitempty"`
	State   string `yaml:"state,omitempty"`
	Step    int    `yaml:"step,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpHarvest = "harvest"
	OpRestore = "restore"
	OpRemove  = "remove"
	OpWrite   = "write"
)

// Assertion type constants.
const (
	AssertFileExists     = "file_exists"
	AssertFileAbsent     = "file_absent"
	AssertFileContent    = "file_content"
	AssertLedgerContains = "ledger_contains"
	AssertState          = "state"
	AssertMoveCount      = "move_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate required fields
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if _, err := relocate.ParseDuplicatePolicy(s.Options.OnDuplicate); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	if s.Options.StagingDir != "" && !isRelative(s.Options.StagingDir) {
		return fmt.Errorf("options: staging_dir %q must be relative to the build root", s.Options.StagingDir)
	}

	for p := range s.Tree {
		if !isRelative(p) {
			return fmt.Errorf("tree: path %q must be relative to the build root", p)
		}
	}

	// Validate steps
	for i, step := range s.Steps {
		switch step.Op {
		case OpHarvest, OpRestore:
			if step.Path != "" || step.Content != "" {
				return fmt.Errorf("steps[%d]: path and content are not used by %s", i, step.Op)
			}
		case OpRemove, OpWrite:
			if step.Path == "" {
				return fmt.Errorf("steps[%d]: path is required for %s", i, step.Op)
			}
			if !isRelative(step.Path) {
				return fmt.Errorf("steps[%d]: path %q must be relative to the build root", i, step.Path)
			}
			if step.ExpectError != "" || step.Force {
				return fmt.Errorf("steps[%d]: expect_error and force are not used by %s", i, step.Op)
			}
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Force && step.Op != OpHarvest {
			return fmt.Errorf("steps[%d]: force is only valid for harvest", i)
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFileExists, AssertFileAbsent, AssertFileContent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertLedgerContains:
		if a.DLL == "" || a.Path == "" {
			return fmt.Errorf("assertions[%d]: dll and path are required for ledger_contains", index)
		}
	case AssertState:
		switch relocate.State(a.State) {
		case relocate.StateEmpty, relocate.StateHarvested, relocate.StateRestored:
		default:
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
	case AssertMoveCount:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for move_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// isRelative reports whether p is a slash path that stays under the root.
func isRelative(p string) bool {
	if p == "" || path.IsAbs(p) || strings.Contains(p, `\`) || strings.Contains(p, ":") {
		return false
	}
	clean := path.Clean(p)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}
