// Package harness replays harvest and restore cycles described in YAML
// against throwaway build trees.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	options:
//	  staging_dir: to_sign
//	  configuration: Release
//	  on_duplicate: fail
//	tree:
//	  libs/A/A.vcxproj: "<Project/>"
//	  libs/A/Release/A.dll: "binary:A"
//	steps:
//	  - op: harvest
//	  - op: remove
//	    path: libs/A/Release
//	  - op: restore
//	    expect_error: "destination directory missing"
//	assertions:
//	  - type: file_exists
//	    path: to_sign/A.dll
//	  - type: state
//	    state: HARVESTED
//
// # Step Operations
//
//   - harvest: relocate.Harvest (force: true to override the state check)
//   - restore: relocate.Restore
//   - remove: delete a file or directory under the build root
//   - write: create or replace a file under the build root
//
// A step without expect_error must succeed; a step with one must fail with
// an error containing that text.
//
// # Assertion Types
//
//   - file_exists / file_absent: a path under the build root
//   - file_content: a file's exact content
//   - ledger_contains: the ledger lists dll at path
//   - state: the cycle state reported by relocate.Inspect
//   - move_count: step N moved exactly count artifacts
//
// # Deterministic Testing
//
// Every scenario runs in a fresh temporary build root with sequential cycle
// IDs (cycle-0001, cycle-0002, ...) and an in-memory journal. Absolute
// paths in the trace are rewritten relative to the build root, so the
// snapshot compared by RunWithGolden is identical across runs.
package harness
