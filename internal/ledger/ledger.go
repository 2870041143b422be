// Package ledger models the relocation record written at harvest time and
// replayed at restore time.
//
// The ledger is the only state shared between the two halves of a signing
// cycle. It lives in the staging directory as dll_mapping.json:
//
//	{
//	  "mapping": [
//	    { "dll": "Foo.dll", "path": "libs/Foo/Release/Foo.dll" }
//	  ]
//	}
//
// Paths are relative to the build root and always written with forward
// slashes. Readers also accept backslashes.
package ledger

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// FileName is the well-known ledger file inside the staging directory.
const FileName = "dll_mapping.json"

// Entry records where one staged artifact came from.
type Entry struct {
	// Name is the artifact file name, its identity inside the staging directory.
	Name string `json:"dll"`

	// Path is the artifact location relative to the build root, slash-separated.
	Path string `json:"path"`
}

// Ledger is the ordered set of entries for one harvest cycle.
type Ledger struct {
	Mapping []Entry `json:"mapping"`
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{Mapping: []Entry{}}
}

// Build pairs each artifact with its path relative to root.
// Every artifact must lie inside root.
func Build(root string, artifacts []string) (*Ledger, error) {
	l := New()
	for _, artifact := range artifacts {
		rel, err := filepath.Rel(root, artifact)
		if err != nil {
			return nil, fmt.Errorf("relative path of %s: %w", artifact, err)
		}
		entry := Entry{
			Name: filepath.Base(artifact),
			Path: filepath.ToSlash(rel),
		}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", artifact, err)
		}
		l.Mapping = append(l.Mapping, entry)
	}
	return l, nil
}

// Validate checks the invariants a restorable entry must satisfy.
func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("empty artifact name")
	}
	if strings.ContainsAny(e.Name, `/\`) || e.Name == "." || e.Name == ".." {
		return fmt.Errorf("artifact name %q is not a plain file name", e.Name)
	}
	if e.Path == "" {
		return fmt.Errorf("empty artifact path")
	}
	p := e.slashPath()
	if path.IsAbs(p) || filepath.IsAbs(e.Path) || filepath.VolumeName(e.Path) != "" {
		return fmt.Errorf("artifact path %q is absolute", e.Path)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("artifact path %q escapes the build root", e.Path)
	}
	return nil
}

// Destination resolves the entry's original location under root.
func (e Entry) Destination(root string) string {
	return filepath.Join(root, filepath.FromSlash(path.Clean(e.slashPath())))
}

// Staged returns the entry's location inside stagingDir.
func (e Entry) Staged(stagingDir string) string {
	return filepath.Join(stagingDir, e.Name)
}

func (e Entry) slashPath() string {
	return strings.ReplaceAll(e.Path, `\`, "/")
}

// Names returns the artifact names in ledger order.
func (l *Ledger) Names() []string {
	names := make([]string, len(l.Mapping))
	for i, e := range l.Mapping {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.Mapping)
}
