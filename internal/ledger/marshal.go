package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound reports a staging directory without a ledger file.
var ErrNotFound = errors.New("ledger not found")

// FormatError reports a ledger that does not have the expected structure.
// Field locates the problem, e.g. "mapping[2].dll".
type FormatError struct {
	Field   string
	Message string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed ledger: %s", e.Message)
	}
	return fmt.Sprintf("malformed ledger: %s: %s", e.Field, e.Message)
}

// Marshal encodes the ledger as indented JSON with a trailing newline.
// HTML escaping is disabled so names containing & or < stay readable.
func Marshal(l *Ledger) ([]byte, error) {
	mapping := l.Mapping
	if mapping == nil {
		mapping = []Entry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Ledger{Mapping: mapping}); err != nil {
		return nil, fmt.Errorf("marshal ledger: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes and validates a ledger document. Every structural
// problem is reported as a *FormatError; nothing is silently defaulted.
func Unmarshal(data []byte) (*Ledger, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, &FormatError{Message: "document is not a JSON object"}
	}

	raw, ok := top["mapping"]
	if !ok {
		return nil, &FormatError{Field: "mapping", Message: "missing"}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, &FormatError{Field: "mapping", Message: "not an array"}
	}

	l := &Ledger{Mapping: make([]Entry, 0, len(items))}
	for i, item := range items {
		entry, err := unmarshalEntry(item, fmt.Sprintf("mapping[%d]", i))
		if err != nil {
			return nil, err
		}
		l.Mapping = append(l.Mapping, entry)
	}
	return l, nil
}

func unmarshalEntry(data json.RawMessage, field string) (Entry, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return Entry{}, &FormatError{Field: field, Message: "not an object"}
	}

	name, err := requiredString(obj, "dll", field)
	if err != nil {
		return Entry{}, err
	}
	p, err := requiredString(obj, "path", field)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Name: name, Path: p}
	if err := entry.Validate(); err != nil {
		return Entry{}, &FormatError{Field: field, Message: err.Error()}
	}
	return entry, nil
}

func requiredString(obj map[string]json.RawMessage, key, field string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", &FormatError{Field: field + "." + key, Message: "missing"}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &FormatError{Field: field + "." + key, Message: "not a string"}
	}
	if s == "" {
		return "", &FormatError{Field: field + "." + key, Message: "empty"}
	}
	return s, nil
}

// Path returns the ledger file location inside stagingDir.
func Path(stagingDir string) string {
	return filepath.Join(stagingDir, FileName)
}

// Exists reports whether stagingDir holds a ledger file.
func Exists(stagingDir string) (bool, error) {
	_, err := os.Stat(Path(stagingDir))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat ledger: %w", err)
	}
	return true, nil
}

// Save writes the ledger into stagingDir, replacing any previous ledger.
// The file is written to a temp name first and renamed into place.
func Save(stagingDir string, l *Ledger) error {
	data, err := Marshal(l)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(stagingDir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := os.Rename(tmpName, Path(stagingDir)); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Load reads the ledger from stagingDir. A missing file yields an error
// wrapping ErrNotFound; a malformed one yields a *FormatError.
func Load(stagingDir string) (*Ledger, error) {
	file := Path(stagingDir)
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return Unmarshal(data)
}
