package locate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// searchDepths are the directory depths below libs/ that may hold descriptors.
var searchDepths = []int{1, 2}

// Locator scans a build tree for signable artifacts.
type Locator struct {
	Conventions   []Convention
	Configuration string
	TestMarker    string
	Logger        *slog.Logger
}

// New returns a Locator using the default conventions.
func New() *Locator {
	return &Locator{
		Conventions:   DefaultConventions,
		Configuration: DefaultConfiguration,
		TestMarker:    DefaultTestMarker,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Locate returns the artifact paths under root, convention by convention,
// shallow descriptors before deep ones, lexically within each depth.
//
// The same path can appear more than once when two descriptor types in one
// directory share a stem. An empty result is not an error.
func (l *Locator) Locate(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("build root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build root %s: not a directory", root)
	}

	libs := filepath.Join(root, LibsDir)
	if _, err := os.Stat(libs); errors.Is(err, fs.ErrNotExist) {
		l.logger().Debug("no libs directory", "dir", libs)
		return []string{}, nil
	}

	configuration := l.Configuration
	if configuration == "" {
		configuration = DefaultConfiguration
	}

	fold := cases.Fold()
	marker := fold.String(l.TestMarker)

	paths := []string{}
	for _, conv := range l.Conventions {
		for _, depth := range searchDepths {
			descriptors, err := findDescriptors(libs, depth, conv)
			if err != nil {
				return nil, err
			}
			for _, descriptor := range descriptors {
				stem := Stem(descriptor)
				if marker != "" && strings.Contains(fold.String(stem), marker) {
					l.logger().Debug("skipping test project", "descriptor", descriptor)
					continue
				}
				artifact := conv.ArtifactPath(descriptor, configuration)
				ok, err := isFile(artifact)
				if err != nil {
					return nil, err
				}
				if !ok {
					l.logger().Debug("no artifact for descriptor", "descriptor", descriptor, "artifact", artifact)
					continue
				}
				paths = append(paths, artifact)
			}
		}
	}

	return paths, nil
}

func (l *Locator) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// findDescriptors lists descriptor files exactly depth directories below dir.
// Paths are built by joining, so metacharacters in root are never globbed.
func findDescriptors(dir string, depth int, conv Convention) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var found []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode, err := entryMode(path, entry)
		if err != nil {
			return nil, err
		}
		if depth == 0 {
			if mode.IsRegular() && conv.Matches(entry.Name()) {
				found = append(found, path)
			}
			continue
		}
		if !mode.IsDir() {
			continue
		}
		sub, err := findDescriptors(path, depth-1, conv)
		if err != nil {
			return nil, err
		}
		found = append(found, sub...)
	}
	return found, nil
}

// entryMode returns the type of entry, following symlinks. A dangling
// link is treated as an irregular file.
func entryMode(path string, entry fs.DirEntry) (fs.FileMode, error) {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Type(), nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fs.ModeSymlink, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Mode().Type(), nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}
