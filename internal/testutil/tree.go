package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree creates every file in files under root. Keys are slash-separated
// paths relative to root; parent directories are created as needed.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// AddProject writes a descriptor libs/<dir>/<stem>.<ext> and, when withArtifact
// is set, its Release/<stem>.dll next to it. It returns the artifact path
// relative to root, slash-separated.
func AddProject(t testing.TB, root, dir, stem, ext string, withArtifact bool) string {
	t.Helper()

	descriptor := "libs/" + dir + "/" + stem + "." + ext
	artifact := "libs/" + dir + "/Release/" + stem + ".dll"
	files := map[string]string{descriptor: "<Project/>"}
	if withArtifact {
		files[artifact] = "binary:" + stem
	}
	WriteTree(t, root, files)
	return artifact
}

// ListTree returns every regular file under root as a sorted list of
// slash-separated relative paths.
func ListTree(t testing.TB, root string) []string {
	t.Helper()

	files := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)

	sort.Strings(files)
	return files
}

// ReadFile returns the content of a slash-separated path under root.
func ReadFile(t testing.TB, root, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}
