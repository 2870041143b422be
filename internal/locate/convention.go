package locate

import (
	"path/filepath"
	"strings"
)

// DefaultConfiguration is the build configuration whose output is signed.
const DefaultConfiguration = "Release"

// DefaultTestMarker excludes test projects from signing.
const DefaultTestMarker = "test"

// LibsDir is the subtree of the build root that holds project output.
const LibsDir = "libs"

// Convention maps a project descriptor extension to the artifact it produces.
type Convention struct {
	// DescriptorExt is the descriptor file extension without the dot ("vcxproj").
	DescriptorExt string

	// ArtifactExt is the produced artifact extension without the dot ("dll").
	ArtifactExt string
}

// DefaultConventions lists the descriptor types whose output is signed.
// Order matters: results are reported convention by convention.
var DefaultConventions = []Convention{
	{DescriptorExt: "vcxproj", ArtifactExt: "dll"},
	{DescriptorExt: "csproj", ArtifactExt: "dll"},
}

// Matches reports whether name is a descriptor for this convention.
func (c Convention) Matches(name string) bool {
	ext := filepath.Ext(name)
	return ext == "."+c.DescriptorExt && len(name) > len(ext)
}

// ArtifactPath derives <descriptor dir>/<configuration>/<stem>.<ext>.
func (c Convention) ArtifactPath(descriptor, configuration string) string {
	return filepath.Join(
		filepath.Dir(descriptor),
		configuration,
		Stem(descriptor)+"."+c.ArtifactExt,
	)
}

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
