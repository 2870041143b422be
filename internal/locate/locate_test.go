package locate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/signstage/internal/testutil"
)

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestLocate_FiltersTestsAndMissingArtifacts(t *testing.T) {
	root := t.TempDir()
	testutil.AddProject(t, root, "Foo", "Foo", "vcxproj", true)
	testutil.AddProject(t, root, "FooTests", "FooTests", "csproj", true)
	testutil.AddProject(t, root, "Bar", "Bar", "csproj", false)

	paths, err := New().Locate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"libs/Foo/Release/Foo.dll"}, rel(t, root, paths))
}

func TestLocate_TestMarkerIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	testutil.AddProject(t, root, "a", "UnitTESTS", "vcxproj", true)
	testutil.AddProject(t, root, "b", "testing_helpers", "csproj", true)
	testutil.AddProject(t, root, "c", "Contest", "csproj", true)
	testutil.AddProject(t, root, "d", "Core", "csproj", true)

	paths, err := New().Locate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"libs/d/Release/Core.dll"}, rel(t, root, paths))
}

func TestLocate_TwoDepths(t *testing.T) {
	root := t.TempDir()
	testutil.AddProject(t, root, "Shallow", "Shallow", "vcxproj", true)
	testutil.AddProject(t, root, "Net/dll", "Deep", "csproj", true)
	testutil.AddProject(t, root, "x/y/z", "TooDeep", "csproj", true)

	paths, err := New().Locate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"libs/Shallow/Release/Shallow.dll",
		"libs/Net/dll/Release/Deep.dll",
	}, rel(t, root, paths))
}

func TestLocate_OrderIsConventionThenDepth(t *testing.T) {
	root := t.TempDir()
	testutil.AddProject(t, root, "B", "B", "csproj", true)
	testutil.AddProject(t, root, "A/inner", "Inner", "vcxproj", true)
	testutil.AddProject(t, root, "C", "C", "vcxproj", true)
	testutil.AddProject(t, root, "A", "A", "vcxproj", true)

	paths, err := New().Locate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"libs/A/Release/A.dll",
		"libs/C/Release/C.dll",
		"libs/A/inner/Release/Inner.dll",
		"libs/B/Release/B.dll",
	}, rel(t, root, paths))
}

func TestLocate_SharedStemYieldsDuplicate(t *testing.T) {
	root := t.TempDir()
	testutil.AddProject(t, root, "Foo", "Foo", "vcxproj", true)
	testutil.AddProject(t, root, "Foo", "Foo", "csproj", true)

	paths, err := New().Locate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"libs/Foo/Release/Foo.dll",
		"libs/Foo/Release/Foo.dll",
	}, rel(t, root, paths))
}

func TestLocate_ArtifactDirectoryIsNotAFile(t *testing.T) {
	root := t.TempDir()
	testutil.AddProject(t, root, "Foo", "Foo", "vcxproj", false)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "libs", "Foo", "Release", "Foo.dll"), 0o755))

	paths, err := New().Locate(root)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLocate_IgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"libs/Foo/Foo.vcxproj.filters":     "",
		"libs/Foo/Release/Foo.vcxproj.dll": "",
		"libs/Foo/.vcxproj":                "",
		"libs/Foo/Release/.dll":            "",
	})

	paths, err := New().Locate(root)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLocate_CustomConfiguration(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"libs/Foo/Foo.vcxproj":     "",
		"libs/Foo/Release/Foo.dll": "",
		"libs/Foo/Debug/Foo.dll":   "",
	})

	l := New()
	l.Configuration = "Debug"
	paths, err := l.Locate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"libs/Foo/Debug/Foo.dll"}, rel(t, root, paths))
}

func TestLocate_EmptyTree(t *testing.T) {
	paths, err := New().Locate(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, paths)
	assert.Empty(t, paths)
}

func TestLocate_MissingRoot(t *testing.T) {
	_, err := New().Locate(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocate_RootIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := New().Locate(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestLocate_RootWithGlobMetacharacters(t *testing.T) {
	root := filepath.Join(t.TempDir(), "build[x64]")
	require.NoError(t, os.MkdirAll(root, 0o755))
	testutil.AddProject(t, root, "Foo", "Foo", "vcxproj", true)

	paths, err := New().Locate(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"libs/Foo/Release/Foo.dll"}, rel(t, root, paths))
}

// symlink creates link pointing at target, skipping the test where the
// platform refuses.
func symlink(t *testing.T, target, link string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(link), 0o755))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestLocate_FollowsSymlinkedProjectDir(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	testutil.WriteTree(t, target, map[string]string{
		"Foo/Foo.vcxproj":         "<Project/>",
		"Foo/Release/Foo.dll":     "binary:Foo",
		"Net/dll/Bar.csproj":      "<Project/>",
		"Net/dll/Release/Bar.dll": "binary:Bar",
	})
	symlink(t, filepath.Join(target, "Foo"), filepath.Join(root, "libs", "Foo"))
	symlink(t, filepath.Join(target, "Net"), filepath.Join(root, "libs", "Net"))

	paths, err := New().Locate(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"libs/Foo/Release/Foo.dll",
		"libs/Net/dll/Release/Bar.dll",
	}, rel(t, root, paths))
}

func TestLocate_FollowsSymlinkedDescriptor(t *testing.T) {
	root := t.TempDir()
	shared := filepath.Join(t.TempDir(), "Foo.vcxproj")
	require.NoError(t, os.WriteFile(shared, []byte("<Project/>"), 0o644))
	testutil.WriteTree(t, root, map[string]string{"libs/Foo/Release/Foo.dll": "binary:Foo"})
	symlink(t, shared, filepath.Join(root, "libs", "Foo", "Foo.vcxproj"))

	paths, err := New().Locate(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"libs/Foo/Release/Foo.dll"}, rel(t, root, paths))
}

func TestLocate_SkipsDanglingSymlink(t *testing.T) {
	root := t.TempDir()
	testutil.AddProject(t, root, "Foo", "Foo", "vcxproj", true)
	symlink(t, filepath.Join(root, "gone"), filepath.Join(root, "libs", "Gone"))
	symlink(t, filepath.Join(root, "gone.vcxproj"), filepath.Join(root, "libs", "Foo", "Gone.vcxproj"))

	paths, err := New().Locate(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"libs/Foo/Release/Foo.dll"}, rel(t, root, paths))
}

func TestConvention_ArtifactPath(t *testing.T) {
	conv := Convention{DescriptorExt: "vcxproj", ArtifactExt: "dll"}

	got := conv.ArtifactPath(filepath.Join("libs", "UGrid", "UGrid.vcxproj"), "Release")
	assert.Equal(t, filepath.Join("libs", "UGrid", "Release", "UGrid.dll"), got)

	assert.True(t, conv.Matches("UGrid.vcxproj"))
	assert.False(t, conv.Matches("UGrid.csproj"))
	assert.False(t, conv.Matches(".vcxproj"))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "UGridNET", Stem("libs/UGridNET/dll/UGridNET.csproj"))
	assert.Equal(t, "a.b", Stem("a.b.c"))
}
