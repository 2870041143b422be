package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/signstage/internal/ledger"
	"github.com/roach88/signstage/internal/testutil"
)

func TestRestore_RoundTrip(t *testing.T) {
	root := buildTree(t)
	before := testutil.ListTree(t, root)

	_, _, err := execute(t, "harvest", "--build_dir", root)
	require.NoError(t, err)

	out, _, err := execute(t, "restore", "--build_dir", root)
	require.NoError(t, err)

	staging := filepath.Join(root, "to_sign")
	want := "DLLs to restore:\n" +
		filepath.Join(staging, "A.dll") + " -> " + filepath.Join(root, "libs", "A", "Release", "A.dll") + "\n" +
		filepath.Join(staging, "C.dll") + " -> " + filepath.Join(root, "libs", "group", "C", "Release", "C.dll") + "\n" +
		filepath.Join(staging, "B.dll") + " -> " + filepath.Join(root, "libs", "B", "Release", "B.dll") + "\n"
	assert.Equal(t, want, out)

	after := testutil.ListTree(t, root)
	assert.Equal(t, append(before, "to_sign/dll_mapping.json"), after)
	assert.Equal(t, "binary:C", testutil.ReadFile(t, root, "libs/group/C/Release/C.dll"))
}

func TestRestore_MissingLedger(t *testing.T) {
	root := buildTree(t)
	before := testutil.ListTree(t, root)

	out, _, err := execute(t, "restore", "--build_dir", root, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	resp, _ := decodeResponse(t, out)
	assert.Equal(t, ErrCodeLedgerNotFound, resp.Error.Code)
	assert.Equal(t, before, testutil.ListTree(t, root))
}

func TestRestore_MissingLedgerCreatesNoJournal(t *testing.T) {
	root := buildTree(t)
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	_, _, err := execute(t, "restore", "--build_dir", root, "--journal", dbPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.NoFileExists(t, dbPath)

	_, _, err = execute(t, "restore", "--build_dir", filepath.Join(root, "nope"), "--journal", dbPath)
	require.Error(t, err)
	assert.NoFileExists(t, dbPath)
}

func TestRestore_JournalCreatedOnFirstCycle(t *testing.T) {
	root := buildTree(t)
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	_, _, err := execute(t, "harvest", "--build_dir", root)
	require.NoError(t, err)
	assert.NoFileExists(t, dbPath)

	_, _, err = execute(t, "restore", "--build_dir", root, "--journal", dbPath)
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
}

func TestRestore_JournalUnavailable(t *testing.T) {
	root := buildTree(t)
	_, _, err := execute(t, "harvest", "--build_dir", root)
	require.NoError(t, err)
	dbPath := filepath.Join(t.TempDir(), "missing", "dir", "journal.db")

	out, _, err := execute(t, "restore", "--build_dir", root, "--journal", dbPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeResponse(t, out)
	assert.Equal(t, ErrCodeJournal, resp.Error.Code)
	assert.FileExists(t, filepath.Join(root, "to_sign", "A.dll"))
}

func TestRestore_MalformedLedger(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"to_sign/dll_mapping.json": `{"mapping": [{"dll": "A.dll"}]}`,
		"to_sign/A.dll":            "signed",
	})

	out, _, err := execute(t, "restore", "--build_dir", root, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeResponse(t, out)
	assert.Equal(t, ErrCodeLedgerMalformed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "mapping[0].path")
	assert.FileExists(t, filepath.Join(root, "to_sign", "A.dll"))
}

func TestRestore_PartialFailure(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"A", "B", "C"} {
		testutil.AddProject(t, root, name, name, "vcxproj", true)
	}

	_, _, err := execute(t, "harvest", "--build_dir", root)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "libs", "B", "Release")))

	out, _, err := execute(t, "restore", "--build_dir", root, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "B.dll")

	resp, _ := decodeResponse(t, out)
	assert.Equal(t, ErrCodeMoveFailed, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok, "details carry the partial report")
	assert.Len(t, details["moves"], 2)

	assert.FileExists(t, filepath.Join(root, "libs", "A", "Release", "A.dll"))
	assert.FileExists(t, filepath.Join(root, "to_sign", "B.dll"))
	assert.FileExists(t, filepath.Join(root, "to_sign", "C.dll"))
	assert.NoFileExists(t, filepath.Join(root, "libs", "C", "Release", "C.dll"))
}

func TestRestore_EmptyLedger(t *testing.T) {
	root := t.TempDir()

	_, _, err := execute(t, "harvest", "--build_dir", root)
	require.NoError(t, err)

	out, _, err := execute(t, "restore", "--build_dir", root)
	require.NoError(t, err)
	assert.Equal(t, "DLLs to restore:\n", out)
}

func TestRestore_JSONOutput(t *testing.T) {
	root := buildTree(t)

	_, _, err := execute(t, "harvest", "--build_dir", root)
	require.NoError(t, err)

	out, _, err := execute(t, "restore", "--build_dir", root, "--format", "json")
	require.NoError(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "restore", data["mode"])
	moves, ok := data["moves"].([]interface{})
	require.True(t, ok)
	require.Len(t, moves, 3)
	first := moves[0].(map[string]interface{})
	assert.Equal(t, "A.dll", first["dll"])
	assert.Equal(t, "moved", first["status"])
}
