package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/signstage/internal/relocate"
	"github.com/roach88/signstage/internal/testutil"
)

// createTestJournal opens a journal in a temp directory for testing.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		j.Close()
	}

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	for _, table := range []string{"cycles", "moves"} {
		var name string
		err := j.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}

	var version int
	require.NoError(t, j.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestClose_ZeroValue(t *testing.T) {
	assert.NoError(t, (&Journal{}).Close())
}

func TestBeginCycleAndMoves(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	c := relocate.Cycle{ID: "c1", Mode: relocate.ModeHarvest, BuildRoot: "/b", StagingDir: "/b/to_sign"}
	require.NoError(t, j.BeginCycle(ctx, c))
	require.NoError(t, j.BeginCycle(ctx, c), "duplicate cycle is ignored")

	require.NoError(t, j.RecordMove(ctx, "c1", relocate.Move{
		Name: "A.dll", Src: "/b/libs/A/Release/A.dll", Dst: "/b/to_sign/A.dll", Status: relocate.MoveDone,
	}))
	require.NoError(t, j.RecordMove(ctx, "c1", relocate.Move{
		Name: "B.dll", Src: "/b/libs/B/Release/B.dll", Dst: "/b/to_sign/B.dll", Status: relocate.MoveFailed, Error: "permission denied",
	}))

	cycles, err := j.Cycles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []relocate.Cycle{c}, cycles)

	moves, err := j.Moves(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, "A.dll", moves[0].Name)
	assert.Equal(t, relocate.MoveDone, moves[0].Status)
	assert.Equal(t, "permission denied", moves[1].Error)
}

func TestRecordMove_UnknownCycle(t *testing.T) {
	j := createTestJournal(t)

	err := j.RecordMove(context.Background(), "nope", relocate.Move{Name: "A.dll", Status: relocate.MoveDone})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record move")
}

func TestRecordMove_InvalidStatus(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.BeginCycle(ctx, relocate.Cycle{ID: "c1", Mode: relocate.ModeRestore}))

	err := j.RecordMove(ctx, "c1", relocate.Move{Name: "A.dll", Status: "skipped"})
	require.Error(t, err)
}

func TestEmptyJournal(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	cycles, err := j.Cycles(ctx)
	require.NoError(t, err)
	assert.NotNil(t, cycles)
	assert.Empty(t, cycles)

	_, ok, err := j.LastCycle(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	moves, err := j.Moves(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, moves)
	assert.Empty(t, moves)
}

func TestJournal_RecordsHarvestAndRestore(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	root := t.TempDir()
	for _, name := range []string{"A", "B"} {
		testutil.AddProject(t, root, name, name, "vcxproj", true)
	}

	opts := relocate.Options{
		Recorder: j,
		IDs:      testutil.NewSequenceIDGenerator("cycle"),
	}
	_, err := relocate.Harvest(ctx, root, opts)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "libs", "B", "Release")))
	_, err = relocate.Restore(ctx, root, opts)
	require.Error(t, err)

	cycles, err := j.Cycles(ctx)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "cycle-0001", cycles[0].ID)
	assert.Equal(t, relocate.ModeHarvest, cycles[0].Mode)
	assert.Equal(t, relocate.ModeRestore, cycles[1].Mode)

	last, ok, err := j.LastCycle(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cycles[1], last)

	harvested, err := j.Moves(ctx, cycles[0].ID)
	require.NoError(t, err)
	assert.Len(t, harvested, 2)

	restored, err := j.Moves(ctx, last.ID)
	require.NoError(t, err)
	require.Len(t, restored, 2)
	assert.Equal(t, relocate.MoveDone, restored[0].Status)
	assert.Equal(t, "B.dll", restored[1].Name)
	assert.Equal(t, relocate.MoveFailed, restored[1].Status)
	assert.Contains(t, restored[1].Error, "destination directory missing")
}
