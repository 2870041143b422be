package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/signstage/internal/relocate"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Journal records harvest and restore cycles in SQLite.
// It implements relocate.Recorder.
type Journal struct {
	db *sql.DB
}

var _ relocate.Recorder = (*Journal)(nil)

// Open creates or opens a journal database at path.
// Applies required pragmas and the schema. Safe to call repeatedly.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// BeginCycle records the start of a harvest or restore.
// Uses ON CONFLICT(id) DO NOTHING, so recording the same cycle twice is a no-op.
func (j *Journal) BeginCycle(ctx context.Context, c relocate.Cycle) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles (id, mode, build_root, staging_dir)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, c.ID, string(c.Mode), c.BuildRoot, c.StagingDir)
	if err != nil {
		return fmt.Errorf("begin cycle: %w", err)
	}
	return nil
}

// RecordMove appends one attempted move to a cycle.
// The cycle must have been recorded first (foreign key constraint).
func (j *Journal) RecordMove(ctx context.Context, cycleID string, m relocate.Move) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO moves (cycle_id, dll, src, dst, status, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cycleID, m.Name, m.Src, m.Dst, string(m.Status), m.Error)
	if err != nil {
		return fmt.Errorf("record move: %w", err)
	}
	return nil
}

// Cycles returns every recorded cycle in the order they began.
// Returns an empty slice (not nil) for an empty journal.
func (j *Journal) Cycles(ctx context.Context) ([]relocate.Cycle, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, mode, build_root, staging_dir
		FROM cycles
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []relocate.Cycle{}
	for rows.Next() {
		var c relocate.Cycle
		var mode string
		if err := rows.Scan(&c.ID, &mode, &c.BuildRoot, &c.StagingDir); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.Mode = relocate.Mode(mode)
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// LastCycle returns the most recent cycle, or false if none was recorded.
func (j *Journal) LastCycle(ctx context.Context) (relocate.Cycle, bool, error) {
	var c relocate.Cycle
	var mode string
	err := j.db.QueryRowContext(ctx, `
		SELECT id, mode, build_root, staging_dir
		FROM cycles
		ORDER BY seq DESC
		LIMIT 1
	`).Scan(&c.ID, &mode, &c.BuildRoot, &c.StagingDir)
	if err == sql.ErrNoRows {
		return relocate.Cycle{}, false, nil
	}
	if err != nil {
		return relocate.Cycle{}, false, fmt.Errorf("query last cycle: %w", err)
	}
	c.Mode = relocate.Mode(mode)
	return c, true, nil
}

// Moves returns the moves of one cycle in the order they were attempted.
// Returns an empty slice (not nil) if the cycle has no moves.
func (j *Journal) Moves(ctx context.Context, cycleID string) ([]relocate.Move, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT dll, src, dst, status, error
		FROM moves
		WHERE cycle_id = ?
		ORDER BY seq ASC
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	moves := []relocate.Move{}
	for rows.Next() {
		var m relocate.Move
		var status string
		if err := rows.Scan(&m.Name, &m.Src, &m.Dst, &status, &m.Error); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.Status = relocate.MoveStatus(status)
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moves: %w", err)
	}
	return moves, nil
}
