package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/signstage/internal/ledger"
	"github.com/roach88/signstage/internal/relocate"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"ledger not found", fmt.Errorf("load: %w", ledger.ErrNotFound), ErrCodeLedgerNotFound, ExitCommandError},
		{"ledger malformed", &ledger.FormatError{Field: "mapping", Message: "missing"}, ErrCodeLedgerMalformed, ExitCommandError},
		{"discovery", fmt.Errorf("%w: permission denied", relocate.ErrDiscovery), ErrCodeDiscovery, ExitCommandError},
		{"move", &relocate.MoveError{Mode: relocate.ModeHarvest, Name: "A.dll", Err: errors.New("busy")}, ErrCodeMoveFailed, ExitFailure},
		{"staged missing", &relocate.MoveError{Mode: relocate.ModeRestore, Name: "A.dll", Err: relocate.ErrStagedMissing}, ErrCodeMoveFailed, ExitFailure},
		{"duplicate", fmt.Errorf("%w: Core.dll", relocate.ErrDuplicateName), ErrCodeDuplicateName, ExitFailure},
		{"already harvested", relocate.ErrAlreadyHarvested, ErrCodeAlreadyHarvested, ExitFailure},
		{"interrupted", fmt.Errorf("harvest interrupted: %w", context.Canceled), ErrCodeInterrupted, ExitFailure},
		{"journal open", fmt.Errorf("journal: %w: unable to open database file", errJournalOpen), ErrCodeJournal, ExitCommandError},
		{"other", errors.New("journal: disk full"), ErrCodeGeneric, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestReportError_TextLeavesOutputEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := reportError(formatter, "restore failed", ledger.ErrNotFound, nil)
	require.Error(t, err)
	assert.Empty(t, buf.String())
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
