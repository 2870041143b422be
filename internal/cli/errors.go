package cli

import (
	"context"
	"errors"

	"github.com/roach88/signstage/internal/ledger"
	"github.com/roach88/signstage/internal/relocate"
)

// Error codes reported in JSON error responses.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeConfig           = "E002" // Invalid flags or configuration
	ErrCodeBuildDir         = "E003" // Build directory missing or not a directory
	ErrCodeDiscovery        = "E004" // Artifact discovery failed
	ErrCodeLedgerNotFound   = "E005" // No ledger in the staging directory
	ErrCodeLedgerMalformed  = "E006" // Ledger failed to parse
	ErrCodeDuplicateName    = "E007" // Two artifacts share a file name
	ErrCodeAlreadyHarvested = "E008" // Staging directory holds an unrestored cycle
	ErrCodeMoveFailed       = "E009" // An artifact could not be moved
	ErrCodeJournal          = "E010" // Journal could not be opened
	ErrCodeInterrupted      = "E011" // Cancelled between moves
)

// errJournalOpen marks a journal that could not be opened or created.
var errJournalOpen = errors.New("journal unavailable")

// classify maps an operation error to its error code and exit code.
func classify(err error) (string, int) {
	var formatErr *ledger.FormatError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return ErrCodeLedgerNotFound, ExitCommandError
	case errors.As(err, &formatErr):
		return ErrCodeLedgerMalformed, ExitCommandError
	case errors.Is(err, errJournalOpen):
		return ErrCodeJournal, ExitCommandError
	case errors.Is(err, relocate.ErrDiscovery):
		return ErrCodeDiscovery, ExitCommandError
	case relocate.IsMoveError(err):
		return ErrCodeMoveFailed, ExitFailure
	case errors.Is(err, relocate.ErrDuplicateName):
		return ErrCodeDuplicateName, ExitFailure
	case errors.Is(err, relocate.ErrAlreadyHarvested):
		return ErrCodeAlreadyHarvested, ExitFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeInterrupted, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// reportError writes err through the formatter and converts it into an
// ExitError. Text output is left to the caller of Execute, which prints the
// returned error on stderr.
func reportError(formatter *OutputFormatter, message string, err error, details interface{}) error {
	code, exit := classify(err)
	return reportCode(formatter, code, exit, message, err, details)
}

func reportCode(formatter *OutputFormatter, code string, exit int, message string, err error, details interface{}) error {
	if formatter.Format == "json" {
		_ = formatter.Error(code, message+": "+err.Error(), details)
	}
	return WrapExitError(exit, message, err)
}
