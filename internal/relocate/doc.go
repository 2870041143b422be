// Package relocate moves signable artifacts into a staging directory and
// back again.
//
// A signing cycle is two separate process invocations that communicate
// only through the file system:
//
//	Harvest: locate artifacts, persist the ledger, move artifacts to staging
//	         (external signer runs on the staging directory)
//	Restore: load the ledger, move each staged artifact to its recorded path
//
// The state of a cycle is derived from the staging directory every time it
// is needed (see Inspect):
//
//	EMPTY      no ledger file
//	HARVESTED  ledger present, at least one listed artifact staged
//	RESTORED   ledger present, none of its artifacts staged
//
// Harvesting over a HARVESTED staging directory would overwrite the ledger
// and lose track of artifacts that are still staged. It is refused unless
// Options.Force is set.
//
// # Failure Model
//
// Moves run in ledger order and stop at the first failure. Completed moves
// are never rolled back; the ledger stays the authoritative record and the
// returned Report lists every attempted move with its outcome.
//
// Each move is a rename. When source and destination are on different
// volumes the artifact is copied under a unique temp name in the
// destination directory, renamed into place, and the source is removed.
package relocate
