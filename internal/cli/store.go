package cli

import (
	"github.com/gofrs/flock"

	"github.com/roach88/pinbase/internal/store"
)

// openStore opens the configured ledger database.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// acquireRunLock takes the exclusive lock that keeps a second run or
// republish from writing to the same database concurrently. The lock file
// sits next to the database.
func acquireRunLock(opts *RootOptions) (*flock.Flock, error) {
	lock := flock.New(opts.Config.Database + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to acquire run lock", err)
	}
	if !ok {
		return nil, NewExitError(ExitCommandError, "another run is in progress for "+opts.Config.Database)
	}
	return lock, nil
}
