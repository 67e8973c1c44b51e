// Package index provides the in-memory key directory for the store: a hash
// table mapping every live key to the Locator of its most recent Set record
// on disk. Keeping the full key set and just enough metadata to seek
// straight to a value is the central Bitcask trade-off — lookups cost one
// map access plus one positioned read, independent of how much data has
// accumulated on disk.
package index

import (
	"github.com/iamNilotpal/kvs/pkg/errors"
)

// New creates an empty Index.
func New(config *Config) (*Index, error) {
	if config == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "index configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Index{
		log:  config.Logger,
		locs: make(map[string]Locator, 1024),
	}, nil
}

// Get returns the Locator for key and whether it is present.
func (idx *Index) Get(key string) (Locator, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	loc, ok := idx.locs[key]
	return loc, ok
}

// Insert binds key to loc, returning whatever Locator it previously pointed
// at (the zero value and false if key was absent). The displaced Locator's
// Length tells the caller how many bytes on disk just became stale.
func (idx *Index) Insert(key string, loc Locator) (Locator, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old, had := idx.locs[key]
	idx.locs[key] = loc
	return old, had
}

// Remove deletes key from the index, returning the Locator it pointed at
// (the zero value and false if key was absent).
func (idx *Index) Remove(key string) (Locator, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old, had := idx.locs[key]
	if had {
		delete(idx.locs, key)
	}
	return old, had
}

// Len returns the number of live keys.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.locs)
}

// Snapshot returns a point-in-time copy of every key and its Locator. It is
// used by compaction to decide what must be rewritten, and takes the read
// lock only for the duration of the copy.
func (idx *Index) Snapshot() map[string]Locator {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string]Locator, len(idx.locs))
	for k, v := range idx.locs {
		out[k] = v
	}
	return out
}

// CompareAndSwap replaces the Locator for key with next, but only if the
// current value still equals expect. It reports whether the swap happened.
// Compaction uses this to publish rewritten locations without clobbering a
// concurrent write that landed on the same key while the rewrite was in
// flight.
func (idx *Index) CompareAndSwap(key string, expect, next Locator) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	current, ok := idx.locs[key]
	if !ok || current != expect {
		idx.log.Debugw("compare-and-swap lost the race", "key", key, "expected", expect, "current", current)
		return false
	}
	idx.locs[key] = next
	return true
}
