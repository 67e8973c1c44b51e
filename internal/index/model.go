package index

import (
	"sync"

	"go.uber.org/zap"
)

// Locator is the in-memory pointer to a live Set record on disk. It names
// the segment generation the record lives in, the byte offset the record's
// JSON encoding starts at, and the length of that encoding in bytes — just
// enough to seek straight to the record and read exactly it, with no
// scanning and no separate length header.
type Locator struct {
	// Generation identifies the segment file ("<Generation>.log") the record
	// lives in.
	Generation uint64

	// Offset is the byte position within that segment where the record's
	// encoding starts.
	Offset int64

	// Length is the number of bytes the record's encoding occupies.
	Length int64
}

// Index is the in-memory key directory: every live key maps to the Locator
// of its most recent Set record. It is read far more often than written, so
// lookups take a read lock and only insert/remove/compare-and-swap
// operations take the write lock.
type Index struct {
	log  *zap.SugaredLogger
	mu   sync.RWMutex
	locs map[string]Locator
}

// Config encapsulates the configuration parameters required to initialize an Index.
type Config struct {
	Logger *zap.SugaredLogger
}
