// Package engine provides the core database engine implementation for the
// ignitekv storage system.
//
// The engine serves as the central coordinator and entry point for all database
// operations. It orchestrates the interaction between the on-disk log segments
// (package segment), the in-memory key directory (package index), and its own
// writer-exclusion and compaction logic to provide a Bitcask-style store: many
// concurrent readers, a single serialized writer, online compaction that never
// blocks a read.
//
// A Store value is a cheap, cloneable handle. Clones share the index, the
// writer section and the generation counters; each clone owns its own set of
// open segment-reader file handles, opened lazily and dropped once compaction
// makes them stale.
package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/kvs/internal/command"
	"github.com/iamNilotpal/kvs/internal/index"
	"github.com/iamNilotpal/kvs/internal/segment"
	kvserrors "github.com/iamNilotpal/kvs/pkg/errors"
	"github.com/iamNilotpal/kvs/pkg/filesys"
	"github.com/iamNilotpal/kvs/pkg/options"
)

// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
var ErrEngineClosed = kvserrors.NewStorageError(nil, kvserrors.ErrorCodeIO, "operation failed: cannot access closed engine")

// writerState guards everything the single serialized writer owns: the
// active segment writer, the generation it is writing to, and the running
// count of stale on-disk bytes that decides when to compact. Exactly one
// goroutine across every handle sharing this state executes set, remove or
// compact at a time.
type writerState struct {
	mu          sync.Mutex
	currentGen  uint64
	active      *segment.Writer
	uncompacted int64
}

// shared is the portion of a Store every clone points at in common.
type shared struct {
	dir    string
	opts   options.Options
	log    *zap.SugaredLogger
	idx    *index.Index
	writer *writerState

	// latestCompactionGen is read with acquire and published with release
	// semantics (Go's atomic package gives sequential consistency, a
	// strictly stronger guarantee). Any reader handle must drop cached
	// file handles for generations below this value before servicing a
	// read, since those segments may be unlinked at any time afterward.
	latestCompactionGen atomic.Uint64

	closed atomic.Bool
}

// Store is a handle to an open ignitekv engine. It is safe for concurrent
// use; Clone produces an independent handle sharing the same underlying
// store.
type Store struct {
	*shared

	// owner is true only for the handle returned by Open; it alone closes
	// the shared writer section on Close. Cloned handles close only their
	// own reader file descriptors.
	owner bool

	readersMu sync.Mutex
	readers   map[uint64]*segment.Reader
}

// Config holds the parameters needed to open a Store.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Open opens (creating if necessary) the store rooted at config.Options.DataDir,
// replaying every existing segment to rebuild the index before accepting new
// operations.
func Open(ctx context.Context, config *Config) (*Store, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, kvserrors.NewValidationError(
			nil, kvserrors.ErrorCodeInvalidInput, "engine configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	dir := config.Options.DataDir
	log := config.Logger

	if err := filesys.CreateDir(dir, 0755, true); err != nil {
		return nil, kvserrors.ClassifyDirectoryCreationError(err, dir)
	}

	idx, err := index.New(&index.Config{Logger: log})
	if err != nil {
		return nil, err
	}

	gens, err := segment.ListGenerations(dir)
	if err != nil {
		return nil, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to list segments").WithPath(dir)
	}

	var uncompacted int64
	for _, gen := range gens {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := replaySegment(dir, gen, idx)
		if err != nil {
			return nil, err
		}
		uncompacted += n
	}

	currentGen := uint64(1)
	if len(gens) > 0 {
		currentGen = gens[len(gens)-1] + 1
	}

	active, err := segment.NewWriter(dir, currentGen)
	if err != nil {
		return nil, err
	}

	log.Infow("engine opened",
		"dir", dir, "currentGen", currentGen, "keys", idx.Len(), "uncompacted", uncompacted)

	s := &shared{
		dir:  dir,
		opts: *config.Options,
		log:  log,
		idx:  idx,
		writer: &writerState{
			currentGen:  currentGen,
			active:      active,
			uncompacted: uncompacted,
		},
	}

	return &Store{shared: s, owner: true, readers: make(map[uint64]*segment.Reader)}, nil
}

// replaySegment decodes every command in the segment for generation,
// folding it into idx, and returns the number of bytes it contributed to
// the uncompacted counter. A record that fails to decode is treated as a
// torn tail from a prior crash: replay of this segment stops there, every
// record decoded before it stays committed to the index.
func replaySegment(dir string, gen uint64, idx *index.Index) (int64, error) {
	reader, file, err := segment.NewRecordScanner(dir, gen)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	dec := json.NewDecoder(reader)

	var uncompacted int64
	for {
		start := dec.InputOffset()

		var cmd command.Command
		if err := dec.Decode(&cmd); err != nil {
			if err == io.EOF {
				break
			}
			// Torn tail: a partially-written record from a crash mid-append.
			// Everything decoded so far remains valid; stop here.
			break
		}

		end := dec.InputOffset()
		length := end - start

		if err := cmd.Validate(); err != nil {
			break
		}

		switch {
		case cmd.Set != nil:
			old, had := idx.Insert(cmd.Set.Key, index.Locator{Generation: gen, Offset: start, Length: length})
			if had {
				uncompacted += old.Length
			}
		case cmd.Remove != nil:
			old, had := idx.Remove(cmd.Remove.Key)
			if had {
				uncompacted += old.Length
			}
			uncompacted += length
		}
	}

	return uncompacted, nil
}

// Clone returns a new handle sharing this store's index, writer section and
// generation counters. The clone owns an independent, empty map of open
// segment readers.
func (s *Store) Clone() *Store {
	return &Store{shared: s.shared, owner: false, readers: make(map[uint64]*segment.Reader)}
}

// Set asserts the mapping key -> value, triggering compaction if the
// resulting stale-byte count crosses the configured threshold.
func (s *Store) Set(key, value string) error {
	if s.closed.Load() {
		return ErrEngineClosed
	}
	if key == "" {
		return kvserrors.NewValidationError(nil, kvserrors.ErrorCodeInvalidInput, "key must not be empty").
			WithField("key").WithRule("required")
	}

	raw, err := command.MarshalLogRecord(command.NewSet(key, value))
	if err != nil {
		return kvserrors.NewIndexError(err, kvserrors.ErrorCodeSerialization, "failed to encode set record").
			WithKey(key).WithOperation("Set")
	}

	w := s.writer
	w.mu.Lock()
	defer w.mu.Unlock()

	offset, length, err := w.active.Append(raw)
	if err != nil {
		return err
	}
	if err := w.active.Flush(); err != nil {
		return err
	}

	old, had := s.idx.Insert(key, index.Locator{Generation: w.currentGen, Offset: offset, Length: length})
	if had {
		w.uncompacted += old.Length
	}

	if w.uncompacted > s.opts.CompactionThreshold {
		if err := s.compactLocked(); err != nil {
			s.log.Errorw("compaction failed", "error", err)
		}
	}

	return nil
}

// Get returns the current value for key, or ok == false if key is absent.
func (s *Store) Get(key string) (value string, ok bool, err error) {
	if s.closed.Load() {
		return "", false, ErrEngineClosed
	}

	loc, found := s.idx.Get(key)
	if !found {
		return "", false, nil
	}

	reader, err := s.readerFor(key, loc.Generation)
	if err != nil {
		return "", false, err
	}

	raw, err := reader.ReadAt(loc.Offset, loc.Length)
	if err != nil {
		return "", false, err
	}

	var cmd command.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return "", false, kvserrors.NewIndexError(err, kvserrors.ErrorCodeSerialization, "failed to decode record").
			WithKey(key).WithGeneration(loc.Generation).WithOperation("Get")
	}
	if cmd.Set == nil {
		return "", false, kvserrors.NewIndexError(nil, kvserrors.ErrorCodeInvalidCommand, "locator did not point at a Set record").
			WithKey(key).WithGeneration(loc.Generation).WithOperation("Get")
	}

	return cmd.Set.Value, true, nil
}

// Remove deletes key, returning a KeyNotFound IndexError if it was absent.
// A remove on an absent key is not recorded in the log.
func (s *Store) Remove(key string) error {
	if s.closed.Load() {
		return ErrEngineClosed
	}

	w := s.writer
	w.mu.Lock()
	defer w.mu.Unlock()

	old, had := s.idx.Get(key)
	if !had {
		return kvserrors.NewKeyNotFoundError(key)
	}

	raw, err := command.MarshalLogRecord(command.NewRemove(key))
	if err != nil {
		return kvserrors.NewIndexError(err, kvserrors.ErrorCodeSerialization, "failed to encode remove record").
			WithKey(key).WithOperation("Remove")
	}

	_, length, err := w.active.Append(raw)
	if err != nil {
		return err
	}
	if err := w.active.Flush(); err != nil {
		return err
	}

	// Only now that the Remove record is flushed to the segment do we drop the
	// key from the index — if the append or flush above had failed, the
	// key must remain findable at its prior locator.
	s.idx.Remove(key)
	w.uncompacted += old.Length + length

	if w.uncompacted > s.opts.CompactionThreshold {
		if err := s.compactLocked(); err != nil {
			s.log.Errorw("compaction failed", "error", err)
		}
	}

	return nil
}

// compactLocked rewrites every live Set record into a fresh segment and
// retires everything older. w.mu must already be held by the caller.
func (s *Store) compactLocked() error {
	w := s.writer

	compactionGen := w.currentGen + 1
	newWriterGen := w.currentGen + 2

	compWriter, err := segment.NewWriter(s.dir, compactionGen)
	if err != nil {
		return err
	}

	newWriter, err := segment.NewWriter(s.dir, newWriterGen)
	if err != nil {
		compWriter.Close()
		return err
	}

	sourceReaders := make(map[uint64]*segment.Reader)
	closeSourceReaders := func() {
		for _, r := range sourceReaders {
			r.Close()
		}
	}

	snapshot := s.idx.Snapshot()
	for key, loc := range snapshot {
		reader, ok := sourceReaders[loc.Generation]
		if !ok {
			reader, err = segment.OpenReader(s.dir, loc.Generation)
			if err != nil {
				closeSourceReaders()
				compWriter.Close()
				newWriter.Close()
				return err
			}
			sourceReaders[loc.Generation] = reader
		}

		raw, err := reader.ReadAt(loc.Offset, loc.Length)
		if err != nil {
			closeSourceReaders()
			compWriter.Close()
			newWriter.Close()
			return err
		}

		newOffset, newLength, err := compWriter.Append(raw)
		if err != nil {
			closeSourceReaders()
			compWriter.Close()
			newWriter.Close()
			return err
		}

		s.idx.CompareAndSwap(key, loc, index.Locator{Generation: compactionGen, Offset: newOffset, Length: newLength})
	}
	closeSourceReaders()

	if err := compWriter.Flush(); err != nil {
		compWriter.Close()
		newWriter.Close()
		return err
	}
	if err := compWriter.Close(); err != nil {
		newWriter.Close()
		return err
	}

	oldActiveGen := w.currentGen
	if err := w.active.Close(); err != nil {
		s.log.Errorw("failed to close retired segment writer", "generation", oldActiveGen, "error", err)
	}

	w.active = newWriter
	w.currentGen = newWriterGen
	w.uncompacted = 0

	s.latestCompactionGen.Store(compactionGen)

	obsolete, err := segment.ListGenerations(s.dir)
	if err != nil {
		s.log.Errorw("failed to list segments during compaction cleanup", "error", err)
		return nil
	}

	var unlinkErrs error
	for _, gen := range obsolete {
		if gen >= compactionGen {
			continue
		}
		if err := os.Remove(segment.Path(s.dir, gen)); err != nil {
			// Another handle may still have the file open (stale-handle
			// collection releases it lazily); it will be retried on the
			// next compaction.
			unlinkErrs = multierr.Append(unlinkErrs, err)
		}
	}
	if unlinkErrs != nil {
		s.log.Errorw("failed to unlink some obsolete segments", "error", unlinkErrs)
	}

	s.log.Infow("compaction complete", "compactionGen", compactionGen, "newWriterGen", newWriterGen, "keys", len(snapshot))
	return nil
}

// readerFor returns this handle's reader for generation, opening it lazily
// and first dropping any cached readers for generations compaction has
// retired.
func (s *Store) readerFor(key string, gen uint64) (*segment.Reader, error) {
	s.readersMu.Lock()
	defer s.readersMu.Unlock()

	latest := s.latestCompactionGen.Load()
	for g, r := range s.readers {
		if g < latest {
			r.Close()
			delete(s.readers, g)
		}
	}

	if r, ok := s.readers[gen]; ok {
		return r, nil
	}

	r, err := segment.OpenReader(s.dir, gen)
	if err != nil {
		return nil, kvserrors.NewInvalidGenerationError(gen, key)
	}
	s.readers[gen] = r
	return r, nil
}

// Close releases this handle's own reader file descriptors. If this handle
// is the one Open returned, it also closes the shared active segment
// writer; clones close only their own resources.
func (s *Store) Close() error {
	s.readersMu.Lock()
	var errs error
	for gen, r := range s.readers {
		if err := r.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
		delete(s.readers, gen)
	}
	s.readersMu.Unlock()

	if !s.owner {
		return errs
	}

	if !s.closed.CompareAndSwap(false, true) {
		return multierr.Append(errs, ErrEngineClosed)
	}

	s.writer.mu.Lock()
	defer s.writer.mu.Unlock()
	if err := s.writer.active.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}
