// Package segment manages the individual append-only log files a store is
// built from. Each segment is named "<generation>.log" inside the store's
// data directory; a Writer appends records to the active segment and a
// Reader satisfies positioned reads against any segment, live or frozen.
package segment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	kvserrors "github.com/iamNilotpal/kvs/pkg/errors"
)

const extension = ".log"

// Name returns the file name of the segment for the given generation.
func Name(generation uint64) string {
	return strconv.FormatUint(generation, 10) + extension
}

// Path returns the full path of the segment for the given generation inside dir.
func Path(dir string, generation uint64) string {
	return filepath.Join(dir, Name(generation))
}

// ListGenerations scans dir for segment files and returns the generation
// numbers found, sorted ascending. Non-matching entries (the "engine" marker
// file, stray files left by a foreign process) are silently skipped.
func ListGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	gens := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, extension) {
			continue
		}
		stem := strings.TrimSuffix(name, extension)
		gen, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// Writer appends records to a single segment file and tracks the current
// write offset so callers can build Locators for what they just wrote.
type Writer struct {
	generation uint64
	path       string
	file       *os.File
	buf        *bufio.Writer
	offset     int64
}

// NewWriter opens (or creates) the segment for generation inside dir for
// appending. The generation must not already hold a non-empty segment;
// every new generation is produced by the engine exactly once, so finding
// existing content indicates a logic error or filesystem corruption.
func NewWriter(dir string, generation uint64) (*Writer, error) {
	path := Path(dir, generation)

	if stat, err := os.Stat(path); err == nil && stat.Size() > 0 {
		return nil, kvserrors.NewStorageError(nil, kvserrors.ErrorCodeIO,
			fmt.Sprintf("segment %d already has content", generation)).
			WithGeneration(generation).WithPath(path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, kvserrors.ClassifyFileOpenError(err, path, Name(generation)).(*kvserrors.StorageError).WithGeneration(generation)
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to seek to end of segment").
			WithGeneration(generation).WithPath(path)
	}

	return &Writer{
		generation: generation,
		path:       path,
		file:       file,
		buf:        bufio.NewWriter(file),
		offset:     offset,
	}, nil
}

// Generation returns the generation number this writer appends to.
func (w *Writer) Generation() uint64 {
	return w.generation
}

// Offset returns the current write offset, i.e. the byte position the next
// Append call will start at.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Append writes record to the segment and returns the (offset, length) at
// which it landed. The write goes through a buffered writer; callers that
// need a durability guarantee (e.g. before acknowledging a client) should
// call Sync.
func (w *Writer) Append(record []byte) (offset int64, length int64, err error) {
	offset = w.offset

	n, err := w.buf.Write(record)
	if err != nil {
		return 0, 0, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to append record").
			WithGeneration(w.generation).WithPath(w.path).WithOffset(offset)
	}

	w.offset += int64(n)
	return offset, int64(n), nil
}

// Flush pushes buffered bytes to the OS so any reader opening the same
// path afterward observes them; it does not fsync. This is the durability
// level the store gives every Set and Remove — no per-write fsync is
// promised or performed.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to flush segment buffer").
			WithGeneration(w.generation).WithPath(w.path)
	}
	return nil
}

// Sync flushes buffered data and fsyncs the underlying file.
func (w *Writer) Sync() error {
	if err := w.buf.Flush(); err != nil {
		return kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to flush segment buffer").
			WithGeneration(w.generation).WithPath(w.path)
	}
	if err := w.file.Sync(); err != nil {
		return kvserrors.ClassifySyncError(err, Name(w.generation), w.path, w.offset).(*kvserrors.StorageError).
			WithGeneration(w.generation)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to flush segment buffer").
			WithGeneration(w.generation).WithPath(w.path)
	}
	if err := w.file.Close(); err != nil {
		return kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to close segment file").
			WithGeneration(w.generation).WithPath(w.path)
	}
	return nil
}

// Reader performs positioned reads against a frozen or in-progress segment
// file. Unlike Writer, a Reader is safe to keep open across many unrelated
// reads — each ReadAt call seeks independently.
type Reader struct {
	generation uint64
	path       string
	file       *os.File
}

// OpenReader opens the segment for generation inside dir for reading.
func OpenReader(dir string, generation uint64) (*Reader, error) {
	path := Path(dir, generation)
	file, err := os.Open(path)
	if err != nil {
		return nil, kvserrors.ClassifyFileOpenError(err, path, Name(generation)).(*kvserrors.StorageError).
			WithGeneration(generation)
	}
	return &Reader{generation: generation, path: path, file: file}, nil
}

// Generation returns the generation number this reader serves.
func (r *Reader) Generation() uint64 {
	return r.generation
}

// ReadAt reads exactly length bytes starting at offset. It is used to fetch
// the raw record bytes a Locator points to.
func (r *Reader) ReadAt(offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.file.ReadAt(buf, offset)
	if err != nil {
		return nil, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to read record").
			WithGeneration(r.generation).WithPath(r.path).WithOffset(offset)
	}
	if int64(n) != length {
		return nil, kvserrors.NewStorageError(nil, kvserrors.ErrorCodeIO,
			"short read").WithGeneration(r.generation).WithOffset(offset).WithPath(r.path)
	}
	return buf, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if err := r.file.Close(); err != nil {
		return kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to close segment file").
			WithGeneration(r.generation).WithPath(r.path)
	}
	return nil
}

// NewRecordScanner returns a buffered reader positioned at the start of the
// segment, suitable for sequential replay during recovery or compaction.
func NewRecordScanner(dir string, generation uint64) (*bufio.Reader, *os.File, error) {
	path := Path(dir, generation)
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, kvserrors.ClassifyFileOpenError(err, path, Name(generation)).(*kvserrors.StorageError).
			WithGeneration(generation)
	}
	return bufio.NewReader(file), file, nil
}
