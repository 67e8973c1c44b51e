package segment

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterAppendAndReaderReadAt(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, 1)
	require.NoError(t, err)

	off1, len1, err := w.Append([]byte(`{"Set":{"key":"a","value":"1"}}`))
	require.NoError(t, err)
	require.Equal(t, int64(0), off1)

	off2, _, err := w.Append([]byte(`{"Set":{"key":"b","value":"2"}}`))
	require.NoError(t, err)
	require.Equal(t, off1+len1, off2)

	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	r, err := OpenReader(dir, 1)
	require.NoError(t, err)
	defer r.Close()

	raw, err := r.ReadAt(off1, len1)
	require.NoError(t, err)
	require.Equal(t, `{"Set":{"key":"a","value":"1"}}`, string(raw))
}

func TestNewWriterRejectsNonEmptyExistingSegment(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, 1)
	require.NoError(t, err)
	_, _, err = w.Append([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = NewWriter(dir, 1)
	require.Error(t, err)
}

func TestListGenerations(t *testing.T) {
	dir := t.TempDir()

	for _, gen := range []uint64{3, 1, 2} {
		w, err := NewWriter(dir, gen)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	gens, err := ListGenerations(dir)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, gens)
}

func TestNewRecordScanner(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, 5)
	require.NoError(t, err)
	_, _, err = w.Append([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	br, f, err := NewRecordScanner(dir, 5)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 5)
	n, err := io.ReadFull(br, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}
