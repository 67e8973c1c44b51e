package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamNilotpal/kvs/pkg/options"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir

	s, err := Open(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	require.NoError(t, s.Set("key1", "value1"))

	v, ok, err := s.Get("key1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value1", v)

	_, ok, err = s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReopenPreservesState(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	require.NoError(t, s.Set("key1", "value1"))
	require.NoError(t, s.Close())

	s2 := openTestStore(t, dir)
	defer s2.Close()

	v, ok, err := s2.Get("key1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value1", v)
}

func TestOverwriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	require.NoError(t, s.Set("k", "a"))
	require.NoError(t, s.Set("k", "b"))
	require.NoError(t, s.Set("k", "c"))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", v)

	require.NoError(t, s.Remove("k"))
	_, ok, err = s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	err = s.Remove("k")
	require.Error(t, err)
}

func TestRemoveAbsentKeyIsKeyNotFound(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	err := s.Remove("nope")
	require.Error(t, err)
}

func TestEmptyValueRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	require.NoError(t, s.Set("k", ""))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "", v)
}

func TestCompactionReducesSegmentCountAndPreservesValues(t *testing.T) {
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.CompactionThreshold = 1024

	s, err := Open(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	defer s.Close()

	value := make([]byte, 200)
	for i := range value {
		value[i] = 'x'
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Set("hot-key", string(value)))
	}

	v, ok, err := s.Get("hot-key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, string(value), v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 2, "expected only the current writer and latest compaction segment to remain")
}

func TestRecoveryAfterTornTail(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i)))
	}
	require.NoError(t, s.Close())

	segPath := filepath.Join(dir, "1.log")
	data, err := os.ReadFile(segPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(segPath, data[:len(data)-5], 0644))

	s2 := openTestStore(t, dir)
	defer s2.Close()

	v, ok, err := s2.Get("k0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v0", v)
}

func TestCloneSharesStateButOwnsReaders(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	require.NoError(t, s.Set("k", "v"))

	clone := s.Clone()
	v, ok, err := clone.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, clone.Close())

	v, ok, err = s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestOpeningEmptyDirectoryStartsAtGenerationOne(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	require.NoError(t, s.Set("k", "v"))
	_, err := os.Stat(filepath.Join(dir, "1.log"))
	require.NoError(t, err)
}
