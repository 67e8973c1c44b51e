package ignite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/kvs/pkg/options"
)

func TestInstanceSetGetDelete(t *testing.T) {
	dir := t.TempDir()

	inst, err := NewInstance(context.Background(), "ignite-test", options.WithDataDir(dir))
	require.NoError(t, err)
	defer inst.Close()

	require.NoError(t, inst.Set("k", "v"))

	v, ok, err := inst.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, inst.Delete("k"))
	_, ok, err = inst.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInstanceHandleClone(t *testing.T) {
	dir := t.TempDir()

	inst, err := NewInstance(context.Background(), "ignite-test", options.WithDataDir(dir))
	require.NoError(t, err)
	defer inst.Close()

	require.NoError(t, inst.Set("k", "v"))

	handle := inst.Handle()
	defer handle.Close()

	v, ok, err := handle.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}
