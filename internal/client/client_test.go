package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/internal/server"
	"github.com/iamNilotpal/kvs/internal/workerpool"
	"github.com/iamNilotpal/kvs/pkg/options"
)

func startServer(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir

	store, err := engine.Open(context.Background(), &engine.Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)

	pool, err := workerpool.NewSharedQueuePool(2, zap.NewNop().Sugar())
	require.NoError(t, err)

	srv, err := server.New(&server.Config{Store: store, Pool: pool, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx, addr)
	t.Cleanup(func() {
		cancel()
		pool.Close()
		store.Close()
	})

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return addr
}

func TestClientSetGetRemove(t *testing.T) {
	addr := startServer(t)

	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k", "v"))

	v, ok, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, c.Remove("k"))

	_, ok, err = c.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConnectRejectsMalformedAddress(t *testing.T) {
	_, err := Connect("not-an-address")
	require.Error(t, err)
}

func TestClientRemoveMissingKeyReturnsRemoteError(t *testing.T) {
	addr := startServer(t)

	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Remove("nope")
	require.Error(t, err)
	require.Equal(t, "Key not found", err.Error())
}
