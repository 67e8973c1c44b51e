package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/internal/protocol"
	"github.com/iamNilotpal/kvs/internal/workerpool"
	"github.com/iamNilotpal/kvs/pkg/options"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir

	store, err := engine.Open(context.Background(), &engine.Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)

	pool, err := workerpool.NewSharedQueuePool(2, zap.NewNop().Sugar())
	require.NoError(t, err)

	srv, err := New(&Config{Store: store, Pool: pool, Logger: zap.NewNop().Sugar()})
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

func TestServerServesSetGetRemove(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	enc := protocol.NewEncoder(conn)
	dec := protocol.NewDecoder(conn)

	require.NoError(t, enc.EncodeRequest(protocol.NewSetRequest("k", "v")))
	resp, err := dec.DecodeResponse()
	require.NoError(t, err)
	require.True(t, resp.IsOk())

	require.NoError(t, enc.EncodeRequest(protocol.NewGetRequest("k")))
	resp, err = dec.DecodeResponse()
	require.NoError(t, err)
	require.True(t, resp.IsOk())
	require.NotNil(t, resp.Ok)
	require.Equal(t, "v", *resp.Ok)

	require.NoError(t, enc.EncodeRequest(protocol.NewRemoveRequest("k")))
	resp, err = dec.DecodeResponse()
	require.NoError(t, err)
	require.True(t, resp.IsOk())

	require.NoError(t, enc.EncodeRequest(protocol.NewGetRequest("k")))
	resp, err = dec.DecodeResponse()
	require.NoError(t, err)
	require.True(t, resp.IsOk())
	require.Nil(t, resp.Ok)
}

func TestServerRemoveMissingKeyReturnsKeyNotFoundErr(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	enc := protocol.NewEncoder(conn)
	dec := protocol.NewDecoder(conn)

	require.NoError(t, enc.EncodeRequest(protocol.NewRemoveRequest("nope")))
	resp, err := dec.DecodeResponse()
	require.NoError(t, err)
	require.False(t, resp.IsOk())
	require.Equal(t, "Key not found", *resp.Err)
}

func TestServerOneBadConnectionDoesNotStopListener(t *testing.T) {
	addr := startTestServer(t)

	bad, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	bad.Close()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	enc := protocol.NewEncoder(conn)
	dec := protocol.NewDecoder(conn)

	require.NoError(t, enc.EncodeRequest(protocol.NewSetRequest("k", "v")))
	resp, err := dec.DecodeResponse()
	require.NoError(t, err)
	require.True(t, resp.IsOk())
}
