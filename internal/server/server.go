// Package server implements the TCP front end that exposes an engine.Store
// over the wire protocol defined in package protocol. It accepts
// connections in a loop, hands each one a cloned engine handle, and
// dispatches the work to a worker pool so a slow or stuck connection never
// blocks the listener.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/internal/protocol"
	"github.com/iamNilotpal/kvs/internal/workerpool"
	kvserrors "github.com/iamNilotpal/kvs/pkg/errors"
)

// Server binds a listen address and serves the wire protocol against a
// single underlying engine.Store.
type Server struct {
	store *engine.Store
	pool  workerpool.Pool
	log   *zap.SugaredLogger
}

// Config holds the parameters needed to construct a Server.
type Config struct {
	Store  *engine.Store
	Pool   workerpool.Pool
	Logger *zap.SugaredLogger
}

// New builds a Server from config.
func New(config *Config) (*Server, error) {
	if config == nil || config.Store == nil || config.Pool == nil || config.Logger == nil {
		return nil, kvserrors.NewValidationError(
			nil, kvserrors.ErrorCodeInvalidInput, "server configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}
	return &Server{store: config.Store, pool: config.Pool, log: config.Logger}, nil
}

// Run binds addr and accepts connections until ctx is canceled or Listen
// fails. Each accepted connection is served by a cloned engine handle on the
// worker pool. A per-connection accept error is logged and the loop
// continues; it never aborts the listener.
func (s *Server) Run(ctx context.Context, addr string) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to bind listener").WithPath(addr)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Infow("server listening", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Errorw("connection failed", "error", err)
			continue
		}

		handle := s.store.Clone()
		s.pool.Spawn(func() {
			defer handle.Close()
			if err := s.serve(handle, conn); err != nil {
				s.log.Errorw("error serving client", "remote", conn.RemoteAddr(), "error", err)
			}
		})
	}
}

// serve decodes requests from conn until EOF, dispatches each to handle, and
// writes one response per request, in order.
func (s *Server) serve(handle *engine.Store, conn net.Conn) error {
	defer conn.Close()

	dec := protocol.NewDecoder(bufio.NewReader(conn))
	writer := bufio.NewWriter(conn)
	enc := protocol.NewEncoder(writer)

	for {
		req, err := dec.DecodeRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp := s.dispatch(handle, req)
		if err := enc.EncodeResponse(resp); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
}

// dispatch executes req against handle and translates the outcome into a
// Response. Engine errors never propagate past this call: every error
// becomes an Err response and the connection keeps serving subsequent
// requests.
func (s *Server) dispatch(handle *engine.Store, req protocol.Request) protocol.Response {
	switch {
	case req.Get != nil:
		value, ok, err := handle.Get(req.Get.Key)
		if err != nil {
			return protocol.ErrResponse(err.Error())
		}
		if !ok {
			return protocol.OkResponse(nil)
		}
		return protocol.OkResponse(&value)

	case req.Set != nil:
		if err := handle.Set(req.Set.Key, req.Set.Value); err != nil {
			return protocol.ErrResponse(err.Error())
		}
		return protocol.OkResponse(nil)

	case req.Remove != nil:
		if err := handle.Remove(req.Remove.Key); err != nil {
			if kvserrors.GetErrorCode(err) == kvserrors.ErrorCodeKeyNotFound {
				return protocol.ErrResponse("Key not found")
			}
			return protocol.ErrResponse(err.Error())
		}
		return protocol.OkResponse(nil)

	default:
		return protocol.ErrResponse("malformed request")
	}
}
