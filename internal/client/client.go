// Package client implements the TCP client half of the wire protocol
// defined in package protocol: it connects once and issues any number of
// Get/Set/Remove requests over the same connection.
package client

import (
	"bufio"
	"net"

	"github.com/iamNilotpal/kvs/internal/protocol"
	kvserrors "github.com/iamNilotpal/kvs/pkg/errors"
)

// Client sends requests to a single server connection and reads back its
// responses in order.
type Client struct {
	conn net.Conn
	dec  *protocol.Decoder
	enc  *protocol.Encoder
	w    *bufio.Writer
}

// Connect dials addr and returns a Client ready to issue requests.
func Connect(addr string) (*Client, error) {
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return nil, kvserrors.NewValidationError(err, kvserrors.ErrorCodeParsing, "failed to parse server address").
			WithField("addr").WithRule("host:port").WithProvided(addr)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to connect to server").WithPath(addr)
	}

	w := bufio.NewWriter(conn)
	return &Client{
		conn: conn,
		dec:  protocol.NewDecoder(bufio.NewReader(conn)),
		enc:  protocol.NewEncoder(w),
		w:    w,
	}, nil
}

// Get looks up key. value is the empty string with ok == false on a miss.
func (c *Client) Get(key string) (value string, ok bool, err error) {
	resp, err := c.roundTrip(protocol.NewGetRequest(key))
	if err != nil {
		return "", false, err
	}
	if !resp.IsOk() {
		return "", false, kvserrors.NewRemoteError(*resp.Err)
	}
	if resp.Ok == nil {
		return "", false, nil
	}
	return *resp.Ok, true, nil
}

// Set binds key to value on the server.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.NewSetRequest(key, value))
	if err != nil {
		return err
	}
	if !resp.IsOk() {
		return kvserrors.NewRemoteError(*resp.Err)
	}
	return nil
}

// Remove deletes key on the server. Removing an absent key is reported as a
// RemoteError by the server, re-raised here.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.NewRemoveRequest(key))
	if err != nil {
		return err
	}
	if !resp.IsOk() {
		return kvserrors.NewRemoteError(*resp.Err)
	}
	return nil
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	if err := c.enc.EncodeRequest(req); err != nil {
		return protocol.Response{}, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to send request")
	}
	if err := c.w.Flush(); err != nil {
		return protocol.Response{}, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to flush request")
	}

	resp, err := c.dec.DecodeResponse()
	if err != nil {
		return protocol.Response{}, kvserrors.NewStorageError(err, kvserrors.ErrorCodeIO, "failed to read response")
	}
	return resp, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
