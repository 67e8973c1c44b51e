// Package protocol defines the wire format spoken between a client and the
// server: a self-delimiting stream of JSON-encoded Request/Response tagged
// unions, read and written with json.Decoder/json.Encoder so multiple
// requests can share one TCP connection without any length framing.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// Get asks for the value bound to Key.
type Get struct {
	Key string `json:"key"`
}

// Set binds Key to Value, overwriting any prior binding.
type Set struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Remove deletes Key.
type Remove struct {
	Key string `json:"key"`
}

// Request is the tagged union of operations a client may send. Exactly one
// field is non-nil on the wire: {"Get":{"key":"..."}}, {"Set":{...}}, or
// {"Remove":{...}}.
type Request struct {
	Get    *Get    `json:"Get,omitempty"`
	Set    *Set    `json:"Set,omitempty"`
	Remove *Remove `json:"Remove,omitempty"`
}

// NewGetRequest builds a Request wrapping a Get operation.
func NewGetRequest(key string) Request { return Request{Get: &Get{Key: key}} }

// NewSetRequest builds a Request wrapping a Set operation.
func NewSetRequest(key, value string) Request { return Request{Set: &Set{Key: key, Value: value}} }

// NewRemoveRequest builds a Request wrapping a Remove operation.
func NewRemoveRequest(key string) Request { return Request{Remove: &Remove{Key: key}} }

// Validate reports whether r carries exactly one operation.
func (r Request) Validate() error {
	n := 0
	for _, present := range []bool{r.Get != nil, r.Set != nil, r.Remove != nil} {
		if present {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("request must carry exactly one operation, got %d", n)
	}
	return nil
}

// Response is the tagged union of server replies. Ok carries the looked-up
// value for a Get (nil if the key was absent) and nothing meaningful for
// Set/Remove; Err carries a human-readable failure message. Both fields are
// omitted when nil, so an error encodes as {"Err":"..."}, a Get hit as
// {"Ok":"..."}, and a successful reply with no value (a Set/Remove
// acknowledgement or a Get miss) as {}; IsOk treats any reply without Err
// as success.
type Response struct {
	Ok  *string `json:"Ok,omitempty"`
	Err *string `json:"Err,omitempty"`
}

// OkResponse builds a successful response. value is nil for Set/Remove
// acknowledgements or for a Get miss.
func OkResponse(value *string) Response {
	return Response{Ok: value}
}

// ErrResponse builds a failure response carrying msg.
func ErrResponse(msg string) Response {
	return Response{Err: &msg}
}

// IsOk reports whether r represents success.
func (r Response) IsOk() bool { return r.Err == nil }

// Encoder writes Requests or Responses to an underlying stream, one
// self-delimiting JSON value per call.
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// EncodeRequest writes req.
func (e *Encoder) EncodeRequest(req Request) error {
	return e.enc.Encode(req)
}

// EncodeResponse writes resp.
func (e *Encoder) EncodeResponse(resp Response) error {
	return e.enc.Encode(resp)
}

// Decoder reads Requests or Responses from an underlying stream.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// DecodeRequest reads and validates the next Request.
func (d *Decoder) DecodeRequest() (Request, error) {
	var req Request
	if err := d.dec.Decode(&req); err != nil {
		return Request{}, err
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// DecodeResponse reads the next Response.
func (d *Decoder) DecodeResponse() (Response, error) {
	var resp Response
	if err := d.dec.Decode(&resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
