package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.EncodeRequest(NewSetRequest("k", "v")))
	require.NoError(t, enc.EncodeRequest(NewGetRequest("k")))
	require.NoError(t, enc.EncodeRequest(NewRemoveRequest("k")))

	dec := NewDecoder(&buf)

	r1, err := dec.DecodeRequest()
	require.NoError(t, err)
	require.NotNil(t, r1.Set)
	assert.Equal(t, "k", r1.Set.Key)
	assert.Equal(t, "v", r1.Set.Value)

	r2, err := dec.DecodeRequest()
	require.NoError(t, err)
	require.NotNil(t, r2.Get)
	assert.Equal(t, "k", r2.Get.Key)

	r3, err := dec.DecodeRequest()
	require.NoError(t, err)
	require.NotNil(t, r3.Remove)
	assert.Equal(t, "k", r3.Remove.Key)
}

func TestRequestValidateRejectsMalformed(t *testing.T) {
	empty := Request{}
	assert.Error(t, empty.Validate())

	both := Request{Get: &Get{Key: "k"}, Remove: &Remove{Key: "k"}}
	assert.Error(t, both.Validate())
}

func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	value := "v"
	require.NoError(t, enc.EncodeResponse(OkResponse(&value)))
	require.NoError(t, enc.EncodeResponse(OkResponse(nil)))
	require.NoError(t, enc.EncodeResponse(ErrResponse("boom")))

	dec := NewDecoder(&buf)

	r1, err := dec.DecodeResponse()
	require.NoError(t, err)
	require.True(t, r1.IsOk())
	require.NotNil(t, r1.Ok)
	assert.Equal(t, "v", *r1.Ok)

	r2, err := dec.DecodeResponse()
	require.NoError(t, err)
	require.True(t, r2.IsOk())
	assert.Nil(t, r2.Ok)

	r3, err := dec.DecodeResponse()
	require.NoError(t, err)
	require.False(t, r3.IsOk())
	require.NotNil(t, r3.Err)
	assert.Equal(t, "boom", *r3.Err)
}
