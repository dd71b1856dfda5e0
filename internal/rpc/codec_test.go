package rpc_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctomkow/gluetube/internal/rpc"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	frame, err := rpc.Encode(rpc.MethodSetScheduleCron, int64(42), "*/5 * * * *")
	require.NoError(t, err)

	decoded, err := rpc.Decode(bytes.NewReader(frame))
	require.NoError(t, err)

	assert.Equal(t, rpc.MethodSetScheduleCron, decoded.Func)
	require.Len(t, decoded.Params, 2)

	var id int64
	require.NoError(t, json.Unmarshal(decoded.Params[0], &id))
	assert.Equal(t, int64(42), id)

	var expr string
	require.NoError(t, json.Unmarshal(decoded.Params[1], &expr))
	assert.Equal(t, "*/5 * * * *", expr)
}

func TestDecode_RejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	_, err := rpc.Decode(&buf)
	assert.Error(t, err)
}

func TestDecode_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := rpc.Decode(&buf)
	assert.Error(t, err)
}

func TestDecode_TruncatedBodyErrors(t *testing.T) {
	frame, err := rpc.Encode(rpc.MethodDeletePipeline, int64(1))
	require.NoError(t, err)

	truncated := frame[:len(frame)-2]
	_, err = rpc.Decode(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestDecode_MalformedJSONErrors(t *testing.T) {
	body := []byte(`{not json`)
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, byte(len(body))})
	buf.Write(body)
	_, err := rpc.Decode(&buf)
	assert.Error(t, err)
}
