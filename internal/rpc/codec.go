// Package rpc implements the daemon's wire protocol: a 4-byte big-endian
// length prefix followed by a UTF-8 JSON object {"func": "...", "params":
// [...]}, and the fixed-table dispatcher that resolves "func" to a handler.
//
// The framing is hand-rolled rather than pulled from a library because no
// repository in the reference corpus ships a length-prefixed JSON framer as
// a reusable package — steveyegge-beads' own internal/rpc rolls its wire
// format by hand too (newline-delimited JSON over bufio), just with a
// different delimiter. encoding/binary + io.ReadFull is the idiomatic
// choice for the one piece this repository can't borrow pre-built.
package rpc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's body to guard against a malformed or
// hostile length prefix exhausting memory.
const MaxFrameSize = 16 << 20 // 16 MiB

// Frame is the decoded wire message: a method name and its positional
// parameters, each left as raw JSON until a handler unmarshals it into a
// concrete type.
type Frame struct {
	Func   string            `json:"func"`
	Params []json.RawMessage `json:"params"`
}

// Encode marshals method and params into a length-prefixed frame.
func Encode(method string, params ...any) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("rpc encode: marshaling param: %w", err)
		}
		raw = append(raw, b)
	}

	body, err := json.Marshal(Frame{Func: method, Params: raw})
	if err != nil {
		return nil, fmt.Errorf("rpc encode: marshaling frame: %w", err)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(body))); err != nil {
		return nil, fmt.Errorf("rpc encode: writing length prefix: %w", err)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode reads exactly one length-prefixed frame from r.
func Decode(r io.Reader) (Frame, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return Frame{}, fmt.Errorf("rpc decode: reading length prefix: %w", err)
	}
	if length == 0 || length > MaxFrameSize {
		return Frame{}, fmt.Errorf("rpc decode: frame length %d out of bounds", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("rpc decode: reading body: %w", err)
	}

	var f Frame
	if err := json.Unmarshal(body, &f); err != nil {
		return Frame{}, fmt.Errorf("rpc decode: unmarshaling json: %w", err)
	}
	return f, nil
}
