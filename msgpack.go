// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package versioned

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"google.golang.org/protobuf/proto"
)

// MsgPackOptions configures [MsgPackFormat].
type MsgPackOptions struct {
	// Borrow makes decoded envelopes refer to the input buffer instead of
	// copying the payload out of it. The caller must then keep the buffer
	// alive and unmodified for as long as the envelope is in use.
	Borrow bool
	// StructsAsMaps encodes struct payloads as maps keyed by field name
	// instead of as arrays of field values. Decoding accepts both.
	StructsAsMaps bool
	// DisallowUnknownFields rejects map-encoded payloads with fields the
	// payload type does not declare.
	DisallowUnknownFields bool
}

type msgpackFormat struct {
	MsgPackOptions
}

// MsgPackFormat returns the binary format. Envelopes are two-element
// arrays of the version number and the payload as a binary blob:
//
//	92 01 c4 08 91 a6 76 61 6c 75 65 31
//
// is version 1 wrapping the 8 byte payload ["value1"].
//
// Struct field names follow the `json` struct tags, so a payload type can
// be shared with [JSONFormat]. Protobuf messages are carried in their
// binary wire encoding.
func MsgPackFormat(opts MsgPackOptions) Format {
	return &msgpackFormat{MsgPackOptions: opts}
}

func (f *msgpackFormat) String() string {
	return "msgpack"
}

func (f *msgpackFormat) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseArrayEncodedStructs(!f.StructsAsMaps)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *msgpackFormat) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}
	reader := bytes.NewReader(data)
	dec := msgpack.NewDecoder(reader)
	dec.SetCustomStructTag("json")
	dec.DisallowUnknownFields(f.DisallowUnknownFields)
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if code == msgpcode.Nil {
		return errors.New("payload is nil")
	}
	if err := dec.Decode(v); err != nil {
		return err
	}
	if reader.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after payload", reader.Len())
	}
	return nil
}

func (f *msgpackFormat) EncodeEnvelope(env Envelope) ([]byte, error) {
	if env.Data == nil {
		// EncodeBytes writes nil for a nil slice
		env.Data = []byte{}
	}
	var buf bytes.Buffer
	buf.Grow(len(env.Data) + 16)
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(2); err != nil {
		return nil, newFormatError(f.String(), "encode envelope", err)
	}
	if err := enc.EncodeUint(uint64(env.Version)); err != nil {
		return nil, newFormatError(f.String(), "encode envelope", err)
	}
	if err := enc.EncodeBytes(env.Data); err != nil {
		return nil, newFormatError(f.String(), "encode envelope", err)
	}
	return buf.Bytes(), nil
}

func (f *msgpackFormat) DecodeEnvelope(data []byte) (Envelope, error) {
	reader := bytes.NewReader(data)
	dec := msgpack.NewDecoder(reader)
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Envelope{}, newFormatError(f.String(), "decode envelope", err)
	}
	if n != 2 {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("envelope must be an array of 2 elements, got %d", n))
	}
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return Envelope{}, newFormatError(f.String(), "decode envelope", err)
	}
	var version Version
	switch raw := raw.(type) {
	case uint64:
		version = Version(raw)
	case int64:
		if raw < 0 {
			return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("version number %d is negative", raw))
		}
		version = Version(raw)
	default:
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("version number must be an unsigned integer, got %T", raw))
	}
	code, err := dec.PeekCode()
	if err != nil {
		return Envelope{}, newFormatError(f.String(), "decode envelope", err)
	}
	if code != msgpcode.Bin8 && code != msgpcode.Bin16 && code != msgpcode.Bin32 {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("payload must be a binary blob, got code %#x", code))
	}
	size, err := dec.DecodeBytesLen()
	if err != nil {
		return Envelope{}, newFormatError(f.String(), "decode envelope", err)
	}
	start := len(data) - reader.Len()
	end := start + size
	if end > len(data) {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("payload of %d bytes is truncated", size))
	}
	if end != len(data) {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("%d trailing bytes after envelope", len(data)-end))
	}
	payload := data[start:end:end]
	if !f.Borrow {
		payload = bytes.Clone(payload)
	}
	return Envelope{Version: version, Data: payload}, nil
}
