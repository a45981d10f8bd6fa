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
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// Marshaler encodes a single payload.
type Marshaler interface {
	Marshal(any) ([]byte, error)
}

// Unmarshaler decodes a single payload into the value pointed to by its
// second argument.
type Unmarshaler interface {
	Unmarshal([]byte, any) error
}

// Format is a wire format for versioned data. It encodes payloads with its
// [Marshaler] and [Unmarshaler], and wraps an already encoded payload with
// its version number into an envelope.
//
// EncodeEnvelope and DecodeEnvelope never look inside the payload. Both
// must be pure functions of their input. Structural problems must be
// reported as a *FormatError.
//
// The package supports JSON ([JSONFormat]), MessagePack ([MsgPackFormat])
// and protobuf ([ProtoFormat]) out of the box; custom formats only need to
// implement this interface.
type Format interface {
	Marshaler
	Unmarshaler
	EncodeEnvelope(Envelope) ([]byte, error)
	DecodeEnvelope([]byte) (Envelope, error)
}

func formatName(format Format) string {
	if stringer, ok := format.(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprintf("%T", format)
}

const (
	jsonVersionField = "version_number"
	jsonDataField    = "data"
)

// JSONOptions configures [JSONFormat].
type JSONOptions struct {
	// LegacyVersion, if non-zero, is the version assigned to documents that
	// have neither a "version_number" nor a "data" field. The whole document
	// is then treated as the payload. This allows data written before the
	// type was versioned to be read. If zero, such documents are rejected.
	LegacyVersion Version
	// DisallowUnknownFields rejects envelopes with fields other than
	// "version_number" and "data", as well as payloads with fields the
	// payload type does not declare.
	DisallowUnknownFields bool
	// ProtoMarshal is used for payloads that are protobuf messages.
	ProtoMarshal protojson.MarshalOptions
	// ProtoUnmarshal is used for payloads that are protobuf messages.
	ProtoUnmarshal protojson.UnmarshalOptions
}

type jsonFormat struct {
	JSONOptions
	api jsoniter.API
}

// JSONFormat returns the structured-value format. Envelopes are objects
// with exactly two fields:
//
//	{"version_number": 1, "data": {"field1": "value1"}}
//
// Payloads are encoded with the same rules as encoding/json, so the usual
// `json` struct tags apply. Protobuf messages are encoded with protojson.
func JSONFormat(opts JSONOptions) Format {
	return &jsonFormat{
		JSONOptions: opts,
		api: jsoniter.Config{
			EscapeHTML:            true,
			SortMapKeys:           true,
			DisallowUnknownFields: opts.DisallowUnknownFields,
		}.Froze(),
	}
}

type jsonEnvelope struct {
	VersionNumber uint64              `json:"version_number"`
	Data          jsoniter.RawMessage `json:"data"`
}

func (f *jsonFormat) String() string {
	return "json"
}

func (f *jsonFormat) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return f.ProtoMarshal.Marshal(msg)
	}
	return f.api.Marshal(v)
}

func (f *jsonFormat) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return f.ProtoUnmarshal.Unmarshal(data, msg)
	}
	return f.api.Unmarshal(data, v)
}

func (f *jsonFormat) EncodeEnvelope(env Envelope) ([]byte, error) {
	if len(env.Data) == 0 {
		return nil, newFormatError(f.String(), "encode envelope", errors.New("payload is empty"))
	}
	if !f.api.Valid(env.Data) {
		return nil, newFormatError(f.String(), "encode envelope", errors.New("payload is not valid JSON"))
	}
	data, err := f.api.Marshal(jsonEnvelope{
		VersionNumber: uint64(env.Version),
		Data:          env.Data,
	})
	if err != nil {
		return nil, newFormatError(f.String(), "encode envelope", err)
	}
	return data, nil
}

func (f *jsonFormat) DecodeEnvelope(data []byte) (Envelope, error) {
	var fields map[string]jsoniter.RawMessage
	if err := f.api.Unmarshal(data, &fields); err != nil {
		return Envelope{}, newFormatError(f.String(), "decode envelope", err)
	}
	if fields == nil {
		return Envelope{}, newFormatError(f.String(), "decode envelope", errors.New("envelope must be an object"))
	}
	rawVersion, hasVersion := fields[jsonVersionField]
	rawData, hasData := fields[jsonDataField]
	if !hasVersion && !hasData && f.LegacyVersion != 0 {
		return Envelope{Version: f.LegacyVersion, Data: bytes.Clone(data)}, nil
	}
	if !hasVersion || isJSONNull(rawVersion) {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("missing %q field", jsonVersionField))
	}
	if !hasData {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("missing %q field", jsonDataField))
	}
	if f.DisallowUnknownFields && len(fields) != 2 {
		var unknown []string
		for name := range fields {
			if name != jsonVersionField && name != jsonDataField {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("unknown fields %s", strings.Join(unknown, ", ")))
	}
	var version uint64
	if err := f.api.Unmarshal(rawVersion, &version); err != nil {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("%q must be an unsigned integer: %w", jsonVersionField, err))
	}
	return Envelope{Version: Version(version), Data: rawData}, nil
}

func isJSONNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

const (
	protoVersionField protowire.Number = 1
	protoDataField    protowire.Number = 2
)

type protoFormat struct {
	proto.MarshalOptions
	proto.UnmarshalOptions
}

// ProtoFormat returns a format for payloads that are protobuf messages. The
// envelope is itself protobuf-encoded, as if it were the message
//
//	message Envelope {
//	  uint64 version_number = 1;
//	  bytes data = 2;
//	}
//
// Payload types registered for use with this format must implement
// [proto.Message].
func ProtoFormat(marshal proto.MarshalOptions, unmarshal proto.UnmarshalOptions) Format {
	return &protoFormat{
		MarshalOptions:   marshal,
		UnmarshalOptions: unmarshal,
	}
}

func (f *protoFormat) String() string {
	return "proto"
}

func (f *protoFormat) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("payload must be a proto.Message, got %T", v)
	}
	return f.MarshalOptions.Marshal(msg)
}

func (f *protoFormat) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("payload must be a proto.Message, got %T", v)
	}
	return f.UnmarshalOptions.Unmarshal(data, msg)
}

func (f *protoFormat) EncodeEnvelope(env Envelope) ([]byte, error) {
	size := protowire.SizeTag(protoVersionField) + protowire.SizeVarint(uint64(env.Version)) +
		protowire.SizeTag(protoDataField) + protowire.SizeBytes(len(env.Data))
	buf := make([]byte, 0, size)
	buf = protowire.AppendTag(buf, protoVersionField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(env.Version))
	buf = protowire.AppendTag(buf, protoDataField, protowire.BytesType)
	buf = protowire.AppendBytes(buf, env.Data)
	return buf, nil
}

func (f *protoFormat) DecodeEnvelope(data []byte) (Envelope, error) {
	var (
		env                 Envelope
		hasVersion, hasData bool
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Envelope{}, newFormatError(f.String(), "decode envelope", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == protoVersionField && typ == protowire.VarintType:
			version, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Envelope{}, newFormatError(f.String(), "decode envelope", protowire.ParseError(n))
			}
			env.Version, hasVersion = Version(version), true
			data = data[n:]
		case num == protoDataField && typ == protowire.BytesType:
			payload, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Envelope{}, newFormatError(f.String(), "decode envelope", protowire.ParseError(n))
			}
			env.Data, hasData = bytes.Clone(payload), true
			data = data[n:]
		case num == protoVersionField || num == protoDataField:
			return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("field %d has wrong wire type %d", num, typ))
		default:
			// unknown fields are skipped, as protobuf does
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Envelope{}, newFormatError(f.String(), "decode envelope", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if !hasVersion {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("missing %q field", jsonVersionField))
	}
	if !hasData {
		return Envelope{}, newFormatError(f.String(), "decode envelope", fmt.Errorf("missing %q field", jsonDataField))
	}
	if env.Data == nil {
		env.Data = []byte{}
	}
	return env, nil
}
