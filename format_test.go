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

package versioned_test

import (
	"encoding/hex"
	"testing"

	"github.com/bufbuild/versioned"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

const scenarioJSON = `{"version_number": 1, "data": {"field1": "value1"}}`

func TestJSONFormat_DecodeStructuredEnvelope(t *testing.T) {
	t.Parallel()
	registry := newMyStructRegistry(t, nil)
	format := versioned.JSONFormat(versioned.JSONOptions{})

	value, err := registry.Unmarshal(format, []byte(scenarioJSON))
	require.NoError(t, err)
	assert.Equal(t, versioned.Version(1), value.Version())
	payload, ok := versioned.As[myStructV1](value)
	require.True(t, ok)
	assert.Equal(t, myStructV1{Field1: "value1"}, payload)

	data, err := registry.Marshal(format, value)
	require.NoError(t, err)
	assert.JSONEq(t, scenarioJSON, string(data))
	assert.Equal(t, `{"version_number":1,"data":{"field1":"value1"}}`, string(data))
}

func TestJSONFormat_Envelope(t *testing.T) {
	t.Parallel()
	format := versioned.JSONFormat(versioned.JSONOptions{})
	data, err := format.EncodeEnvelope(versioned.Envelope{Version: 7, Data: []byte(`[1,2,3]`)})
	require.NoError(t, err)
	assert.Equal(t, `{"version_number":7,"data":[1,2,3]}`, string(data))

	env, err := format.DecodeEnvelope([]byte(" {\"data\" : [1, 2, 3], \"version_number\" : 7}\n"))
	require.NoError(t, err)
	assert.Equal(t, versioned.Version(7), env.Version)
	assert.JSONEq(t, `[1,2,3]`, string(env.Data))

	// data may be any JSON value, including null
	env, err = format.DecodeEnvelope([]byte(`{"version_number":2,"data":null}`))
	require.NoError(t, err)
	assert.Equal(t, versioned.Version(2), env.Version)
	assert.Equal(t, "null", string(env.Data))

	// extra fields are ignored unless disallowed
	env, err = format.DecodeEnvelope([]byte(`{"version_number":3,"data":{},"written_by":"someone"}`))
	require.NoError(t, err)
	assert.Equal(t, versioned.Version(3), env.Version)
}

func TestJSONFormat_EncodeEnvelopeErrors(t *testing.T) {
	t.Parallel()
	format := versioned.JSONFormat(versioned.JSONOptions{})
	for _, payload := range [][]byte{nil, {}, []byte(`{"field1":`), []byte(`not json`)} {
		_, err := format.EncodeEnvelope(versioned.Envelope{Version: 1, Data: payload})
		require.ErrorIs(t, err, versioned.ErrFormat, "%q", payload)
		var formatErr *versioned.FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, "json", formatErr.Format)
		assert.Equal(t, "encode envelope", formatErr.Op)
	}
}

func TestJSONFormat_MalformedEnvelope(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name  string
		input string
		opts  versioned.JSONOptions
	}{
		{name: "not json", input: `not json`},
		{name: "array", input: `[1, {"field1": "value1"}]`},
		{name: "string", input: `"V1"`},
		{name: "null", input: `null`},
		{name: "empty object", input: `{}`},
		{name: "missing version", input: `{"data": {"field1": "value1"}}`},
		{name: "null version", input: `{"version_number": null, "data": {"field1": "value1"}}`},
		{name: "missing data", input: `{"version_number": 1}`},
		{name: "string version", input: `{"version_number": "1", "data": {}}`},
		{name: "negative version", input: `{"version_number": -1, "data": {}}`},
		{name: "object version", input: `{"version_number": {}, "data": {}}`},
		{name: "trailing garbage", input: `{"version_number": 1, "data": {}} x`},
		{name: "truncated", input: `{"version_number": 1, "data": {"field1": "val`},
		{
			name:  "unknown envelope field",
			input: `{"version_number": 1, "data": {}, "extra": true}`,
			opts:  versioned.JSONOptions{DisallowUnknownFields: true},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			format := versioned.JSONFormat(testCase.opts)
			_, err := format.DecodeEnvelope([]byte(testCase.input))
			require.ErrorIs(t, err, versioned.ErrFormat)
			var formatErr *versioned.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, "decode envelope", formatErr.Op)

			registry := newMyStructRegistry(t, nil)
			_, err = registry.Unmarshal(format, []byte(testCase.input))
			require.ErrorIs(t, err, versioned.ErrFormat)
			assert.NotErrorIs(t, err, versioned.ErrUnknownVersion)
		})
	}
}

func TestJSONFormat_MalformedPayload(t *testing.T) {
	t.Parallel()
	registry := newMyStructRegistry(t, nil)
	testCases := []struct {
		name  string
		input string
		opts  versioned.JSONOptions
	}{
		{name: "wrong field type", input: `{"version_number": 1, "data": {"field1": 12}}`},
		{name: "wrong payload type", input: `{"version_number": 2, "data": "value1"}`},
		{
			name:  "unknown payload field",
			input: `{"version_number": 1, "data": {"field1": "value1", "new_field": "x"}}`,
			opts:  versioned.JSONOptions{DisallowUnknownFields: true},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, err := registry.Unmarshal(versioned.JSONFormat(testCase.opts), []byte(testCase.input))
			require.ErrorIs(t, err, versioned.ErrFormat)
			var formatErr *versioned.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, "decode payload", formatErr.Op)
			assert.NotZero(t, formatErr.Version)
		})
	}

	// the same payload is accepted when unknown fields are allowed
	value, err := registry.Unmarshal(versioned.JSONFormat(versioned.JSONOptions{}),
		[]byte(`{"version_number": 1, "data": {"field1": "value1", "new_field": "x"}}`))
	require.NoError(t, err)
	assert.Equal(t, myStructV1{Field1: "value1"}, value.Payload())
}

func TestJSONFormat_LegacyVersion(t *testing.T) {
	t.Parallel()
	registry := newMyStructRegistry(t, nil)
	legacy := []byte(`{"field1": "written before versioning"}`)

	// strict by default
	_, err := registry.Unmarshal(versioned.JSONFormat(versioned.JSONOptions{}), legacy)
	require.ErrorIs(t, err, versioned.ErrFormat)

	format := versioned.JSONFormat(versioned.JSONOptions{LegacyVersion: 1})
	value, err := registry.Unmarshal(format, legacy)
	require.NoError(t, err)
	assert.Equal(t, versioned.Version(1), value.Version())
	assert.Equal(t, myStructV1{Field1: "written before versioning"}, value.Payload())

	// versioned documents are unaffected
	value, err = registry.Unmarshal(format, []byte(`{"version_number": 2, "data": {"field1": "A", "new_field": "B"}}`))
	require.NoError(t, err)
	assert.Equal(t, versioned.Version(2), value.Version())

	// a half-versioned document is still malformed
	_, err = registry.Unmarshal(format, []byte(`{"data": {"field1": "value1"}}`))
	require.ErrorIs(t, err, versioned.ErrFormat)

	// written back with an explicit version
	data, err := registry.Marshal(format, registry.MustWrap(myStructV1{Field1: "x"}))
	require.NoError(t, err)
	assert.Equal(t, `{"version_number":1,"data":{"field1":"x"}}`, string(data))
}

func TestProtoFormat_Envelope(t *testing.T) {
	t.Parallel()
	format := versioned.ProtoFormat(proto.MarshalOptions{}, proto.UnmarshalOptions{})
	data, err := format.EncodeEnvelope(versioned.Envelope{Version: 1, Data: []byte("abc")})
	require.NoError(t, err)
	assert.Equal(t, "08011203616263", hex.EncodeToString(data))

	env, err := format.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, versioned.Envelope{Version: 1, Data: []byte("abc")}, env)

	// the decoded payload does not alias the input
	data[len(data)-1] = 'z'
	assert.Equal(t, []byte("abc"), env.Data)

	// field order does not matter and unknown fields are skipped
	input, err := hex.DecodeString("1a0378797a" + "120161" + "18ac02" + "0802")
	require.NoError(t, err)
	env, err = format.DecodeEnvelope(input)
	require.NoError(t, err)
	assert.Equal(t, versioned.Envelope{Version: 2, Data: []byte("a")}, env)

	// an empty payload is valid protobuf
	data, err = format.EncodeEnvelope(versioned.Envelope{Version: 3})
	require.NoError(t, err)
	env, err = format.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, versioned.Version(3), env.Version)
	assert.NotNil(t, env.Data)
	assert.Empty(t, env.Data)
}

func TestProtoFormat_MalformedEnvelope(t *testing.T) {
	t.Parallel()
	format := versioned.ProtoFormat(proto.MarshalOptions{}, proto.UnmarshalOptions{})
	testCases := map[string]string{
		"empty":            "",
		"missing version":  "120161",
		"missing data":     "0801",
		"truncated tag":    "80",
		"truncated varint": "08ff",
		"truncated data":   "0801120561",
		"wrong wire type":  "0a00120161",
		"bad field number": "0001",
	}
	for name, input := range testCases {
		data, err := hex.DecodeString(input)
		require.NoError(t, err, name)
		_, err = format.DecodeEnvelope(data)
		require.ErrorIs(t, err, versioned.ErrFormat, name)
		var formatErr *versioned.FormatError
		require.ErrorAs(t, err, &formatErr, name)
		assert.Equal(t, "proto", formatErr.Format, name)
	}
}

func TestProtoFormat_RequiresProtoMessages(t *testing.T) {
	t.Parallel()
	registry := newMyStructRegistry(t, nil)
	format := versioned.ProtoFormat(proto.MarshalOptions{}, proto.UnmarshalOptions{})
	_, err := registry.Marshal(format, registry.MustWrap(myStructV1{Field1: "value1"}))
	require.ErrorIs(t, err, versioned.ErrFormat)
	var formatErr *versioned.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "encode payload", formatErr.Op)
	assert.Equal(t, versioned.Version(1), formatErr.Version)
}
