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
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DecodeVariant decodes the payload of env with the shape registered for
// its version number. If no shape is registered for that version, it
// returns an *UnknownVersionError; the payload is then left untouched. If
// the payload does not decode into the shape, it returns a *FormatError.
func (r *Registry[L]) DecodeVariant(format Format, env Envelope) (Value, error) {
	desc, ok := r.byVersion[env.Version]
	if !ok {
		return Value{}, r.unknownVersion(env.Version)
	}
	payload, err := desc.decode(format, env.Data)
	if err != nil {
		return Value{}, &FormatError{
			Format:  formatName(format),
			Op:      "decode payload",
			Version: env.Version,
			Err:     errors.Wrapf(err, "payload cannot be decoded as %v", desc.typ),
		}
	}
	r.logger.Debug("decoded variant",
		zap.String("format", formatName(format)),
		zap.Stringer("version", desc.version),
		zap.Int("size", len(env.Data)),
	)
	return Value{version: desc.version, payload: payload}, nil
}

// EncodeVariant encodes the payload of value and pairs it with the version
// number of its shape. Any registered shape can be encoded, not only the
// latest one.
func (r *Registry[L]) EncodeVariant(format Format, value Value) (Envelope, error) {
	desc, err := r.descriptorOf(value)
	if err != nil {
		return Envelope{}, err
	}
	data, err := format.Marshal(value.payload)
	if err != nil {
		return Envelope{}, &FormatError{
			Format:  formatName(format),
			Op:      "encode payload",
			Version: desc.version,
			Err:     errors.Wrapf(err, "payload cannot be encoded from %v", desc.typ),
		}
	}
	return Envelope{Version: desc.version, Data: data}, nil
}

// Marshal serializes value into a complete envelope in the given format.
func (r *Registry[L]) Marshal(format Format, value Value) ([]byte, error) {
	env, err := r.EncodeVariant(format, value)
	if err != nil {
		return nil, err
	}
	data, err := format.EncodeEnvelope(env)
	if err != nil {
		return nil, asFormatError(format, "encode envelope", err)
	}
	return data, nil
}

// Unmarshal deserializes an envelope in the given format into the Value of
// whichever shape its version number names.
func (r *Registry[L]) Unmarshal(format Format, data []byte) (Value, error) {
	env, err := format.DecodeEnvelope(data)
	if err != nil {
		return Value{}, asFormatError(format, "decode envelope", err)
	}
	return r.DecodeVariant(format, env)
}

// UnmarshalLatest is like [Registry.Unmarshal] but also upgrades the decoded
// value to the latest shape.
func (r *Registry[L]) UnmarshalLatest(format Format, data []byte) (L, error) {
	value, err := r.Unmarshal(format, data)
	if err != nil {
		var zero L
		return zero, err
	}
	return r.UpgradeToLatest(value)
}

// asFormatError makes sure errors from custom formats still match ErrFormat.
func asFormatError(format Format, op string, err error) error {
	if errors.Is(err, ErrFormat) {
		return err
	}
	return newFormatError(formatName(format), op, err)
}
