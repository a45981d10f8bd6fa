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
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Value holds one payload of a versioned type together with the version
// number of its shape. Values are created by a [Registry], either by
// decoding data or with [Registry.Wrap]. The zero Value holds nothing and
// is rejected by every registry operation.
type Value struct {
	version Version
	payload any
}

// Version returns the version number of the value's shape.
func (v Value) Version() Version {
	return v.version
}

// Payload returns the wrapped payload. Its dynamic type is the payload type
// registered for v.Version().
func (v Value) Payload() any {
	return v.payload
}

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool {
	return v.version == 0 && v.payload == nil
}

// Equal reports whether v and other hold the same version and equal
// payloads. Protobuf payloads are compared with [proto.Equal].
func (v Value) Equal(other Value) bool {
	if v.version != other.version {
		return false
	}
	if a, ok := v.payload.(proto.Message); ok {
		b, ok := other.payload.(proto.Message)
		return ok && proto.Equal(a, b)
	}
	return reflect.DeepEqual(v.payload, other.payload)
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%+v)", v.version, v.payload)
}

// As returns the payload of v if it has type T.
func As[T any](v Value) (T, bool) {
	payload, ok := v.payload.(T)
	return payload, ok
}

// Wrap returns the Value holding payload, tagged with the version whose
// shape is payload's dynamic type. It fails with [ErrUnknownShape] if that
// type is not registered.
func (r *Registry[L]) Wrap(payload any) (Value, error) {
	desc, ok := r.byType[reflect.TypeOf(payload)]
	if !ok {
		return Value{}, fmt.Errorf("%w: %T", ErrUnknownShape, payload)
	}
	return Value{version: desc.version, payload: payload}, nil
}

// MustWrap is like [Registry.Wrap] but panics if payload's type is not
// registered.
func (r *Registry[L]) MustWrap(payload any) Value {
	value, err := r.Wrap(payload)
	if err != nil {
		panic(err)
	}
	return value
}
