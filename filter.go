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
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Filters is a slice of filters. When there is more than one element, they
// are applied in order: the result of the first filter is the input of the
// second, and so on.
type Filters []Filter

func (f Filters) do(value Value) Value {
	for _, filter := range f {
		value = filter(value)
	}
	return value
}

// Filter alters a value on its way through a [Converter]. It runs after the
// optional upgrade and before the value is re-encoded. It may return a value
// of another registered shape, but must not mutate the payload it is given.
type Filter func(Value) Value

// Redact returns a Filter that removes information from protobuf payloads.
// It invokes the given predicate for each populated field of the payload
// (including in any nested messages) and clears the field if the predicate
// returns true. Payloads that are not protobuf messages pass through
// unchanged.
func Redact(predicate func(protoreflect.FieldDescriptor) bool) Filter {
	return func(value Value) Value {
		msg, ok := value.payload.(proto.Message)
		if !ok {
			return value
		}
		return Value{version: value.version, payload: redactClone(msg, predicate)}
	}
}

// HasDebugRedactOption is a predicate for [Redact] that matches fields with
// the `debug_redact` field option set to true.
//
//	message UserDetails {
//	  int64 user_id = 1;
//	  string name = 2;
//	  string ssn = 3 [debug_redact = true];
//	}
func HasDebugRedactOption(fd protoreflect.FieldDescriptor) bool {
	opts, ok := fd.Options().(*descriptorpb.FieldOptions)
	return ok && opts.GetDebugRedact()
}

// redactClone returns a copy of msg with every populated field matching
// predicate cleared, at any depth.
func redactClone(msg proto.Message, predicate func(protoreflect.FieldDescriptor) bool) proto.Message {
	clone := proto.Clone(msg)
	pending := []protoreflect.Message{clone.ProtoReflect()}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		current.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
			if predicate(fd) {
				current.Clear(fd)
			} else {
				pending = appendNested(pending, fd, v)
			}
			return true
		})
	}
	return clone
}

func appendNested(pending []protoreflect.Message, fd protoreflect.FieldDescriptor, v protoreflect.Value) []protoreflect.Message {
	switch {
	case fd.IsMap():
		if fd.MapValue().Message() != nil {
			v.Map().Range(func(_ protoreflect.MapKey, entry protoreflect.Value) bool {
				pending = append(pending, entry.Message())
				return true
			})
		}
	case fd.IsList():
		if fd.Message() != nil {
			for list, i := v.List(), 0; i < list.Len(); i++ {
				pending = append(pending, list.Get(i).Message())
			}
		}
	case fd.Message() != nil:
		pending = append(pending, v.Message())
	}
	return pending
}
