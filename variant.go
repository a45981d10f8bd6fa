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
	"reflect"
)

// VariantDescriptor declares one historical shape of a versioned type. Use
// [Variant] to create one; the zero value carries no payload type and is
// rejected by [NewRegistry].
type VariantDescriptor struct {
	ident    string
	typ      reflect.Type
	upgrade  *upgradeFunc
	upgrades int
}

// Ident returns the identifier the variant was declared with.
func (d VariantDescriptor) Ident() string {
	return d.ident
}

// VariantOption configures a [VariantDescriptor].
type VariantOption func(*VariantDescriptor)

type upgradeFunc struct {
	from, to reflect.Type
	fn       func(any) any
}

// Variant declares the shape T under the identifier ident. The identifier
// carries the version number: "V1", "V2", and so on.
//
// Every variant except the latest one must be given exactly one upgrade
// function with [UpgradeTo], mapping T to the payload type of the next
// version.
func Variant[T any](ident string, opts ...VariantOption) VariantDescriptor {
	desc := VariantDescriptor{
		ident: ident,
		typ:   typeOf[T](),
	}
	for _, opt := range opts {
		opt(&desc)
	}
	return desc
}

// UpgradeTo attaches a one-step upgrade function to a variant. The function
// must be pure and total: it is trusted to produce a value of the next
// shape for every value of its input shape.
func UpgradeTo[From, To any](fn func(From) To) VariantOption {
	return func(desc *VariantDescriptor) {
		desc.upgrades++
		if fn == nil {
			return
		}
		desc.upgrade = &upgradeFunc{
			from: typeOf[From](),
			to:   typeOf[To](),
			fn: func(v any) any {
				return fn(v.(From)) //nolint:forcetypeassert // checked by NewRegistry
			},
		}
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
