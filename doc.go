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

// Package versioned stores data together with the version of its schema, so
// that old data can always be read and moved forward to the current shape.
//
// A versioned type is declared once, as the list of its historical shapes
// V1, V2 ... Vn, each with a function that upgrades it to the next shape:
//
//	var registry = versioned.MustNewRegistry[ConfigV3](&versioned.RegistryConfig{
//		Variants: []versioned.VariantDescriptor{
//			versioned.Variant[ConfigV1]("V1", versioned.UpgradeTo(upgradeV1)),
//			versioned.Variant[ConfigV2]("V2", versioned.UpgradeTo(upgradeV2)),
//			versioned.Variant[ConfigV3]("V3"),
//		},
//	})
//
// Serialized data is wrapped in an envelope carrying its version number.
// Reading the version never requires knowing the payload's shape, so the
// [Registry] can pick the right shape to decode, and [Registry.UpgradeToLatest]
// walks the result forward one version at a time. Versions the registry does
// not know about are always reported as an [UnknownVersionError], never
// guessed.
//
// The package supports JSON, MessagePack and protobuf envelopes out of the
// box, and is extensible for custom formats through the [Format] interface.
// [Converter] moves stored data between formats.
package versioned
