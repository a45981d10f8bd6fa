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
	"strconv"
	"strings"
	"testing"

	"github.com/bufbuild/versioned"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type myStructV1 struct {
	Field1 string `json:"field1"`
}

type myStructV2 struct {
	Field1   string `json:"field1"`
	NewField string `json:"new_field"`
}

type myStructV3 struct {
	Field1         string `json:"field1"`
	NewField       string `json:"new_field"`
	SecondNewField string `json:"second_new_field"`
}

func upgradeV1(v myStructV1) myStructV2 {
	return myStructV2{
		Field1:   strings.ToUpper(v.Field1),
		NewField: "default_value",
	}
}

func upgradeV2(v myStructV2) myStructV3 {
	return myStructV3{
		Field1:         v.Field1,
		NewField:       v.NewField,
		SecondNewField: "default_value_v3",
	}
}

func myStructVariants() []versioned.VariantDescriptor {
	return []versioned.VariantDescriptor{
		versioned.Variant[myStructV1]("V1", versioned.UpgradeTo(upgradeV1)),
		versioned.Variant[myStructV2]("V2", versioned.UpgradeTo(upgradeV2)),
		versioned.Variant[myStructV3]("V3"),
	}
}

func newMyStructRegistry(t *testing.T, logger *zap.Logger) *versioned.Registry[myStructV3] {
	t.Helper()
	registry, err := versioned.NewRegistry[myStructV3](&versioned.RegistryConfig{
		Variants: myStructVariants(),
		Logger:   logger,
	})
	require.NoError(t, err)
	return registry
}

func myStructValues(t *testing.T, registry *versioned.Registry[myStructV3]) []versioned.Value {
	t.Helper()
	return []versioned.Value{
		registry.MustWrap(myStructV1{Field1: "value1"}),
		registry.MustWrap(myStructV1{Field1: "with \"quotes\" & <html>"}),
		registry.MustWrap(myStructV2{Field1: "VALUE1", NewField: "default_value"}),
		registry.MustWrap(myStructV3{Field1: "a", NewField: "b", SecondNewField: "c"}),
		registry.MustWrap(myStructV3{}),
	}
}

func structFormats() []versioned.Format {
	return []versioned.Format{
		versioned.JSONFormat(versioned.JSONOptions{}),
		versioned.JSONFormat(versioned.JSONOptions{DisallowUnknownFields: true}),
		versioned.MsgPackFormat(versioned.MsgPackOptions{}),
		versioned.MsgPackFormat(versioned.MsgPackOptions{Borrow: true}),
		versioned.MsgPackFormat(versioned.MsgPackOptions{StructsAsMaps: true, DisallowUnknownFields: true}),
	}
}

// Shapes whose field changes representation.

type bytesV1 struct {
	Field1 string `json:"field1"`
}

type bytesV2 struct {
	Field1 []byte `json:"field1"`
}

type removeV1 struct {
	Field1 string `json:"field1"`
	Field2 string `json:"field2"`
}

type removeV2 struct {
	Field1 string `json:"field1"`
}

type countV1 struct {
	Count string `json:"count"`
}

type countV2 struct {
	Count int `json:"count"`
}

func upgradeCount(v countV1) countV2 {
	n, err := strconv.Atoi(v.Count)
	if err != nil {
		return countV2{}
	}
	return countV2{Count: n}
}

func newProtoRegistry(t *testing.T) *versioned.Registry[*wrapperspb.BytesValue] {
	t.Helper()
	registry, err := versioned.NewRegistry[*wrapperspb.BytesValue](&versioned.RegistryConfig{
		Variants: []versioned.VariantDescriptor{
			versioned.Variant[*wrapperspb.StringValue]("V1", versioned.UpgradeTo(func(v *wrapperspb.StringValue) *wrapperspb.BytesValue {
				return wrapperspb.Bytes([]byte(v.GetValue()))
			})),
			versioned.Variant[*wrapperspb.BytesValue]("V2"),
		},
	})
	require.NoError(t, err)
	return registry
}

func protoFormats() []versioned.Format {
	return []versioned.Format{
		versioned.ProtoFormat(proto.MarshalOptions{Deterministic: true}, proto.UnmarshalOptions{}),
		versioned.JSONFormat(versioned.JSONOptions{}),
		versioned.MsgPackFormat(versioned.MsgPackOptions{}),
	}
}
