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

package versionedtesting

import (
	"math"
	"testing"

	"github.com/bufbuild/versioned"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/testing/protocmp"
)

// RunRoundTripTests marshals every value with every format and checks that
// unmarshaling the result yields the same version and an equal payload.
func RunRoundTripTests[L any](t *testing.T, registry *versioned.Registry[L], formats []versioned.Format, values []versioned.Value) {
	t.Helper()

	for _, format := range formats {
		for _, value := range values {
			data, err := registry.Marshal(format, value)
			require.NoError(t, err, "%v: marshal %v", format, value)
			decoded, err := registry.Unmarshal(format, data)
			require.NoError(t, err, "%v: unmarshal %v", format, value)
			require.Equal(t, value.Version(), decoded.Version())
			diff := cmp.Diff(value.Payload(), decoded.Payload(), protocmp.Transform())
			if diff != "" {
				t.Errorf("%v: round-trip failure for %s (-want +got):\n%s", format, value.Version(), diff)
			}

			// re-encoding what was decoded is stable
			again, err := registry.Marshal(format, decoded)
			require.NoError(t, err)
			redecoded, err := registry.Unmarshal(format, again)
			require.NoError(t, err)
			require.True(t, decoded.Equal(redecoded), "%v: %v != %v", format, decoded, redecoded)
		}
	}
}

// RunUnknownVersionTests re-tags the envelope of sample with versions the
// registry does not know and checks that every format rejects them with an
// *versioned.UnknownVersionError.
func RunUnknownVersionTests[L any](t *testing.T, registry *versioned.Registry[L], formats []versioned.Format, sample versioned.Value) {
	t.Helper()

	versions := registry.Versions()
	unknown := []versioned.Version{0, registry.Latest() + 1, registry.Latest() + 99, math.MaxUint64}
	if first := versions[0]; first > 1 {
		unknown = append(unknown, first-1)
	}

	for _, format := range formats {
		env, err := registry.EncodeVariant(format, sample)
		require.NoError(t, err)
		for _, version := range unknown {
			env.Version = version
			data, err := format.EncodeEnvelope(env)
			require.NoError(t, err)

			_, err = registry.Unmarshal(format, data)
			require.ErrorIs(t, err, versioned.ErrUnknownVersion, "%v: version %d", format, uint64(version))
			var unknownErr *versioned.UnknownVersionError
			require.ErrorAs(t, err, &unknownErr)
			require.Equal(t, version, unknownErr.Version)
			require.Equal(t, versions, unknownErr.Known)

			_, err = registry.UnmarshalLatest(format, data)
			require.ErrorIs(t, err, versioned.ErrUnknownVersion)
		}
	}
}
