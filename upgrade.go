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
	"go.uber.org/zap"
)

// UpgradeToLatest walks value forward to the latest shape, applying one
// upgrade function per version: a value of version k in a registry whose
// latest version is n goes through exactly n-k upgrade functions. A value
// that already has the latest shape is returned as is.
//
// The registry guarantees at construction that the chain is complete, so
// the only error is a value that this registry did not produce.
func (r *Registry[L]) UpgradeToLatest(value Value) (L, error) {
	var zero L
	desc, err := r.descriptorOf(value)
	if err != nil {
		return zero, err
	}
	payload := value.payload
	var steps int
	for !desc.latest {
		payload = desc.upgrade(payload)
		desc = r.byVersion[desc.version+1]
		steps++
	}
	if steps > 0 {
		r.logger.Debug("upgraded variant",
			zap.Stringer("from", value.version),
			zap.Stringer("to", desc.version),
			zap.Int("steps", steps),
		)
	}
	return payload.(L), nil //nolint:forcetypeassert // latest type is L, checked by NewRegistry
}

// Upgrade applies a single upgrade step, returning the value in the shape
// of the next version. A value that already has the latest shape is
// returned unchanged.
func (r *Registry[L]) Upgrade(value Value) (Value, error) {
	desc, err := r.descriptorOf(value)
	if err != nil {
		return Value{}, err
	}
	if desc.latest {
		return value, nil
	}
	return Value{version: desc.version + 1, payload: desc.upgrade(value.payload)}, nil
}
