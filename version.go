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
	"strconv"
	"strings"
)

const versionPrefix = "V"

// Version identifies one schema generation of a versioned type. Valid
// versions start at 1; the zero Version is never registered.
type Version uint64

// String returns the variant identifier for v, e.g. "V3".
func (v Version) String() string {
	return versionPrefix + strconv.FormatUint(uint64(v), 10)
}

// ParseVersion parses a variant identifier into its version number. The
// identifier must be the prefix "V" followed by decimal digits, e.g. "V1"
// or "V12".
func ParseVersion(ident string) (Version, error) {
	digits := strings.TrimPrefix(ident, versionPrefix)
	if digits == ident || digits == "" {
		return 0, fmt.Errorf("identifier %q must be %q followed by digits", ident, versionPrefix)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("identifier %q must be %q followed by digits", ident, versionPrefix)
		}
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("identifier %q: %w", ident, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("identifier %q: version numbers start at 1", ident)
	}
	return Version(n), nil
}
