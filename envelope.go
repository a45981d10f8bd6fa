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

// Envelope pairs a version number with a payload that is still in its
// encoded form. Keeping the payload opaque is what allows the version to be
// read before the payload's shape is known.
//
// Whether Data is a copy or a view into the buffer it was decoded from
// depends on the [Format]; see [MsgPackOptions.Borrow].
type Envelope struct {
	Version Version
	// Data is the payload, encoded by the same Format that encodes the
	// envelope.
	Data []byte
}
