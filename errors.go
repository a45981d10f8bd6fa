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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration matches every *ConfigurationError. It indicates a
	// defect in how a versioned type was declared, never bad input.
	ErrConfiguration = errors.New("invalid versioned type declaration")
	// ErrFormat matches every *FormatError: the wire data is structurally
	// malformed or a payload could not be encoded or decoded.
	ErrFormat = errors.New("malformed versioned data")
	// ErrUnknownVersion matches every *UnknownVersionError: a version number
	// has no shape registered for it.
	ErrUnknownVersion = errors.New("unknown version number")
	// ErrUnknownShape is returned when a payload whose type is not one of
	// the registered shapes is wrapped or encoded.
	ErrUnknownShape = errors.New("payload type is not a registered shape")
)

// ConfigurationError is returned by [NewRegistry] when the declared
// variants do not describe a valid versioned type.
type ConfigurationError struct {
	// Ident is the identifier of the offending variant, if there is one.
	Ident  string
	Reason string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigurationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid versioned type")
	if e.Ident != "" {
		fmt.Fprintf(&sb, ": variant %q", e.Ident)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration //nolint:errorlint // sentinel identity
}

// FormatError is returned when data cannot be encoded into or decoded from
// a wire format.
type FormatError struct {
	// Format names the wire format, e.g. "json" or "msgpack".
	Format string
	// Op is the step that failed, e.g. "decode envelope".
	Op string
	// Version is the version number involved, or zero if it is not known.
	Version Version
	Err     error
}

func (e *FormatError) Error() string {
	if e.Version != 0 {
		return fmt.Sprintf("%s: %s (%s) failed: %v", e.Format, e.Op, e.Version, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Format, e.Op, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat //nolint:errorlint // sentinel identity
}

// UnknownVersionError is returned when a version number has no registered
// shape. This is the signal that data was written by a newer (or an
// unrelated) declaration of the type.
type UnknownVersionError struct {
	Version Version
	// Known lists the registered versions in ascending order.
	Known []Version
}

func (e *UnknownVersionError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown version number %d", uint64(e.Version))
	}
	return fmt.Sprintf("unknown version number %d (known: %s..%s)",
		uint64(e.Version), e.Known[0], e.Known[len(e.Known)-1])
}

// Is reports whether target is ErrUnknownVersion.
func (e *UnknownVersionError) Is(target error) bool {
	return target == ErrUnknownVersion //nolint:errorlint // sentinel identity
}

func newFormatError(format, op string, err error) *FormatError {
	return &FormatError{Format: format, Op: op, Err: err}
}
