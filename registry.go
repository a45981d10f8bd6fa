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
	"sort"

	"go.uber.org/zap"
)

// RegistryConfig contains the declaration of a versioned type.
type RegistryConfig struct {
	// Variants lists every historical shape of the type, in any order.
	// Version numbers must be contiguous: each version's successor is the
	// version plus one, and the highest version is the latest shape.
	Variants []VariantDescriptor
	// Logger receives debug logs about registry construction, decoding and
	// upgrades. Errors are always returned to the caller, never only logged.
	// If nil, nothing is logged.
	Logger *zap.Logger
}

func (c *RegistryConfig) validate() error {
	if c == nil {
		return &ConfigurationError{Reason: "registry config not provided"}
	}
	if len(c.Variants) == 0 {
		return &ConfigurationError{Reason: "no variants declared, so there is no latest version"}
	}
	return nil
}

// Descriptor describes one registered shape.
type Descriptor struct {
	version Version
	ident   string
	typ     reflect.Type
	latest  bool
	upgrade func(any) any
}

// Version returns the version number of the shape.
func (d *Descriptor) Version() Version { return d.version }

// Ident returns the identifier the shape was declared with.
func (d *Descriptor) Ident() string { return d.ident }

// Type returns the payload type of the shape.
func (d *Descriptor) Type() reflect.Type { return d.typ }

// IsLatest reports whether this is the latest shape.
func (d *Descriptor) IsLatest() bool { return d.latest }

// decode unmarshals data into a fresh value of the shape's payload type.
// Pointer payload types (such as generated protobuf messages) are allocated
// and passed through as is; other types are decoded through a pointer.
func (d *Descriptor) decode(u Unmarshaler, data []byte) (any, error) {
	if d.typ.Kind() == reflect.Pointer {
		ptr := reflect.New(d.typ.Elem())
		if err := u.Unmarshal(data, ptr.Interface()); err != nil {
			return nil, err
		}
		return ptr.Interface(), nil
	}
	ptr := reflect.New(d.typ)
	if err := u.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// Registry is the read-only table of a versioned type's shapes, keyed by
// version number. L is the payload type of the latest shape.
//
// A Registry is immutable once created and is safe for concurrent use.
type Registry[L any] struct {
	byVersion map[Version]*Descriptor
	byType    map[reflect.Type]*Descriptor
	versions  []Version
	latest    *Descriptor
	logger    *zap.Logger
}

// NewRegistry builds a registry from the given declaration. A non-nil error
// is always a *ConfigurationError, returned when:
//   - an identifier cannot be parsed into a version number;
//   - a variant does not carry exactly one concrete payload type;
//   - no variants are declared;
//   - two variants share a version number or a payload type;
//   - the version numbers are not contiguous;
//   - a non-latest variant lacks an upgrade function, or its upgrade function
//     does not map its payload type to the next version's payload type;
//   - the latest variant declares an upgrade function;
//   - the latest payload type is not L.
func NewRegistry[L any](config *RegistryConfig) (*Registry[L], error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := &Registry[L]{
		byVersion: make(map[Version]*Descriptor, len(config.Variants)),
		byType:    make(map[reflect.Type]*Descriptor, len(config.Variants)),
		versions:  make([]Version, 0, len(config.Variants)),
		logger:    logger,
	}
	upgrades := make(map[Version]*upgradeFunc, len(config.Variants))
	for i, variant := range config.Variants {
		if variant.typ == nil {
			return nil, &ConfigurationError{
				Ident:  variant.ident,
				Reason: fmt.Sprintf("variant #%d carries no payload type", i+1),
			}
		}
		if variant.typ.Kind() == reflect.Interface {
			return nil, &ConfigurationError{
				Ident:  variant.ident,
				Reason: fmt.Sprintf("payload type %v must be a single concrete type", variant.typ),
			}
		}
		if variant.upgrades > 1 {
			return nil, &ConfigurationError{
				Ident:  variant.ident,
				Reason: fmt.Sprintf("%d upgrade functions declared, want at most one", variant.upgrades),
			}
		}
		version, err := ParseVersion(variant.ident)
		if err != nil {
			return nil, &ConfigurationError{Ident: variant.ident, Reason: "unparseable version identifier", Err: err}
		}
		if existing, ok := registry.byVersion[version]; ok {
			return nil, &ConfigurationError{
				Ident:  variant.ident,
				Reason: fmt.Sprintf("version %d is already declared by variant %q", uint64(version), existing.ident),
			}
		}
		if existing, ok := registry.byType[variant.typ]; ok {
			return nil, &ConfigurationError{
				Ident:  variant.ident,
				Reason: fmt.Sprintf("payload type %v is already used by variant %q", variant.typ, existing.ident),
			}
		}
		desc := &Descriptor{
			version: version,
			ident:   variant.ident,
			typ:     variant.typ,
		}
		registry.byVersion[version] = desc
		registry.byType[variant.typ] = desc
		registry.versions = append(registry.versions, version)
		upgrades[version] = variant.upgrade
	}
	sort.Slice(registry.versions, func(i, j int) bool {
		return registry.versions[i] < registry.versions[j]
	})
	first := registry.versions[0]
	for i, version := range registry.versions {
		if want := first + Version(i); version != want {
			return nil, &ConfigurationError{
				Ident:  registry.byVersion[version].ident,
				Reason: fmt.Sprintf("version numbers must be contiguous, but %s is missing", want),
			}
		}
	}
	registry.latest = registry.byVersion[registry.versions[len(registry.versions)-1]]
	registry.latest.latest = true
	if latestType := typeOf[L](); registry.latest.typ != latestType {
		return nil, &ConfigurationError{
			Ident:  registry.latest.ident,
			Reason: fmt.Sprintf("latest payload type is %v, but the registry is declared for %v", registry.latest.typ, latestType),
		}
	}
	for _, version := range registry.versions {
		desc := registry.byVersion[version]
		upgrade := upgrades[version]
		if desc.latest {
			if upgrade != nil {
				return nil, &ConfigurationError{Ident: desc.ident, Reason: "latest variant must not declare an upgrade function"}
			}
			continue
		}
		next := registry.byVersion[version+1]
		if upgrade == nil {
			return nil, &ConfigurationError{
				Ident:  desc.ident,
				Reason: fmt.Sprintf("missing upgrade function from %s to %s", desc.version, next.version),
			}
		}
		if upgrade.from != desc.typ {
			return nil, &ConfigurationError{
				Ident:  desc.ident,
				Reason: fmt.Sprintf("upgrade function accepts %v, want %v", upgrade.from, desc.typ),
			}
		}
		if upgrade.to != next.typ {
			return nil, &ConfigurationError{
				Ident:  desc.ident,
				Reason: fmt.Sprintf("upgrade function returns %v, want %v (the payload type of %s)", upgrade.to, next.typ, next.version),
			}
		}
		desc.upgrade = upgrade.fn
	}
	logger.Debug("registered versioned type",
		zap.Stringer("type", registry.latest.typ),
		zap.Stringer("first", first),
		zap.Stringer("latest", registry.latest.version),
		zap.Int("variants", len(registry.versions)),
	)
	return registry, nil
}

// MustNewRegistry is like [NewRegistry] but panics if the declaration is
// invalid. It is meant for package-level variables, so that a bad
// declaration fails as early as possible.
func MustNewRegistry[L any](config *RegistryConfig) *Registry[L] {
	registry, err := NewRegistry[L](config)
	if err != nil {
		panic(err)
	}
	return registry
}

// Versions returns the registered version numbers in ascending order.
func (r *Registry[L]) Versions() []Version {
	versions := make([]Version, len(r.versions))
	copy(versions, r.versions)
	return versions
}

// Latest returns the version number of the latest shape.
func (r *Registry[L]) Latest() Version {
	return r.latest.version
}

// Lookup returns the descriptor of the shape registered for version.
func (r *Registry[L]) Lookup(version Version) (*Descriptor, bool) {
	desc, ok := r.byVersion[version]
	return desc, ok
}

// IsLatest reports whether value holds the latest shape.
func (r *Registry[L]) IsLatest(value Value) bool {
	return value.version == r.latest.version
}

func (r *Registry[L]) unknownVersion(version Version) *UnknownVersionError {
	return &UnknownVersionError{Version: version, Known: r.Versions()}
}

// descriptorOf returns the descriptor for a value, making sure the value
// really holds the payload type registered for its version.
func (r *Registry[L]) descriptorOf(value Value) (*Descriptor, error) {
	desc, ok := r.byVersion[value.version]
	if !ok {
		return nil, r.unknownVersion(value.version)
	}
	if reflect.TypeOf(value.payload) != desc.typ {
		return nil, fmt.Errorf("%w: %T is not the payload type of %s", ErrUnknownShape, value.payload, desc.version)
	}
	return desc, nil
}
