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

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Converter allows callers to convert versioned data from one format to
// another, optionally moving it to the latest shape on the way.
type Converter[L any] struct {
	// Registry declares the versioned type of the data. It is required.
	Registry *Registry[L]
	// InputFormat is the format the data arrives in. It is required.
	InputFormat Format
	// OutputFormat is the format to produce. It is required, and may be the
	// same as InputFormat.
	OutputFormat Format
	// Upgrade, if true, upgrades the data to the latest shape before it is
	// re-encoded. Otherwise the data keeps its version number.
	Upgrade bool
	// Filters are a set of user-supplied actions which will be performed on
	// the value after the optional upgrade and before it is re-encoded, so
	// the output can be modified according to some set of rules.
	Filters Filters
}

func (c *Converter[L]) validate() error {
	switch {
	case c.Registry == nil:
		return errors.New("converter: registry not provided")
	case c.InputFormat == nil:
		return errors.New("converter: input format not provided")
	case c.OutputFormat == nil:
		return errors.New("converter: output format not provided")
	}
	return nil
}

// Convert decodes inputData in the input format and re-encodes it in the
// output format.
func (c *Converter[L]) Convert(inputData []byte) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	value, err := c.Registry.Unmarshal(c.InputFormat, inputData)
	if err != nil {
		return nil, errors.Wrapf(err, "input data cannot be decoded from %s", formatName(c.InputFormat))
	}
	if c.Upgrade && !c.Registry.IsLatest(value) {
		latest, err := c.Registry.UpgradeToLatest(value)
		if err != nil {
			return nil, err
		}
		upgraded, err := c.Registry.Wrap(latest)
		if err != nil {
			return nil, fmt.Errorf("upgraded value cannot be wrapped: %w", err)
		}
		value = upgraded
	}

	// apply filters
	value = c.Filters.do(value)

	data, err := c.Registry.Marshal(c.OutputFormat, value)
	if err != nil {
		return nil, errors.Wrapf(err, "%s data cannot be encoded to %s", value.Version(), formatName(c.OutputFormat))
	}
	c.Registry.logger.Debug("converted versioned data",
		zap.String("input_format", formatName(c.InputFormat)),
		zap.String("output_format", formatName(c.OutputFormat)),
		zap.Stringer("version", value.Version()),
	)
	return data, nil
}
