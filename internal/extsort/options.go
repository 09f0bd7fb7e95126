// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.


package extsort

import (
	"fmt"
	"os"

	"github.com/cardinalhq/flattable/internal/helpers"
	"github.com/cardinalhq/flattable/internal/spillers"
	"github.com/cardinalhq/flattable/pipeline"
)

// DefaultInMemoryLimit is the number of rows held in memory before a chunk
// is spilled to disk.
const DefaultInMemoryLimit = 100000

// Config is the plain data form of the sort options, as loaded by the
// config package.
type Config struct {
	InMemoryLimit    int    `mapstructure:"in_memory_limit"`
	TmpDir           string `mapstructure:"tmp_dir"`
	Codec            string `mapstructure:"codec"`
	SpillConcurrency int    `mapstructure:"spill_concurrency"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		InMemoryLimit:    DefaultInMemoryLimit,
		Codec:            "cbor",
		SpillConcurrency: 1,
	}
}

// Options converts the configuration to sort options.
func (c Config) Options() ([]Option, error) {
	spiller, err := spillers.ByName(c.Codec)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithInMemoryLimit(c.InMemoryLimit),
		WithSpiller(spiller),
		WithSpillConcurrency(c.SpillConcurrency),
	}
	if c.TmpDir != "" {
		opts = append(opts, WithTmpDir(c.TmpDir))
	}
	return opts, nil
}

type options struct {
	limit       int
	tmpDir      string
	spiller     spillers.Spiller
	concurrency int
	registry    *helpers.TempRegistry
}

// Option configures Sort.
type Option func(*options)

// WithInMemoryLimit sets the maximum number of rows in one chunk.
func WithInMemoryLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithTmpDir sets the directory spill files are created in.
func WithTmpDir(dir string) Option {
	return func(o *options) { o.tmpDir = dir }
}

// WithSpiller sets the spill file codec.
func WithSpiller(s spillers.Spiller) Option {
	return func(o *options) { o.spiller = s }
}

// WithSpillConcurrency sets how many chunks may be sorted and written at
// once. Values below 2 spill inline.
func WithSpillConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithTempRegistry sets the registry spill files are recorded in for
// delete-on-exit.
func WithTempRegistry(r *helpers.TempRegistry) Option {
	return func(o *options) { o.registry = r }
}

// ValidateOptions reports a configuration error in opts without sorting
// anything.
func ValidateOptions(opts ...Option) error {
	_, err := buildOptions(opts)
	return err
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		limit:       DefaultInMemoryLimit,
		concurrency: 1,
		registry:    helpers.DefaultTempRegistry,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.limit <= 0 {
		return o, fmt.Errorf("%w: in-memory limit must be positive, got %d", pipeline.ErrInvalidConfig, o.limit)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.tmpDir == "" {
		o.tmpDir = os.TempDir()
	}
	if o.registry == nil {
		o.registry = helpers.NewTempRegistry()
	}
	if o.spiller == nil {
		s, err := spillers.NewCborSpiller()
		if err != nil {
			return o, err
		}
		o.spiller = s
	}
	return o, nil
}
