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

package sink

import (
	"runtime"

	"github.com/cardinalhq/healthexport/internal/container"
)

// Config holds the sink knobs.
type Config struct {
	// Workers is the number of groups serialized and compressed at once.
	Workers int `mapstructure:"workers"`

	// MergeQueue bounds the channel between the workers and the merge
	// writer.
	MergeQueue int `mapstructure:"merge_queue"`

	// StoreThreshold is the entry size below which zip entries are stored
	// uncompressed.
	StoreThreshold int `mapstructure:"store_threshold"`
}

// DefaultConfig sizes the pool from the available parallelism.
func DefaultConfig() Config {
	n := runtime.GOMAXPROCS(0)
	return Config{
		Workers:        n,
		MergeQueue:     n,
		StoreThreshold: container.DefaultStoreThreshold,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MergeQueue <= 0 {
		c.MergeQueue = d.MergeQueue
	}
	if c.StoreThreshold <= 0 {
		c.StoreThreshold = d.StoreThreshold
	}
	return c
}
