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

package extract

import (
	"runtime"

	"github.com/cardinalhq/healthexport/internal/chunker"
)

// DefaultChannelCapacity bounds the record channel between the parse
// workers and the grouping stage.
const DefaultChannelCapacity = 10_000

// Config holds the extraction knobs.
type Config struct {
	// Workers is the number of chunks parsed at once.
	Workers int `mapstructure:"workers"`

	// ChunkSize is the target chunk length in bytes.
	ChunkSize int `mapstructure:"chunk_size"`

	// ChannelCapacity is the record channel buffer size.
	ChannelCapacity int `mapstructure:"channel_capacity"`

	// Stream splits the input while reading it instead of mapping or
	// materializing the whole document first.
	Stream bool `mapstructure:"stream"`

	// MaxDecodeErrors fails the run once more than this many elements were
	// dropped as malformed. Zero means no limit.
	MaxDecodeErrors int64 `mapstructure:"max_decode_errors"`
}

// DefaultConfig sizes the pool from the available parallelism.
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.GOMAXPROCS(0),
		ChunkSize:       chunker.DefaultChunkSize,
		ChannelCapacity: DefaultChannelCapacity,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = d.ChannelCapacity
	}
	return c
}
