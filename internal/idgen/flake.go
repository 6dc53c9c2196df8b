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

// Package idgen hands out run identifiers.
package idgen

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sony/sonyflake"
)

// epoch is the sonyflake start time. IDs stay positive and roughly
// time-ordered for about 174 years after it.
var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultFlakeGenerator tags log lines of the running process.
var DefaultFlakeGenerator *FlakeGenerator

func init() {
	var err error
	DefaultFlakeGenerator, err = NewFlakeGenerator()
	if err != nil {
		panic(err)
	}
}

// FlakeGenerator produces unique int64 ids. It is safe for concurrent use.
type FlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewFlakeGenerator returns a generator whose machine id is derived from the
// private IP address, or a random one when none is available. A CLI can run
// on a laptop with no private address, which sonyflake would reject.
func NewFlakeGenerator() (*FlakeGenerator, error) {
	settings := sonyflake.Settings{
		StartTime: epoch,
		MachineID: machineID,
	}
	sf, err := sonyflake.New(settings)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &FlakeGenerator{sf: sf}, nil
}

func machineID() (uint16, error) {
	if id, err := privateIPv4Lower16(); err == nil {
		return id, nil
	}
	return uint16(rand.UintN(1 << 16)), nil
}

// NextID returns a positive id. If the clock overflows sonyflake's range it
// falls back to a random value.
func (g *FlakeGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}
