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

// Package grouping collects a record stream into groups keyed by each
// record's grouping key.
package grouping

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/healthexport/internal/record"
)

// Groups maps a grouping key to its records. Every key has at least one
// record.
type Groups map[string][]record.Record

// Config holds the grouping knobs.
type Config struct {
	// Workers is the number of goroutines draining the record channel. One
	// uses a plain map with no locking.
	Workers int `mapstructure:"workers"`
}

// DefaultConfig sizes the consumer count from the available parallelism.
func DefaultConfig() Config {
	return Config{Workers: runtime.GOMAXPROCS(0)}
}

// Collect drains records with the configured number of consumers.
func Collect(ctx context.Context, records <-chan record.Record, cfg Config) (Groups, error) {
	if cfg.Workers <= 1 {
		return Group(ctx, records)
	}
	return GroupParallel(ctx, records, cfg.Workers)
}

// Group drains records on the calling goroutine.
func Group(ctx context.Context, records <-chan record.Record) (Groups, error) {
	groups := make(Groups)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case rec, ok := <-records:
			if !ok {
				return groups, nil
			}
			key := rec.GroupingKey()
			groups[key] = append(groups[key], rec)
		}
	}
}

// GroupParallel drains records with workers goroutines feeding a
// ShardedMap. Record order within a group is unspecified.
func GroupParallel(ctx context.Context, records <-chan record.Record, workers int) (Groups, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	m := NewShardedMap(workers * 8)

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case rec, ok := <-records:
					if !ok {
						return nil
					}
					m.Add(rec)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m.Take(), nil
}
