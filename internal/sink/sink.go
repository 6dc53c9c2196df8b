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

// Package sink turns groups of records into the final output archive.
//
// Groups are sorted, serialized and packed into sub-containers on a pool of
// workers. One merge goroutine owns the archive writer and appends the
// sub-containers strictly in key order. Workers are admitted in key order
// through a semaphore, so the number of finished sub-containers waiting on a
// slower predecessor is bounded.
package sink

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cardinalhq/healthexport/internal/container"
	"github.com/cardinalhq/healthexport/internal/logctx"
	"github.com/cardinalhq/healthexport/internal/record"
	"github.com/cardinalhq/healthexport/internal/tabular"
)

// ErrPackPanic is returned when serializing a group panicked.
var ErrPackPanic = errors.New("sink worker panicked")

// Stats summarizes a sink run.
type Stats struct {
	Entries int
	Skipped int
	Rows    int64
	Bytes   int64
}

// Sink writes groups as one table per entry of an archive.
type Sink struct {
	cfg     Config
	table   tabular.Format
	archive container.Format
	namer   Namer
}

// New returns a Sink. A nil namer sanitizes the grouping key as is.
func New(cfg Config, table tabular.Format, archive container.Format, namer Namer) *Sink {
	return &Sink{
		cfg:     cfg.withDefaults(),
		table:   table,
		archive: archive,
		namer:   namer,
	}
}

type job struct {
	idx     int
	key     string
	name    string
	records []record.Record
}

type packed struct {
	idx  int
	name string
	rows int
	data []byte
}

// Write serializes groups into w. On error w holds a partial archive that
// must be discarded. Record slices in groups are sorted in place.
func (s *Sink) Write(ctx context.Context, groups map[string][]record.Record, w io.Writer) (Stats, error) {
	logger := logctx.FromContext(ctx).With(slog.String("component", "sink"))

	var stats Stats
	var keys []string
	for _, key := range slices.Sorted(maps.Keys(groups)) {
		if len(groups[key]) == 0 {
			logger.Warn("Skipping empty group", slog.String("key", key))
			stats.Skipped++
			continue
		}
		keys = append(keys, key)
	}

	names := EntryNames(keys, s.namer, s.table.Extension())
	jobs := make([]job, len(keys))
	for i, key := range keys {
		jobs[i] = job{idx: i, key: key, name: names[i], records: groups[key]}
	}

	merger := s.archive.NewMerger(w)
	results := make(chan packed, s.cfg.MergeQueue)
	window := semaphore.NewWeighted(int64(s.cfg.Workers + s.cfg.MergeQueue))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pool, pctx := errgroup.WithContext(gctx)
		pool.SetLimit(s.cfg.Workers)
		for _, j := range jobs {
			if err := window.Acquire(pctx, 1); err != nil {
				if perr := pool.Wait(); perr != nil {
					return perr
				}
				return err
			}
			pool.Go(func() error {
				p, err := s.pack(logger, j)
				if err != nil {
					return err
				}
				select {
				case results <- p:
					return nil
				case <-pctx.Done():
					return pctx.Err()
				}
			})
		}
		return pool.Wait()
	})

	g.Go(func() error {
		pending := make(map[int]packed)
		for next := 0; next < len(jobs); {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case p := <-results:
				pending[p.idx] = p
			}

			for {
				p, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if err := merger.Append(p.data); err != nil {
					return fmt.Errorf("append %s: %w", p.name, err)
				}
				stats.Entries++
				stats.Rows += int64(p.rows)
				stats.Bytes += int64(len(p.data))
				entriesCounter.Add(gctx, 1)
				bytesCounter.Add(gctx, int64(len(p.data)))
				logger.Debug("Appended entry",
					slog.String("name", p.name),
					slog.Int("rows", p.rows),
					slog.Int("bytes", len(p.data)))
				window.Release(1)
				next++
			}
		}
		return merger.Close()
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// pack sorts, serializes and wraps one group.
func (s *Sink) pack(logger *slog.Logger, j job) (p packed, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Sink worker panicked",
				slog.String("key", j.key),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: group %s: %v", ErrPackPanic, j.key, r)
		}
	}()

	slices.SortStableFunc(j.records, func(a, b record.Record) int {
		return cmp.Compare(record.SortKeyOf(a), record.SortKeyOf(b))
	})

	var buf bytes.Buffer
	buf.Grow(len(j.records) * 128)
	if err := s.table.Write(&buf, j.records); err != nil {
		return packed{}, fmt.Errorf("serialize group %s: %w", j.key, err)
	}

	sub, err := s.archive.Pack(j.name, buf.Bytes())
	if err != nil {
		return packed{}, fmt.Errorf("pack group %s: %w", j.key, err)
	}
	return packed{idx: j.idx, name: j.name, rows: len(j.records), data: sub}, nil
}
