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

// Package extract runs the chunk parser over a whole document on a fixed
// pool of workers and streams the decoded records out on a bounded channel.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/healthexport/internal/chunker"
	"github.com/cardinalhq/healthexport/internal/logctx"
	"github.com/cardinalhq/healthexport/internal/record"
	"github.com/cardinalhq/healthexport/internal/xmlchunk"
)

var (
	// ErrWorkerPanic is returned when a parse task panicked.
	ErrWorkerPanic = errors.New("extract worker panicked")

	// ErrTooManyDecodeErrors is returned when the dropped element count
	// passes Config.MaxDecodeErrors.
	ErrTooManyDecodeErrors = errors.New("too many malformed elements")
)

// Input is a document to extract from. A streaming input is consumed through
// Reader; any other through Bytes.
type Input interface {
	Streaming() bool
	Bytes() []byte
	Reader() io.Reader
}

// Stats summarizes an extraction.
type Stats struct {
	Bytes           int64
	Chunks          int64
	TruncatedChunks int64
	Elements        int64
	Records         int64
	Dropped         int64

	// Skipped counts elements the decoder chose not to keep.
	Skipped int64
}

// Extraction is a running extraction. Records must be drained, or the
// context cancelled, for Wait to return.
type Extraction struct {
	records chan record.Record
	done    chan struct{}
	stats   Stats
	err     error
}

// Records is closed once every parse task has finished.
func (e *Extraction) Records() <-chan record.Record { return e.records }

// Wait blocks until the extraction is over. The error aggregates every task
// failure; records already sent remain valid.
func (e *Extraction) Wait() (Stats, error) {
	<-e.done
	return e.stats, e.err
}

// Extract starts parsing in in the background and returns immediately.
// Record order across chunks is unspecified.
func Extract(ctx context.Context, in Input, decode record.DecodeFunc, cfg Config) *Extraction {
	cfg = cfg.withDefaults()
	e := &Extraction{
		records: make(chan record.Record, cfg.ChannelCapacity),
		done:    make(chan struct{}),
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{
		ctx:    runCtx,
		cancel: cancel,
		cfg:    cfg,
		decode: decode,
		out:    e.records,
		logger: logctx.FromContext(ctx).With(slog.String("component", "extract")),
	}

	go func() {
		defer close(e.done)
		defer cancel(nil)

		r.produce(in)
		close(e.records)

		e.stats = r.snapshot()
		e.err = r.errs.ErrorOrNil()
		if e.err == nil && ctx.Err() != nil {
			e.err = ctx.Err()
		}
	}()
	return e
}

type run struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	cfg    Config
	decode record.DecodeFunc
	out    chan<- record.Record
	logger *slog.Logger

	bytes, chunks, truncated, elements, records, dropped, skipped atomic.Int64

	mu       sync.Mutex
	errs     *multierror.Error
	overflow sync.Once
}

// produce feeds chunks to the pool. errgroup.Go blocks while every worker is
// busy, so a full record channel stalls the producer as well.
func (r *run) produce(in Input) {
	next := r.chunkIter(in)

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	var offset int64
	for idx := 0; r.ctx.Err() == nil; idx++ {
		chunk, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.fail(fmt.Errorf("split input: %w", err))
			break
		}

		start := offset
		offset += int64(len(chunk))
		g.Go(func() error {
			r.task(idx, start, chunk)
			return nil
		})
	}

	_ = g.Wait()
}

// chunkIter returns an iterator over boundary-safe chunks of in.
func (r *run) chunkIter(in Input) func() ([]byte, error) {
	if in.Streaming() {
		sp := chunker.NewSplitter(in.Reader(), r.cfg.ChunkSize)
		return sp.Next
	}

	data := in.Bytes()
	bounds := chunker.FindBoundaries(data, r.cfg.ChunkSize)
	i := 0
	return func() ([]byte, error) {
		if i+1 >= len(bounds) || bounds[i] == bounds[i+1] {
			return nil, io.EOF
		}
		chunk := data[bounds[i]:bounds[i+1]]
		i++
		return chunk, nil
	}
}

func (r *run) task(idx int, offset int64, chunk []byte) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Parse worker panicked",
				slog.Int("chunk", idx),
				slog.Int64("offset", offset),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			r.fail(fmt.Errorf("%w: chunk %d: %v", ErrWorkerPanic, idx, p))
		}
	}()

	p := xmlchunk.Parser{
		Decode: r.decode,
		OnDropped: func(element string, err error) {
			r.logger.Debug("Dropped malformed element",
				slog.String("element", element),
				slog.Int("chunk", idx),
				slog.Any("error", err))
			r.noteDropped()
		},
	}
	res := p.Parse(chunk)

	r.bytes.Add(int64(len(chunk)))
	r.chunks.Add(1)
	r.elements.Add(int64(res.Elements))
	r.skipped.Add(int64(res.Skipped))
	chunksCounter.Add(r.ctx, 1)
	if res.Dropped > 0 {
		elementsDroppedCounter.Add(r.ctx, int64(res.Dropped))
	}
	if res.Skipped > 0 {
		elementsSkippedCounter.Add(r.ctx, int64(res.Skipped))
	}
	if res.Truncated != nil {
		r.truncated.Add(1)
		chunksTruncatedCounter.Add(r.ctx, 1)
		r.logger.Warn("Chunk parse stopped early, rest of chunk skipped",
			slog.Int("chunk", idx),
			slog.Int64("offset", offset),
			slog.Int("keptRecords", len(res.Records)),
			slog.Any("error", res.Truncated))
	}

	var sent int64
	defer func() {
		r.records.Add(sent)
		recordsCounter.Add(context.WithoutCancel(r.ctx), sent)
	}()
	for _, rec := range res.Records {
		select {
		case r.out <- rec:
			sent++
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *run) noteDropped() {
	n := r.dropped.Add(1)
	if r.cfg.MaxDecodeErrors > 0 && n > r.cfg.MaxDecodeErrors {
		r.overflow.Do(func() {
			r.fail(fmt.Errorf("%w: more than %d elements dropped", ErrTooManyDecodeErrors, r.cfg.MaxDecodeErrors))
		})
	}
}

// fail records err and stops the run. Tasks already running finish their
// current send or return on cancellation.
func (r *run) fail(err error) {
	r.mu.Lock()
	r.errs = multierror.Append(r.errs, err)
	r.mu.Unlock()
	r.cancel(err)
}

func (r *run) snapshot() Stats {
	return Stats{
		Bytes:           r.bytes.Load(),
		Chunks:          r.chunks.Load(),
		TruncatedChunks: r.truncated.Load(),
		Elements:        r.elements.Load(),
		Records:         r.records.Load(),
		Dropped:         r.dropped.Load(),
		Skipped:         r.skipped.Load(),
	}
}
