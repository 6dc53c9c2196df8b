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

// Package engine wires the pipeline together: open the input, extract and
// group its records, then write the grouped archive.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/healthexport/internal/container"
	"github.com/cardinalhq/healthexport/internal/extract"
	"github.com/cardinalhq/healthexport/internal/grouping"
	"github.com/cardinalhq/healthexport/internal/healthkit"
	"github.com/cardinalhq/healthexport/internal/logctx"
	"github.com/cardinalhq/healthexport/internal/record"
	"github.com/cardinalhq/healthexport/internal/sink"
	"github.com/cardinalhq/healthexport/internal/source"
	"github.com/cardinalhq/healthexport/internal/tabular"
)

var tracer = otel.Tracer("github.com/cardinalhq/healthexport/internal/engine")

// Options configure one run.
type Options struct {
	Extract extract.Config
	Group   grouping.Config
	Sink    sink.Config

	// Format selects the output archive: "zip" or "tar.zst".
	Format string

	// Table selects the table format. Only "csv" exists today.
	Table string

	// MemberSuffix selects the document inside a zip input.
	MemberSuffix string

	// SkipElements overrides healthkit.DefaultSkipElements.
	SkipElements []string
}

// Engine runs conversions. It holds no per-run state.
type Engine struct {
	opts    Options
	decoder *healthkit.Decoder
	table   tabular.Format
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	table, err := tabular.ByName(opts.Table)
	if err != nil {
		return nil, err
	}
	if _, err := container.ByName(opts.Format, container.Options{}); err != nil {
		return nil, err
	}
	return &Engine{
		opts:    opts,
		decoder: healthkit.NewDecoder(opts.SkipElements...),
		table:   table,
	}, nil
}

// Convert reads input and writes the grouped archive to output.
func (e *Engine) Convert(ctx context.Context, input, output string) (Summary, error) {
	ctx, span := tracer.Start(ctx, "convert", trace.WithAttributes(
		attribute.String("input", input),
		attribute.String("output", output),
		attribute.String("format", e.opts.Format),
	))

	sum := Summary{Input: input, Output: output, Started: time.Now()}
	logger := logctx.FromContext(ctx)

	groups, err := e.collect(ctx, input, &sum)
	if err != nil {
		return e.fail(span, sum, err)
	}

	archive, err := container.ByName(e.opts.Format, container.Options{
		StoreThreshold: e.opts.Sink.StoreThreshold,
		Modified:       sum.Started,
	})
	if err != nil {
		return e.fail(span, sum, err)
	}

	loadCtx, loadSpan := tracer.Start(ctx, "load")
	loadStart := time.Now()
	s := sink.New(e.opts.Sink, e.table, archive, healthkit.EntryName)
	sum.Sink, err = s.WriteFile(loadCtx, groups, output)
	sum.LoadDuration = time.Since(loadStart)
	loadSpan.SetAttributes(attribute.Int("entries", sum.Sink.Entries))
	endSpan(loadSpan, err)
	if err != nil {
		return e.fail(span, sum, fmt.Errorf("write %s: %w", output, err))
	}

	sum.Total = time.Since(sum.Started)
	logger.Info("Conversion complete",
		slog.String("output", output),
		slog.Int("entries", sum.Sink.Entries),
		slog.Int64("records", sum.Extract.Records),
		slog.Int64("dropped", sum.Extract.Dropped),
		slog.Int64("skipped", sum.Extract.Skipped),
		slog.Duration("duration", sum.Total))
	span.End()
	return sum, nil
}

// Collect reads input and returns its groups without writing anything.
func (e *Engine) Collect(ctx context.Context, input string) (grouping.Groups, Summary, error) {
	sum := Summary{Input: input, Started: time.Now()}
	groups, err := e.collect(ctx, input, &sum)
	sum.Total = time.Since(sum.Started)
	return groups, sum, err
}

// collect runs extraction and grouping concurrently. Grouping drains the
// record channel while the parse workers fill it.
func (e *Engine) collect(ctx context.Context, input string, sum *Summary) (grouping.Groups, error) {
	ctx = logctx.WithAttrs(ctx, slog.String("input", input))
	logger := logctx.FromContext(ctx)

	src, err := source.Open(input, source.Options{
		Stream:       e.opts.Extract.Stream,
		MemberSuffix: e.opts.MemberSuffix,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			logger.Warn("Failed to close input", slog.Any("error", cerr))
		}
	}()
	sum.Member = src.Member()
	sum.InputBytes = src.Size()

	logger.Info("Reading input",
		slog.String("member", src.Member()),
		slog.Int64("bytes", src.Size()),
		slog.Bool("streaming", src.Streaming()))

	extractCtx, extractSpan := tracer.Start(ctx, "extract")
	start := time.Now()

	// Grouping gets its own cancel so a failed extraction stops it, and a
	// failed grouping stops the parse workers.
	runCtx, cancel := context.WithCancel(extractCtx)
	defer cancel()

	ex := extract.Extract(runCtx, src, record.DecodeFunc(e.decoder.Decode), e.opts.Extract)

	groupCtx, groupSpan := tracer.Start(runCtx, "group")
	groups, gerr := grouping.Collect(groupCtx, ex.Records(), e.opts.Group)
	groupSpan.SetAttributes(attribute.Int("groups", len(groups)))
	endSpan(groupSpan, gerr)
	if gerr != nil {
		cancel()
	}

	stats, xerr := ex.Wait()
	sum.Extract = stats
	sum.Groups = len(groups)
	sum.ExtractDuration = time.Since(start)
	extractSpan.SetAttributes(
		attribute.Int64("records", stats.Records),
		attribute.Int64("chunks", stats.Chunks),
		attribute.Int64("dropped", stats.Dropped),
		attribute.Int64("skipped", stats.Skipped))
	endSpan(extractSpan, xerr)

	if xerr != nil {
		return nil, fmt.Errorf("extract %s: %w", input, xerr)
	}
	if gerr != nil {
		return nil, fmt.Errorf("group records: %w", gerr)
	}
	return groups, nil
}

func (e *Engine) fail(span trace.Span, sum Summary, err error) (Summary, error) {
	sum.Total = time.Since(sum.Started)
	endSpan(span, err)
	return sum, err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
