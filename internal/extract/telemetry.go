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
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	chunksCounter          otelmetric.Int64Counter
	chunksTruncatedCounter otelmetric.Int64Counter
	recordsCounter         otelmetric.Int64Counter
	elementsDroppedCounter otelmetric.Int64Counter
	elementsSkippedCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/healthexport/internal/extract")

	var err error
	chunksCounter, err = meter.Int64Counter(
		"healthexport.extract.chunks",
		otelmetric.WithDescription("Number of chunks handed to parse workers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.chunks counter: %w", err))
	}

	chunksTruncatedCounter, err = meter.Int64Counter(
		"healthexport.extract.chunks.truncated",
		otelmetric.WithDescription("Number of chunks whose parse stopped early on a tokenizer error"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.chunks.truncated counter: %w", err))
	}

	recordsCounter, err = meter.Int64Counter(
		"healthexport.extract.records",
		otelmetric.WithDescription("Number of records decoded from the input"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.records counter: %w", err))
	}

	elementsDroppedCounter, err = meter.Int64Counter(
		"healthexport.extract.elements.dropped",
		otelmetric.WithDescription("Number of elements dropped because the decoder rejected them"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.elements.dropped counter: %w", err))
	}

	elementsSkippedCounter, err = meter.Int64Counter(
		"healthexport.extract.elements.skipped",
		otelmetric.WithDescription("Number of elements the decoder does not turn into records"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.elements.skipped counter: %w", err))
	}
}
