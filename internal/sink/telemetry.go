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
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	entriesCounter otelmetric.Int64Counter
	bytesCounter   otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/healthexport/internal/sink")

	var err error
	entriesCounter, err = meter.Int64Counter(
		"healthexport.sink.entries",
		otelmetric.WithDescription("Number of entries appended to the output archive"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sink.entries counter: %w", err))
	}

	bytesCounter, err = meter.Int64Counter(
		"healthexport.sink.bytes",
		otelmetric.WithDescription("Compressed bytes appended to the output archive"),
		otelmetric.WithUnit("By"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sink.bytes counter: %w", err))
	}
}
