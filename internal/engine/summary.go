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

package engine

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cardinalhq/healthexport/internal/extract"
	"github.com/cardinalhq/healthexport/internal/sink"
)

// Summary describes a finished run.
type Summary struct {
	Input      string
	Member     string
	Output     string
	InputBytes int64
	Started    time.Time

	Extract extract.Stats
	Groups  int
	Sink    sink.Stats

	// ExtractDuration covers extraction and the grouping that runs
	// alongside it.
	ExtractDuration time.Duration
	LoadDuration    time.Duration
	Total           time.Duration
}

// Throughput is input megabytes per second over the extraction phase.
func (s Summary) Throughput() float64 {
	if s.ExtractDuration <= 0 {
		return 0
	}
	return float64(s.Extract.Bytes) / (1 << 20) / s.ExtractDuration.Seconds()
}

// Print writes a human readable report.
func (s Summary) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	input := s.Input
	if s.Member != "" {
		input += " (" + s.Member + ")"
	}
	fmt.Fprintf(tw, "input:\t%s\n", input)
	if s.Output != "" {
		fmt.Fprintf(tw, "output:\t%s\n", s.Output)
	}
	fmt.Fprintf(tw, "records:\t%d\n", s.Extract.Records)
	fmt.Fprintf(tw, "groups:\t%d\n", s.Groups)
	if s.Output != "" {
		fmt.Fprintf(tw, "entries:\t%d (%d skipped empty)\n", s.Sink.Entries, s.Sink.Skipped)
		fmt.Fprintf(tw, "archive bytes:\t%d\n", s.Sink.Bytes)
	}
	fmt.Fprintf(tw, "chunks:\t%d (%d truncated)\n", s.Extract.Chunks, s.Extract.TruncatedChunks)
	fmt.Fprintf(tw, "dropped elements:\t%d\n", s.Extract.Dropped)
	fmt.Fprintf(tw, "skipped elements:\t%d\n", s.Extract.Skipped)
	fmt.Fprintf(tw, "extract:\t%s (%.1f MiB/s)\n", s.ExtractDuration.Round(time.Millisecond), s.Throughput())
	if s.Output != "" {
		fmt.Fprintf(tw, "load:\t%s\n", s.LoadDuration.Round(time.Millisecond))
	}
	fmt.Fprintf(tw, "total:\t%s\n", s.Total.Round(time.Millisecond))
	return tw.Flush()
}
