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

package profile

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// WriteTable prints one aligned row per group.
func WriteTable(w io.Writer, groups []Group) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tRECORDS\tSOURCES\tFIRST\tLAST\tP50\tP95\tMAX")
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%d\t~%d\t%s\t%s\t%s\t%s\t%s\n",
			g.Key, g.Records, g.Sources,
			dash(g.First), dash(g.Last),
			num(g.P50), num(g.P95), num(g.Max))
	}
	return tw.Flush()
}

// WriteYAML prints the profiles as a YAML list.
func WriteYAML(w io.Writer, groups []Group) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(groups); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return enc.Close()
}

// Write dispatches on format: "table" or "yaml".
func Write(w io.Writer, format string, groups []Group) error {
	switch format {
	case "", "table":
		return WriteTable(w, groups)
	case "yaml":
		return WriteYAML(w, groups)
	default:
		return fmt.Errorf("unknown scan output %q", format)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}
