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

// Package tabular renders a group of records as a table.
package tabular

import (
	"fmt"
	"io"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/healthexport/internal/record"
)

// Format writes one table per group.
type Format interface {
	// Extension is the file extension without a leading dot.
	Extension() string

	// Write renders records, in the given order, under a header that is the
	// union of their field names.
	Write(w io.Writer, records []record.Record) error
}

// ByName returns the format registered under name.
func ByName(name string) (Format, error) {
	switch name {
	case "", "csv":
		return CSV{}, nil
	default:
		return nil, fmt.Errorf("unknown table format %q", name)
	}
}

// Header returns the sorted union of the records' field names.
func Header(records []record.Record) []string {
	names := mapset.NewThreadUnsafeSet[string]()
	for _, r := range records {
		for _, f := range r.Fields() {
			names.Add(f.Name)
		}
	}
	header := names.ToSlice()
	slices.Sort(header)
	return header
}

// Rows lays records out under header. Fields a record lacks are empty
// cells; fields not in header are ignored.
func Rows(header []string, records []record.Record, emit func(row []string) error) error {
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	row := make([]string, len(header))
	for _, r := range records {
		clear(row)
		for _, f := range r.Fields() {
			if i, ok := col[f.Name]; ok {
				row[i] = f.Value
			}
		}
		if err := emit(row); err != nil {
			return err
		}
	}
	return nil
}
