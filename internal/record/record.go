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

// Package record defines the unit of data that flows through the export
// pipeline, and the decoder contract used to produce it from markup elements.
package record

// Attr is a single attribute of a markup element, in document order.
type Attr struct {
	Key   string
	Value string
}

// Field is a named cell value for tabular output.
type Field struct {
	Name  string
	Value string
}

// Record is one decoded structural element.
//
// Implementations must own all of their data; they may not hold slices into
// the chunk they were decoded from, since chunks are released as soon as
// they have been parsed.
type Record interface {
	// GroupingKey selects the output group this record belongs to.
	GroupingKey() string

	// SortKey orders records within a group. ok is false when the record
	// has no sort attribute; such records sort as the empty string.
	SortKey() (key string, ok bool)

	// Fields returns the record's cells in a stable order.
	Fields() []Field
}

// DecodeFunc turns one element into a Record.
//
// It returns (nil, nil) for element types it does not care about, and a
// non-nil error when the element is of a known type but malformed. attrs is
// only valid for the duration of the call. The function must not perform I/O
// and must be safe to call from many goroutines at once.
type DecodeFunc func(name string, attrs []Attr) (Record, error)

// SortKeyOf returns the record's sort key, or "" when it has none.
func SortKeyOf(r Record) string {
	k, _ := r.SortKey()
	return k
}
