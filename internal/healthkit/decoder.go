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

// Package healthkit decodes the elements of an Apple Health export.
//
// <Record>, <Workout> and <ActivitySummary> have dedicated types with numeric
// validation. Every other element, nested ones included, is kept as a
// generic record grouped by its element name, except for a short skip list
// that holds the <HealthData> root.
package healthkit

import (
	"github.com/cardinalhq/healthexport/internal/record"
)

const (
	ElementRecord          = "Record"
	ElementWorkout         = "Workout"
	ElementActivitySummary = "ActivitySummary"
	ElementRoot            = "HealthData"
)

// DefaultSkipElements are never turned into records.
var DefaultSkipElements = []string{
	ElementRoot,
}

// sortAttributes are tried in order to find a generic record's sort key.
var sortAttributes = []string{
	"startDate",
	"date",
	"dateComponents",
	"creationDate",
	"endDate",
	"dateIssued",
	"receivedDate",
}

// Decoder is stateless after construction and safe for concurrent use.
type Decoder struct {
	skip map[string]struct{}
}

// NewDecoder returns a Decoder that skips the given elements. With no
// arguments it uses DefaultSkipElements.
func NewDecoder(skipElements ...string) *Decoder {
	if len(skipElements) == 0 {
		skipElements = DefaultSkipElements
	}
	d := &Decoder{skip: make(map[string]struct{}, len(skipElements))}
	for _, name := range skipElements {
		d.skip[name] = struct{}{}
	}
	return d
}

// Decode implements record.DecodeFunc.
func (d *Decoder) Decode(name string, attrs []record.Attr) (record.Record, error) {
	switch name {
	case ElementRecord:
		return nilIfErr(decodeSample(attrs))
	case ElementWorkout:
		return nilIfErr(decodeWorkout(attrs))
	case ElementActivitySummary:
		return nilIfErr(decodeActivitySummary(attrs))
	}

	if _, ok := d.skip[name]; ok {
		return nil, nil
	}
	g := record.NewGeneric(name, name, attrs)
	for _, k := range sortAttributes {
		if v, ok := record.Lookup(attrs, k); ok {
			g.WithSortKey(v)
			break
		}
	}
	return g, nil
}

// nilIfErr keeps a typed nil pointer from turning into a non-nil interface.
func nilIfErr[T record.Record](r T, err error) (record.Record, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
