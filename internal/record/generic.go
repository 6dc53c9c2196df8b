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

package record

// Generic is the fallback record for elements without a dedicated type.
// It keeps every attribute in document order.
type Generic struct {
	Element string
	Key     string
	Sort    string
	HasSort bool
	Attrs   []Attr
}

var _ Record = (*Generic)(nil)

// NewGeneric copies attrs into a new Generic record grouped under key.
func NewGeneric(element, key string, attrs []Attr) *Generic {
	owned := make([]Attr, len(attrs))
	copy(owned, attrs)
	return &Generic{
		Element: element,
		Key:     key,
		Attrs:   owned,
	}
}

// WithSortKey sets the sort key and returns the record.
func (g *Generic) WithSortKey(key string) *Generic {
	g.Sort = key
	g.HasSort = true
	return g
}

func (g *Generic) GroupingKey() string { return g.Key }

func (g *Generic) SortKey() (string, bool) { return g.Sort, g.HasSort }

func (g *Generic) Fields() []Field {
	fields := make([]Field, 0, len(g.Attrs))
	for _, a := range g.Attrs {
		fields = append(fields, Field{Name: a.Key, Value: a.Value})
	}
	return fields
}

// Lookup returns the value of the first attribute named key.
func Lookup(attrs []Attr, key string) (string, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
