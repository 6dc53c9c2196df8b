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

// Package profile summarizes grouped records without writing them out.
package profile

import (
	"maps"
	"slices"
	"strconv"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/axiomhq/hyperloglog"

	"github.com/cardinalhq/healthexport/internal/record"
)

const (
	sourceField = "sourceName"
	valueField  = "value"

	relativeAccuracy = 0.01
)

// Group describes one group.
type Group struct {
	Key     string `yaml:"key"`
	Records int    `yaml:"records"`

	// Sources is the approximate number of distinct sourceName values.
	Sources uint64 `yaml:"sources"`

	// First and Last are the smallest and largest sort keys.
	First string `yaml:"first,omitempty"`
	Last  string `yaml:"last,omitempty"`

	// Numeric counts records whose value field parsed as a number. The
	// quantiles are over those values.
	Numeric int      `yaml:"numeric"`
	P50     *float64 `yaml:"p50,omitempty"`
	P95     *float64 `yaml:"p95,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
}

// Build profiles every group, ordered by key.
func Build(groups map[string][]record.Record) ([]Group, error) {
	out := make([]Group, 0, len(groups))
	for _, key := range slices.Sorted(maps.Keys(groups)) {
		g, err := BuildGroup(key, groups[key])
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// BuildGroup profiles the records of one group.
func BuildGroup(key string, records []record.Record) (Group, error) {
	g := Group{Key: key, Records: len(records)}

	sources := hyperloglog.New14()
	values, err := ddsketch.NewDefaultDDSketch(relativeAccuracy)
	if err != nil {
		return g, err
	}

	for _, r := range records {
		if k, ok := r.SortKey(); ok && k != "" {
			if g.First == "" || k < g.First {
				g.First = k
			}
			if k > g.Last {
				g.Last = k
			}
		}
		for _, f := range r.Fields() {
			switch f.Name {
			case sourceField:
				sources.Insert([]byte(f.Value))
			case valueField:
				v, err := strconv.ParseFloat(f.Value, 64)
				if err != nil {
					continue
				}
				if err := values.Add(v); err != nil {
					continue
				}
				g.Numeric++
			}
		}
	}

	g.Sources = sources.Estimate()
	if !values.IsEmpty() {
		g.P50 = quantile(values, 0.5)
		g.P95 = quantile(values, 0.95)
		if v, err := values.GetMaxValue(); err == nil {
			g.Max = &v
		}
	}
	return g, nil
}

func quantile(s *ddsketch.DDSketch, q float64) *float64 {
	v, err := s.GetValueAtQuantile(q)
	if err != nil {
		return nil
	}
	return &v
}
