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

package healthkit

import (
	"fmt"
	"strconv"

	"github.com/cardinalhq/healthexport/internal/record"
)

// Quantity is a validated numeric attribute. Text keeps the exact
// characters from the export so output does not reformat numbers.
type Quantity struct {
	Value float64
	Text  string
}

// DecodeError describes an attribute that could not be parsed.
type DecodeError struct {
	Element string
	Attr    string
	Value   string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: attribute %s=%q: %v", e.Element, e.Attr, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func parseQuantity(element string, a record.Attr) (*Quantity, error) {
	v, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return nil, &DecodeError{Element: element, Attr: a.Key, Value: a.Value, Err: err}
	}
	return &Quantity{Value: v, Text: a.Value}, nil
}

// Sample is a <Record> element: one quantity or category sample. Value is
// kept as text because category samples carry symbolic values.
type Sample struct {
	Type          string
	Value         string
	Unit          string
	SourceName    string
	SourceVersion string
	Device        string
	CreationDate  string
	StartDate     string
	EndDate       string
	Extra         []record.Attr

	present presence
}

var _ record.Record = (*Sample)(nil)

const (
	sampleType = iota
	sampleValue
	sampleUnit
	sampleSourceName
	sampleSourceVersion
	sampleDevice
	sampleCreationDate
	sampleStartDate
	sampleEndDate
)

func decodeSample(attrs []record.Attr) (*Sample, error) {
	s := &Sample{}
	for _, a := range attrs {
		switch a.Key {
		case "type":
			s.Type = a.Value
			s.present.set(sampleType)
		case "value":
			s.Value = a.Value
			s.present.set(sampleValue)
		case "unit":
			s.Unit = a.Value
			s.present.set(sampleUnit)
		case "sourceName":
			s.SourceName = a.Value
			s.present.set(sampleSourceName)
		case "sourceVersion":
			s.SourceVersion = a.Value
			s.present.set(sampleSourceVersion)
		case "device":
			s.Device = a.Value
			s.present.set(sampleDevice)
		case "creationDate":
			s.CreationDate = a.Value
			s.present.set(sampleCreationDate)
		case "startDate":
			s.StartDate = a.Value
			s.present.set(sampleStartDate)
		case "endDate":
			s.EndDate = a.Value
			s.present.set(sampleEndDate)
		default:
			s.Extra = append(s.Extra, a)
		}
	}
	return s, nil
}

func (s *Sample) GroupingKey() string {
	if s.Type == "" {
		return ElementRecord
	}
	return s.Type
}

func (s *Sample) SortKey() (string, bool) {
	return firstNonEmpty(s.StartDate, s.CreationDate, s.EndDate)
}

func (s *Sample) Fields() []record.Field {
	var f fieldList
	f.add("type", s.Type, s.present.has(sampleType))
	f.add("value", s.Value, s.present.has(sampleValue))
	f.add("unit", s.Unit, s.present.has(sampleUnit))
	f.add("sourceName", s.SourceName, s.present.has(sampleSourceName))
	f.add("sourceVersion", s.SourceVersion, s.present.has(sampleSourceVersion))
	f.add("device", s.Device, s.present.has(sampleDevice))
	f.add("creationDate", s.CreationDate, s.present.has(sampleCreationDate))
	f.add("startDate", s.StartDate, s.present.has(sampleStartDate))
	f.add("endDate", s.EndDate, s.present.has(sampleEndDate))
	f.extra(s.Extra)
	return f
}

// Workout is a <Workout> element.
type Workout struct {
	ActivityType          string
	Duration              *Quantity
	DurationUnit          string
	TotalDistance         *Quantity
	TotalDistanceUnit     string
	TotalEnergyBurned     *Quantity
	TotalEnergyBurnedUnit string
	SourceName            string
	SourceVersion         string
	Device                string
	CreationDate          string
	StartDate             string
	EndDate               string
	Extra                 []record.Attr

	present presence
}

var _ record.Record = (*Workout)(nil)

const (
	workoutActivityType = iota
	workoutDurationUnit
	workoutTotalDistanceUnit
	workoutTotalEnergyBurnedUnit
	workoutSourceName
	workoutSourceVersion
	workoutDevice
	workoutCreationDate
	workoutStartDate
	workoutEndDate
)

func decodeWorkout(attrs []record.Attr) (*Workout, error) {
	w := &Workout{}
	var err error
	for _, a := range attrs {
		switch a.Key {
		case "workoutActivityType":
			w.ActivityType = a.Value
			w.present.set(workoutActivityType)
		case "duration":
			w.Duration, err = parseQuantity(ElementWorkout, a)
		case "durationUnit":
			w.DurationUnit = a.Value
			w.present.set(workoutDurationUnit)
		case "totalDistance":
			w.TotalDistance, err = parseQuantity(ElementWorkout, a)
		case "totalDistanceUnit":
			w.TotalDistanceUnit = a.Value
			w.present.set(workoutTotalDistanceUnit)
		case "totalEnergyBurned":
			w.TotalEnergyBurned, err = parseQuantity(ElementWorkout, a)
		case "totalEnergyBurnedUnit":
			w.TotalEnergyBurnedUnit = a.Value
			w.present.set(workoutTotalEnergyBurnedUnit)
		case "sourceName":
			w.SourceName = a.Value
			w.present.set(workoutSourceName)
		case "sourceVersion":
			w.SourceVersion = a.Value
			w.present.set(workoutSourceVersion)
		case "device":
			w.Device = a.Value
			w.present.set(workoutDevice)
		case "creationDate":
			w.CreationDate = a.Value
			w.present.set(workoutCreationDate)
		case "startDate":
			w.StartDate = a.Value
			w.present.set(workoutStartDate)
		case "endDate":
			w.EndDate = a.Value
			w.present.set(workoutEndDate)
		default:
			w.Extra = append(w.Extra, a)
		}
		if err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Workout) GroupingKey() string { return ElementWorkout }

func (w *Workout) SortKey() (string, bool) {
	return firstNonEmpty(w.StartDate, w.CreationDate, w.EndDate)
}

func (w *Workout) Fields() []record.Field {
	var f fieldList
	f.add("workoutActivityType", w.ActivityType, w.present.has(workoutActivityType))
	f.addQuantity("duration", w.Duration)
	f.add("durationUnit", w.DurationUnit, w.present.has(workoutDurationUnit))
	f.addQuantity("totalDistance", w.TotalDistance)
	f.add("totalDistanceUnit", w.TotalDistanceUnit, w.present.has(workoutTotalDistanceUnit))
	f.addQuantity("totalEnergyBurned", w.TotalEnergyBurned)
	f.add("totalEnergyBurnedUnit", w.TotalEnergyBurnedUnit, w.present.has(workoutTotalEnergyBurnedUnit))
	f.add("sourceName", w.SourceName, w.present.has(workoutSourceName))
	f.add("sourceVersion", w.SourceVersion, w.present.has(workoutSourceVersion))
	f.add("device", w.Device, w.present.has(workoutDevice))
	f.add("creationDate", w.CreationDate, w.present.has(workoutCreationDate))
	f.add("startDate", w.StartDate, w.present.has(workoutStartDate))
	f.add("endDate", w.EndDate, w.present.has(workoutEndDate))
	f.extra(w.Extra)
	return f
}

// ActivitySummary is an <ActivitySummary> element: one day of ring totals.
type ActivitySummary struct {
	DateComponents    string
	hasDateComponents bool
	// Numeric attributes keyed by attribute name, e.g. "activeEnergyBurned".
	Totals map[string]*Quantity
	Extra  []record.Attr
}

var _ record.Record = (*ActivitySummary)(nil)

// summaryTotals lists the numeric ActivitySummary attributes in output order.
var summaryTotals = []string{
	"activeEnergyBurned",
	"activeEnergyBurnedGoal",
	"appleMoveTime",
	"appleMoveTimeGoal",
	"appleExerciseTime",
	"appleExerciseTimeGoal",
	"appleStandHours",
	"appleStandHoursGoal",
}

func isSummaryTotal(key string) bool {
	for _, k := range summaryTotals {
		if k == key {
			return true
		}
	}
	return false
}

func decodeActivitySummary(attrs []record.Attr) (*ActivitySummary, error) {
	s := &ActivitySummary{Totals: make(map[string]*Quantity, len(summaryTotals))}
	for _, a := range attrs {
		switch {
		case a.Key == "dateComponents":
			s.DateComponents = a.Value
			s.hasDateComponents = true
		case isSummaryTotal(a.Key):
			q, err := parseQuantity(ElementActivitySummary, a)
			if err != nil {
				return nil, err
			}
			s.Totals[a.Key] = q
		default:
			s.Extra = append(s.Extra, a)
		}
	}
	return s, nil
}

func (s *ActivitySummary) GroupingKey() string { return ElementActivitySummary }

func (s *ActivitySummary) SortKey() (string, bool) {
	return firstNonEmpty(s.DateComponents)
}

func (s *ActivitySummary) Fields() []record.Field {
	var f fieldList
	f.add("dateComponents", s.DateComponents, s.hasDateComponents)
	for _, k := range summaryTotals {
		f.addQuantity(k, s.Totals[k])
	}
	f.extra(s.Extra)
	return f
}

// presence records which known attributes an element carried, so an
// attribute that is present but empty still produces a column.
type presence uint16

func (p *presence) set(bit int) { *p |= 1 << bit }
func (p presence) has(bit int) bool { return p&(1<<bit) != 0 }

// fieldList collects the present fields of a typed record.
type fieldList []record.Field

func (f *fieldList) add(name, value string, present bool) {
	if !present {
		return
	}
	*f = append(*f, record.Field{Name: name, Value: value})
}

func (f *fieldList) addQuantity(name string, q *Quantity) {
	if q == nil {
		return
	}
	*f = append(*f, record.Field{Name: name, Value: q.Text})
}

func (f *fieldList) extra(attrs []record.Attr) {
	for _, a := range attrs {
		*f = append(*f, record.Field{Name: a.Key, Value: a.Value})
	}
}

func firstNonEmpty(values ...string) (string, bool) {
	for _, v := range values {
		if v != "" {
			return v, true
		}
	}
	return "", false
}
