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

package tabular

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cardinalhq/healthexport/internal/record"
)

// CSV writes RFC 4180 comma separated values with a header row.
type CSV struct{}

var _ Format = CSV{}

func (CSV) Extension() string { return "csv" }

func (CSV) Write(w io.Writer, records []record.Record) error {
	header := Header(records)
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := Rows(header, records, cw.Write); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
