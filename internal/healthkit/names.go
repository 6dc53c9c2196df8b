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
	"strings"

	"github.com/cardinalhq/healthexport/internal/helpers"
)

var typePrefixes = []string{
	"HKQuantityTypeIdentifier",
	"HKCategoryTypeIdentifier",
	"HKCharacteristicTypeIdentifier",
	"HKCorrelationTypeIdentifier",
	"HKWorkoutActivityType",
	"HKDataType",
}

// EntryName turns a grouping key into a file name stem, dropping the
// HealthKit type prefixes so "HKQuantityTypeIdentifierStepCount" becomes
// "StepCount".
func EntryName(key string) string {
	for _, p := range typePrefixes {
		if rest, ok := strings.CutPrefix(key, p); ok && rest != "" {
			key = rest
			break
		}
	}
	return helpers.SanitizeFilename(key)
}
