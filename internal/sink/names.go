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

package sink

import (
	"strconv"

	"github.com/cardinalhq/healthexport/internal/helpers"
)

// Namer maps a grouping key to an entry name stem.
type Namer func(key string) string

// EntryNames names one entry per key. keys must be sorted; when two keys
// produce the same stem the later one gets a _2, _3, ... suffix.
func EntryNames(keys []string, namer Namer, ext string) []string {
	if namer == nil {
		namer = helpers.SanitizeFilename
	}

	used := make(map[string]struct{}, len(keys))
	names := make([]string, len(keys))
	for i, key := range keys {
		stem := namer(key)
		name := stem + "." + ext
		for n := 2; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = stem + "_" + strconv.Itoa(n) + "." + ext
		}
		used[name] = struct{}{}
		names[i] = name
	}
	return names
}
