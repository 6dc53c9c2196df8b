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
package helpers

import (
	"strings"
	"unicode"
)

// SanitizeFilename makes s safe to use as a file name inside an archive.
// Characters that are reserved on common filesystems and control characters
// become '_'; leading and trailing '_' are trimmed. An empty result is
// replaced with "unnamed".
func SanitizeFilename(s string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, s)

	clean = strings.Trim(clean, "_")
	if clean == "" || clean == "." || clean == ".." {
		return "unnamed"
	}
	return clean
}
