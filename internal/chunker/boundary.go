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

// Package chunker finds split points in a markup byte stream such that no
// element straddles two chunks.
//
// A split point is the start of an element ("<" followed by an ASCII letter)
// that directly follows the close of a previous tag, with only whitespace
// in between. Elements of interest in the exports we process are flat
// siblings under a single root, so this local test is enough; the scanner
// never needs to understand nesting.
package chunker

import "bytes"

// DefaultChunkSize is the target chunk size used when none is configured.
const DefaultChunkSize = 2 * 1024 * 1024

// FindBoundaries returns the chunk boundaries for data. The result starts at
// 0, ends at len(data), and is strictly increasing except for empty input,
// which yields [0, 0]. Each interior boundary is the start of an element.
func FindBoundaries(data []byte, target int) []int {
	if target <= 0 {
		target = DefaultChunkSize
	}
	n := len(data)
	if n == 0 {
		return []int{0, 0}
	}

	boundaries := make([]int, 1, n/target+2)
	pos := 0
	for pos < n {
		candidate := min(pos+target, n)
		b, ok := FindBoundaryAfter(data, candidate)
		if !ok {
			break
		}
		boundaries = append(boundaries, b)
		pos = b
	}

	if boundaries[len(boundaries)-1] != n {
		boundaries = append(boundaries, n)
	}
	return boundaries
}

// FindBoundaryAfter scans forward from start for a '>' that is followed,
// ignoring whitespace, by the start of a new element, and returns the offset
// of that element. ok is false when no such position exists in data.
func FindBoundaryAfter(data []byte, start int) (int, bool) {
	for start < len(data) {
		i := bytes.IndexByte(data[start:], '>')
		if i < 0 {
			return 0, false
		}
		gt := start + i
		next := skipWhitespace(data, gt+1)
		if isElementStart(data[next:]) {
			return next, true
		}
		start = gt + 1
	}
	return 0, false
}

func skipWhitespace(data []byte, idx int) int {
	for idx < len(data) && isSpace(data[idx]) {
		idx++
	}
	return idx
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isElementStart(data []byte) bool {
	if len(data) < 2 || data[0] != '<' {
		return false
	}
	c := data[1]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
