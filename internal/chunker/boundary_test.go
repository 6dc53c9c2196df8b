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

package chunker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const element = `<Record type="HKQuantityTypeIdentifierStepCount" value="12" startDate="2023-01-01 10:00:00 +0000"/>`

func repeated(n int, sep string) []byte {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = element
	}
	return []byte(strings.Join(parts, sep))
}

func assertValidBoundaries(t *testing.T, data []byte, b []int) {
	t.Helper()
	require.GreaterOrEqual(t, len(b), 2)
	assert.Equal(t, 0, b[0])
	assert.Equal(t, len(data), b[len(b)-1])
	for i := 1; i < len(b); i++ {
		assert.Greater(t, b[i], b[i-1], "boundaries must be strictly increasing")
	}
	for _, off := range b[1 : len(b)-1] {
		assert.True(t, isElementStart(data[off:]), "boundary %d is not an element start", off)
	}
}

func TestFindBoundaries_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		target int
		want   []int
	}{
		{
			name:   "empty input",
			input:  nil,
			target: 16,
			want:   []int{0, 0},
		},
		{
			name:   "input smaller than target",
			input:  []byte(element),
			target: 4096,
			want:   []int{0, len(element)},
		},
		{
			name:   "no element after target",
			input:  []byte(element + "   \n"),
			target: 10,
			want:   []int{0, len(element) + 4},
		},
		{
			name:   "dangling element stays in final chunk",
			input:  []byte(element + `<Record type="x`),
			target: 10,
			want:   []int{0, len(element), len(element) + len(`<Record type="x`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindBoundaries(tt.input, tt.target))
		})
	}
}

func TestFindBoundaries_RepeatedElements(t *testing.T) {
	for _, sep := range []string{"", "\n", "\n  "} {
		data := repeated(500, sep)
		for _, target := range []int{1, 7, 64, len(element), 1000, 4096, len(data) * 2} {
			b := FindBoundaries(data, target)
			assertValidBoundaries(t, data, b)
		}
	}
}

func TestFindBoundaries_ElementCountsPreserved(t *testing.T) {
	data := repeated(300, "\n")
	b := FindBoundaries(data, 333)

	total := 0
	for i := 0; i+1 < len(b); i++ {
		chunk := data[b[i]:b[i+1]]
		total += bytes.Count(chunk, []byte("<Record "))
		assert.True(t, bytes.HasSuffix(bytes.TrimSpace(chunk), []byte("/>")), "chunk %d ends mid element", i)
	}
	assert.Equal(t, 300, total)
}

func TestFindBoundaryAfter(t *testing.T) {
	data := []byte(`<a x="1"></a>  <b/>`)

	off, ok := FindBoundaryAfter(data, 0)
	require.True(t, ok)
	// "<a x=...>" is followed by "</a>", which is not an element start.
	assert.Equal(t, strings.Index(string(data), "<b"), off)

	_, ok = FindBoundaryAfter(data, off)
	assert.False(t, ok)
}

func TestFindBoundaries_SkipsDeclarationsAndComments(t *testing.T) {
	data := []byte("<?xml version=\"1.0\"?>\n<!DOCTYPE HealthData>\n<!-- c -->\n<HealthData>\n" + element + "\n</HealthData>\n")
	b := FindBoundaries(data, 1)
	assertValidBoundaries(t, data, b)
	for _, off := range b[1 : len(b)-1] {
		assert.NotEqual(t, byte('!'), data[off+1])
		assert.NotEqual(t, byte('?'), data[off+1])
	}
}
