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

package source

import (
	"archive/zip"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `<?xml version="1.0"?><HealthData><Record type="X" value="1"/></HealthData>`

func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func readAll(t *testing.T, s *Source) []byte {
	t.Helper()
	b, err := io.ReadAll(s.Reader())
	require.NoError(t, err)
	return b
}

func TestOpen_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	for _, stream := range []bool{false, true} {
		s, err := Open(path, Options{Stream: stream})
		require.NoError(t, err)

		assert.Equal(t, stream, s.Streaming())
		assert.Equal(t, "", s.Member())
		assert.Equal(t, int64(len(doc)), s.Size())
		if !stream {
			assert.Equal(t, doc, string(s.Bytes()))
		}
		assert.Equal(t, doc, string(readAll(t, s)))
		assert.NoError(t, s.Close())
	}
}

func TestOpen_EmptyPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.Empty(t, s.Bytes())
	assert.False(t, s.Streaming())
}

func TestOpen_ZipMember(t *testing.T) {
	path := writeZip(t, map[string]string{
		"apple_health_export/export_cda.xml":              "<cda/>",
		"apple_health_export/export.xml":                  doc,
		"apple_health_export/workout-routes/route_1.gpx":  "<gpx/>",
		"apple_health_export/electrocardiograms/ecg1.csv": "a,b",
	})

	for _, stream := range []bool{false, true} {
		s, err := Open(path, Options{Stream: stream})
		require.NoError(t, err)

		assert.Equal(t, "apple_health_export/export.xml", s.Member())
		assert.Equal(t, stream, s.Streaming())
		assert.Equal(t, doc, string(readAll(t, s)))
		assert.NoError(t, s.Close())
	}
}

func TestOpen_ZipPrefersShallowestMember(t *testing.T) {
	path := writeZip(t, map[string]string{
		"a/b/export.xml": "<deep/>",
		"export.xml":     "<top/>",
	})
	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "<top/>", string(s.Bytes()))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.xml"), Options{})
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeZip(t, map[string]string{"readme.txt": "nothing here"})
	_, err = Open(path, Options{})
	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.NotErrorIs(t, err, ErrIO)
}

func TestOpen_CustomSuffix(t *testing.T) {
	path := writeZip(t, map[string]string{"dump/data.xml": doc})
	s, err := Open(path, Options{MemberSuffix: "data.xml"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, doc, string(s.Bytes()))
}

func TestOpen_ZipHeaderSizeNotTrusted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "export.xml",
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE([]byte(doc)),
		CompressedSize64:   uint64(len(doc)),
		UncompressedSize64: 1 << 62,
	})
	require.NoError(t, err)
	_, err = io.WriteString(w, doc)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	assert.NotPanics(t, func() {
		_, err = Open(path, Options{})
	})
	assert.ErrorIs(t, err, ErrIO)
}
