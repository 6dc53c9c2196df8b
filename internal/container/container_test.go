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

package container

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	data string
}

func readZip(t *testing.T, b []byte) ([]entry, []uint16) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	var out []entry
	var methods []uint16
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out = append(out, entry{f.Name, string(data)})
		methods = append(methods, f.Method)
	}
	return out, methods
}

func readTarZstd(t *testing.T, b []byte) []entry {
	t.Helper()
	zr, err := zstd.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer zr.Close()

	tr := tar.NewReader(zr)
	var out []entry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		out = append(out, entry{hdr.Name, string(data)})
	}
	return out
}

func build(t *testing.T, f Format, entries []entry) []byte {
	t.Helper()
	var out bytes.Buffer
	m := f.NewMerger(&out)
	for _, e := range entries {
		sub, err := f.Pack(e.name, []byte(e.data))
		require.NoError(t, err)
		require.NoError(t, m.Append(sub))
	}
	require.NoError(t, m.Close())
	return out.Bytes()
}

var fixture = []entry{
	{"ActivitySummary.csv", "dateComponents\n2024-01-01\n"},
	{"HeartRate.csv", strings.Repeat("72,count/min,2024-01-01\n", 500)},
	{"StepCount.csv", "value\n10\n"},
}

func TestZip_PackAndMerge(t *testing.T) {
	z := NewZip(Options{StoreThreshold: 1024})
	got, methods := readZip(t, build(t, z, fixture))

	assert.Equal(t, fixture, got)
	assert.Equal(t, []uint16{zip.Store, zip.Deflate, zip.Store}, methods)
}

func TestZip_ModifiedTime(t *testing.T) {
	when := time.Date(2024, 5, 6, 7, 8, 10, 0, time.UTC)
	sub, err := NewZip(Options{Modified: when}).Pack("a.csv", []byte("x"))
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(sub), int64(len(sub)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.True(t, when.Equal(zr.File[0].Modified.UTC()), "got %v", zr.File[0].Modified)
}

func TestTarZstd_PackAndMerge(t *testing.T) {
	got := readTarZstd(t, build(t, NewTarZstd(Options{}), fixture))
	assert.Equal(t, fixture, got)
}

func TestFormats_EmptyArchive(t *testing.T) {
	got, _ := readZip(t, build(t, NewZip(Options{}), nil))
	assert.Empty(t, got)
	assert.Empty(t, readTarZstd(t, build(t, NewTarZstd(Options{}), nil)))
}

func TestFormats_ConcurrentPack(t *testing.T) {
	for _, f := range []Format{NewZip(Options{StoreThreshold: 16}), NewTarZstd(Options{})} {
		t.Run(f.Name(), func(t *testing.T) {
			subs := make([][]byte, 32)
			var wg sync.WaitGroup
			for i := range subs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					sub, err := f.Pack(fixture[i%3].name, []byte(fixture[i%3].data))
					assert.NoError(t, err)
					subs[i] = sub
				}()
			}
			wg.Wait()

			for i, sub := range subs {
				assert.Equal(t, subs[i%3], sub, "pack output must not depend on scheduling")
			}
		})
	}
}

func TestZipMerger_RejectsGarbage(t *testing.T) {
	var out bytes.Buffer
	m := NewZip(Options{}).NewMerger(&out)
	assert.Error(t, m.Append([]byte("not a zip")))
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "zip", "tar.zst", "tzst"} {
		_, err := ByName(name, Options{})
		assert.NoError(t, err, name)
	}
	_, err := ByName("7z", Options{})
	assert.Error(t, err)
}
