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
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
)

// Zip writes a standard zip archive.
type Zip struct {
	storeThreshold int
	modified       time.Time
}

var _ Format = (*Zip)(nil)

// NewZip returns the zip format.
func NewZip(opts Options) *Zip {
	if opts.StoreThreshold <= 0 {
		opts.StoreThreshold = DefaultStoreThreshold
	}
	return &Zip{storeThreshold: opts.StoreThreshold, modified: opts.Modified}
}

func (*Zip) Name() string      { return "zip" }
func (*Zip) Extension() string { return "zip" }

// flateWriters pools deflate compressors. Building one allocates several
// hundred kilobytes of tables.
var flateWriters = sync.Pool{
	New: func() any {
		w, _ := flate.NewWriter(io.Discard, flate.DefaultCompression)
		return w
	},
}

type pooledFlate struct {
	*flate.Writer
}

func (p pooledFlate) Close() error {
	err := p.Writer.Close()
	flateWriters.Put(p.Writer)
	return err
}

func newFlate(w io.Writer) (io.WriteCloser, error) {
	fw := flateWriters.Get().(*flate.Writer)
	fw.Reset(w)
	return pooledFlate{fw}, nil
}

func (z *Zip) Pack(name string, data []byte) ([]byte, error) {
	method := zip.Store
	if len(data) >= z.storeThreshold {
		method = zip.Deflate
	}

	var buf bytes.Buffer
	if method == zip.Deflate {
		buf.Grow(len(data)/3 + 256)
	} else {
		buf.Grow(len(data) + 256)
	}

	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, newFlate)

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: z.modified,
	})
	if err != nil {
		return nil, fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("write zip entry %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish zip entry %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (z *Zip) NewMerger(w io.Writer) Merger {
	return &zipMerger{zw: zip.NewWriter(w)}
}

type zipMerger struct {
	zw *zip.Writer
}

// Append copies the entries of sub without recompressing them.
func (m *zipMerger) Append(sub []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(sub), int64(len(sub)))
	if err != nil {
		return fmt.Errorf("open sub-container: %w", err)
	}
	for _, f := range zr.File {
		if err := m.zw.Copy(f); err != nil {
			return fmt.Errorf("copy entry %s: %w", f.Name, err)
		}
	}
	return nil
}

func (m *zipMerger) Close() error {
	return m.zw.Close()
}
