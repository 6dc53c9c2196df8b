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
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// tarTrailerSize is the two zero blocks that end a tar stream.
const tarTrailerSize = 2 * 512

// TarZstd writes a zstd-compressed tar. Every sub-container is one zstd
// frame holding one tar entry, and concatenated frames decode as a single
// stream, so merging is a plain append followed by a trailer frame.
type TarZstd struct {
	modified time.Time
}

var _ Format = (*TarZstd)(nil)

// NewTarZstd returns the tar.zst format.
func NewTarZstd(opts Options) *TarZstd {
	return &TarZstd{modified: opts.Modified}
}

func (*TarZstd) Name() string      { return "tar.zst" }
func (*TarZstd) Extension() string { return "tar.zst" }

var (
	zstdEncoder     *zstd.Encoder
	zstdEncoderOnce sync.Once
)

// encoder returns the shared encoder. EncodeAll is safe for concurrent use.
func encoder() *zstd.Encoder {
	zstdEncoderOnce.Do(func() {
		zstdEncoder, _ = zstd.NewWriter(nil,
			zstd.WithZeroFrames(true),
			zstd.WithEncoderLevel(zstd.SpeedDefault),
		)
	})
	return zstdEncoder
}

func (t *TarZstd) Pack(name string, data []byte) ([]byte, error) {
	var raw bytes.Buffer
	raw.Grow(len(data) + 1024)

	tw := tar.NewWriter(&raw)
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  t.modified,
	}
	if hdr.ModTime.IsZero() {
		hdr.ModTime = time.Unix(0, 0)
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("write tar header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return nil, fmt.Errorf("write tar entry %s: %w", name, err)
	}
	// Flush pads the entry to a block boundary. Close would add the trailer,
	// which only the merger writes.
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("pad tar entry %s: %w", name, err)
	}

	return encoder().EncodeAll(raw.Bytes(), make([]byte, 0, raw.Len()/3+64)), nil
}

func (t *TarZstd) NewMerger(w io.Writer) Merger {
	return &tarZstdMerger{w: w}
}

type tarZstdMerger struct {
	w io.Writer
}

func (m *tarZstdMerger) Append(sub []byte) error {
	if _, err := m.w.Write(sub); err != nil {
		return fmt.Errorf("append zstd frame: %w", err)
	}
	return nil
}

func (m *tarZstdMerger) Close() error {
	trailer := encoder().EncodeAll(make([]byte, tarTrailerSize), nil)
	if _, err := m.w.Write(trailer); err != nil {
		return fmt.Errorf("write tar trailer: %w", err)
	}
	return nil
}
