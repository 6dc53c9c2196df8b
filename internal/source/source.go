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

// Package source opens the markup document a run reads from.
//
// A plain file is memory mapped. A zip archive must hold a member whose name
// ends in the configured suffix; that member is either read fully into
// memory or, in stream mode, decompressed on demand.
package source

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrMemberNotFound is returned when a zip input has no member with the
	// expected name suffix.
	ErrMemberNotFound = errors.New("export member not found in archive")

	// ErrIO wraps any failure to read the input.
	ErrIO = errors.New("input read failed")
)

// DefaultMemberSuffix matches the document inside an Apple Health export.zip.
const DefaultMemberSuffix = "export.xml"

var zipMagic = []byte("PK\x03\x04")

// maxPregrow caps how much memory the size recorded in a zip header may
// reserve up front. Larger members grow the buffer as they are read.
const maxPregrow = 1 << 30

// Options control how an input is opened.
type Options struct {
	// Stream decompresses a zip member on demand instead of reading it into
	// memory, and reads plain files sequentially instead of mapping them.
	Stream bool

	// MemberSuffix selects the zip member. Defaults to DefaultMemberSuffix.
	MemberSuffix string
}

// Source is an opened input. Exactly one of Bytes or Reader is usable,
// depending on Streaming.
type Source struct {
	name    string
	member  string
	size    int64
	data    []byte
	stream  io.Reader
	closers []func() error
}

// Open opens path. Zip archives are recognised by content, not extension.
func Open(path string, opts Options) (*Source, error) {
	if opts.MemberSuffix == "" {
		opts.MemberSuffix = DefaultMemberSuffix
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}

	isZip, err := sniffZip(f)
	if err != nil {
		_ = f.Close()
		return nil, ioErr("read", path, err)
	}

	if isZip {
		_ = f.Close()
		return openZip(path, opts)
	}
	return openPlain(path, f, opts)
}

func sniffZip(f *os.File) (bool, error) {
	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	return bytes.Equal(head[:n], zipMagic), nil
}

func openPlain(path string, f *os.File, opts Options) (*Source, error) {
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioErr("stat", path, err)
	}
	s := &Source{name: path, size: st.Size()}

	if opts.Stream {
		s.stream = f
		s.closers = append(s.closers, f.Close)
		return s, nil
	}

	data, unmap, err := mmapFile(f, st.Size())
	// The mapping stays valid after the descriptor is closed.
	_ = f.Close()
	if err != nil {
		return nil, ioErr("mmap", path, err)
	}
	s.data = data
	s.closers = append(s.closers, unmap)
	return s, nil
}

func openZip(path string, opts Options) (*Source, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, ioErr("open archive", path, err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	zf := findMember(zr.File, opts.MemberSuffix)
	if zf == nil {
		_ = zr.Close()
		return nil, fmt.Errorf("%w: no member ending in %q in %s", ErrMemberNotFound, opts.MemberSuffix, path)
	}

	rc, err := zf.Open()
	if err != nil {
		_ = zr.Close()
		return nil, ioErr("open member "+zf.Name+" of", path, err)
	}

	s := &Source{name: path, member: zf.Name, size: int64(zf.UncompressedSize64)}
	if opts.Stream {
		s.stream = rc
		s.closers = append(s.closers, rc.Close, zr.Close)
		return s, nil
	}

	var buf bytes.Buffer
	if zf.UncompressedSize64 <= maxPregrow {
		buf.Grow(int(zf.UncompressedSize64))
	}
	_, err = io.Copy(&buf, rc)
	_ = rc.Close()
	_ = zr.Close()
	if err != nil {
		return nil, ioErr("decompress member "+zf.Name+" of", path, err)
	}
	s.data = buf.Bytes()
	return s, nil
}

// findMember picks the shallowest member whose name ends in suffix, so a
// top-level export.xml wins over one nested deeper in the archive.
func findMember(files []*zip.File, suffix string) *zip.File {
	var best *zip.File
	bestDepth := 0
	for _, f := range files {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, suffix) {
			continue
		}
		depth := strings.Count(f.Name, "/")
		if best == nil || depth < bestDepth {
			best, bestDepth = f, depth
		}
	}
	return best
}

func ioErr(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}

// Name is the path that was opened.
func (s *Source) Name() string { return s.name }

// Member is the zip member being read, or "" for a plain file.
func (s *Source) Member() string { return s.member }

// Size is the uncompressed document size in bytes.
func (s *Source) Size() int64 { return s.size }

// Streaming reports whether the document must be consumed through Reader.
func (s *Source) Streaming() bool { return s.stream != nil }

// Bytes returns the whole document. It is nil for a streaming source. The
// slice is invalid after Close.
func (s *Source) Bytes() []byte { return s.data }

// Reader returns a reader over the document. For a materialized source it
// reads from Bytes.
func (s *Source) Reader() io.Reader {
	if s.stream != nil {
		return s.stream
	}
	return bytes.NewReader(s.data)
}

// Close releases the mapping or open archive.
func (s *Source) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	s.data = nil
	s.stream = nil
	return errors.Join(errs...)
}
