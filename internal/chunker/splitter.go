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
	"errors"
	"fmt"
	"io"
)

// DefaultReadSize is how much the Splitter asks the underlying reader for at
// a time. It is also the granularity of the lookahead window past the target.
const DefaultReadSize = 64 * 1024

// Splitter cuts an io.Reader into boundary-safe chunks without holding the
// whole stream in memory. At most one chunk plus the lookahead needed to find
// the next boundary is buffered.
type Splitter struct {
	r        io.Reader
	target   int
	readSize int
	buf      []byte
	offset   int64
	eof      bool
}

// NewSplitter returns a Splitter that aims for chunks of target bytes.
func NewSplitter(r io.Reader, target int) *Splitter {
	if target <= 0 {
		target = DefaultChunkSize
	}
	return &Splitter{
		r:        r,
		target:   target,
		readSize: DefaultReadSize,
		buf:      make([]byte, 0, target+DefaultReadSize),
	}
}

// Offset returns the stream offset of the next chunk Next will return.
func (s *Splitter) Offset() int64 { return s.offset }

// Next returns the next chunk. The caller owns the returned slice. After the
// last chunk, Next returns io.EOF. Any other error comes from the underlying
// reader and is not recoverable.
func (s *Splitter) Next() ([]byte, error) {
	for {
		if len(s.buf) >= s.target {
			if b, ok := FindBoundaryAfter(s.buf, s.target); ok {
				return s.cut(b), nil
			}
		}

		if s.eof {
			if len(s.buf) == 0 {
				return nil, io.EOF
			}
			return s.cut(len(s.buf)), nil
		}

		if err := s.fill(); err != nil {
			return nil, err
		}
	}
}

func (s *Splitter) fill() error {
	if cap(s.buf)-len(s.buf) < s.readSize {
		grown := make([]byte, len(s.buf), len(s.buf)+s.readSize+s.target)
		copy(grown, s.buf)
		s.buf = grown
	}
	n, err := s.r.Read(s.buf[len(s.buf) : len(s.buf)+s.readSize])
	s.buf = s.buf[:len(s.buf)+n]
	if errors.Is(err, io.EOF) {
		s.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read at offset %d: %w", s.offset+int64(len(s.buf)), err)
	}
	return nil
}

// cut hands the first n bytes of the buffer to the caller and starts a fresh
// buffer holding the remainder.
func (s *Splitter) cut(n int) []byte {
	chunk := s.buf[:n:n]
	rest := s.buf[n:]
	s.buf = make([]byte, len(rest), max(len(rest), s.target)+s.readSize)
	copy(s.buf, rest)
	s.offset += int64(n)
	return chunk
}
