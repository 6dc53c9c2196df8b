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

// Package xmlchunk decodes the elements of one boundary-safe chunk of markup.
//
// A chunk is a slice of a larger document, so it may open with end tags for
// elements started in an earlier chunk and close with elements that end in a
// later one. The parser therefore works on raw tokens and never checks that
// start and end tags pair up.
package xmlchunk

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/cardinalhq/healthexport/internal/chunker"
	"github.com/cardinalhq/healthexport/internal/record"
)

// Result is the outcome of parsing one chunk.
type Result struct {
	Records []record.Record

	// Elements is the number of start tags seen, including malformed ones
	// the tokenizer could not read.
	Elements int

	// Dropped is the number of malformed elements: rejected by the decoder
	// or unreadable by the tokenizer.
	Dropped int

	// Skipped is the number of elements the decoder chose not to keep.
	Skipped int

	// Truncated is the tokenizer error that stopped parsing early, if any.
	// It is set only when no later element start could be found to resume
	// from. Records decoded before the error are still in Records.
	Truncated error
}

// Parser runs a DecodeFunc over every element in a chunk.
type Parser struct {
	Decode record.DecodeFunc

	// OnDropped, if set, is called for every malformed element.
	OnDropped func(element string, err error)
}

// ParseChunk parses chunk with decode and no drop callback.
func ParseChunk(chunk []byte, decode record.DecodeFunc) Result {
	p := Parser{Decode: decode}
	return p.Parse(chunk)
}

// Parse tokenizes chunk in a single forward pass. It never reads outside
// chunk and never fails as a whole. A decoder error drops one element. A
// tokenizer error drops the element it occurred in and parsing resumes at
// the next element start; only when there is none does the chunk end early.
func (p *Parser) Parse(chunk []byte) Result {
	var res Result
	base := 0
	dec := newDecoder(chunk)

	// lastStart is the chunk offset of the last start tag read successfully.
	lastStart := -1
	var attrs []record.Attr
	for {
		before := base + int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return res
			}
			pos := min(base+int(dec.InputOffset()), len(chunk))
			err = fmt.Errorf("offset %d: %w", pos, err)
			if elemStart := bytes.LastIndexByte(chunk[:pos], '<'); elemStart > lastStart && isStartTag(chunk[elemStart:]) {
				res.Elements++
				res.Dropped++
				if p.OnDropped != nil {
					p.OnDropped(elementName(chunk[elemStart:]), err)
				}
			}
			next, ok := chunker.FindBoundaryAfter(chunk, pos)
			if !ok {
				res.Truncated = err
				return res
			}
			base = next
			dec = newDecoder(chunk[next:])
			continue
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		lastStart = before
		res.Elements++

		attrs = attrs[:0]
		for _, a := range start.Attr {
			attrs = append(attrs, record.Attr{Key: qualified(a.Name), Value: a.Value})
		}

		name := qualified(start.Name)
		rec, err := p.Decode(name, attrs)
		switch {
		case err != nil:
			res.Dropped++
			if p.OnDropped != nil {
				p.OnDropped(name, err)
			}
		case rec == nil:
			res.Skipped++
		default:
			res.Records = append(res.Records, rec)
		}
	}
}

// newDecoder returns a tokenizer that passes unknown entities through as
// text and knows the HTML entity set, so neither ends a chunk.
func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	return dec
}

func isStartTag(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	c := data[1]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// elementName reads the tag name at the start of data, which begins with '<'.
func elementName(data []byte) string {
	end := 1
	for end < len(data) {
		c := data[end]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/' || c == '>' {
			break
		}
		end++
	}
	return string(data[1:end])
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
