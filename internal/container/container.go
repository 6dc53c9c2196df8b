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

// Package container builds the output archive.
//
// Each group is packed on its own into a self-contained sub-container so the
// expensive compression runs in parallel. A single Merger then appends the
// sub-containers, already compressed, into the final archive.
package container

import (
	"fmt"
	"io"
	"time"
)

// DefaultStoreThreshold is the entry size below which zip entries are stored
// uncompressed.
const DefaultStoreThreshold = 4 * 1024

// Format is an output archive format.
type Format interface {
	// Name is the format selector, e.g. "zip".
	Name() string

	// Extension is the archive file extension without a leading dot.
	Extension() string

	// Pack wraps data as a single entry called name. It is safe to call
	// from many goroutines.
	Pack(name string, data []byte) ([]byte, error)

	// NewMerger returns a Merger writing the final archive to w.
	NewMerger(w io.Writer) Merger
}

// Merger appends sub-containers produced by Pack of the same Format.
type Merger interface {
	Append(sub []byte) error

	// Close finishes the archive. It does not close the underlying writer.
	Close() error
}

// Options are shared by all formats.
type Options struct {
	// StoreThreshold applies to zip: smaller entries are stored, larger
	// ones deflated. Zero uses DefaultStoreThreshold.
	StoreThreshold int

	// Modified is the timestamp written on every entry. The zero time
	// leaves it unset.
	Modified time.Time
}

// Names lists the supported format selectors.
func Names() []string { return []string{"zip", "tar.zst"} }

// ByName returns the format registered under name.
func ByName(name string, opts Options) (Format, error) {
	switch name {
	case "", "zip":
		return NewZip(opts), nil
	case "tar.zst", "tzst":
		return NewTarZstd(opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q, expected one of %v", name, Names())
	}
}
