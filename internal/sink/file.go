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

package sink

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cardinalhq/healthexport/internal/logctx"
	"github.com/cardinalhq/healthexport/internal/record"
)

const fileBufferSize = 1 << 20

// WriteFile writes the archive to a temporary file next to path and renames
// it into place once complete. On failure path is left untouched.
func (s *Sink) WriteFile(ctx context.Context, groups map[string][]record.Record, path string) (stats Stats, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return stats, fmt.Errorf("create temp output in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err == nil {
			return
		}
		_ = tmp.Close()
		if rerr := os.Remove(tmpName); rerr != nil && !os.IsNotExist(rerr) {
			logctx.FromContext(ctx).Warn("Failed to remove temp output",
				slog.String("path", tmpName),
				slog.Any("error", rerr))
		}
	}()

	bw := bufio.NewWriterSize(tmp, fileBufferSize)
	stats, err = s.Write(ctx, groups, bw)
	if err != nil {
		return stats, err
	}
	if err = bw.Flush(); err != nil {
		return stats, fmt.Errorf("flush output: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return stats, fmt.Errorf("sync output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return stats, fmt.Errorf("close output: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return stats, fmt.Errorf("chmod output: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return stats, fmt.Errorf("rename output into place: %w", err)
	}
	return stats, nil
}
