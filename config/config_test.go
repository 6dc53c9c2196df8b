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

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/healthexport/internal/source"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Extract.Workers)
	assert.Equal(t, 2*1024*1024, cfg.Extract.ChunkSize)
	assert.False(t, cfg.Extract.Stream)
	assert.Equal(t, "zip", cfg.Output.Format)
	assert.Equal(t, "csv", cfg.Output.Table)
	assert.Equal(t, source.DefaultMemberSuffix, cfg.Input.MemberSuffix)
	assert.Empty(t, cfg.Input.SkipElements)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HEALTHEXPORT_EXTRACT_WORKERS", "3")
	t.Setenv("HEALTHEXPORT_EXTRACT_STREAM", "true")
	t.Setenv("HEALTHEXPORT_EXTRACT_MAX_DECODE_ERRORS", "42")
	t.Setenv("HEALTHEXPORT_SINK_STORE_THRESHOLD", "100")
	t.Setenv("HEALTHEXPORT_OUTPUT_FORMAT", "tar.zst")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Extract.Workers)
	assert.True(t, cfg.Extract.Stream)
	assert.Equal(t, int64(42), cfg.Extract.MaxDecodeErrors)
	assert.Equal(t, 100, cfg.Sink.StoreThreshold)
	assert.Equal(t, "tar.zst", cfg.Output.Format)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Group.Workers)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "healthexport.yaml"), []byte("group:\n  workers: 7\nsink:\n  merge_queue: 9\ninput:\n  skip_elements: [HealthData, MetadataEntry]\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Group.Workers)
	assert.Equal(t, 9, cfg.Sink.MergeQueue)
	assert.Equal(t, []string{"HealthData", "MetadataEntry"}, cfg.EngineOptions().SkipElements)
}

func TestSetThreads(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.SetThreads(0)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Sink.Workers)

	cfg.SetThreads(5)
	opts := cfg.EngineOptions()
	assert.Equal(t, 5, opts.Extract.Workers)
	assert.Equal(t, 5, opts.Group.Workers)
	assert.Equal(t, 5, opts.Sink.Workers)
	assert.Equal(t, "zip", opts.Format)
}
