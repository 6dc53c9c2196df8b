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

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardinalhq/healthexport/config"
)

// pipelineFlags are shared by every command that reads an export. A flag
// only overrides the loaded configuration when it was set explicitly.
type pipelineFlags struct {
	threads   int
	chunkSize int
	stream    bool
	member    string
	noMetrics bool
}

func (p *pipelineFlags) register(fs *pflag.FlagSet) {
	fs.IntVarP(&p.threads, "threads", "j", 0, "Worker count for every stage (default: number of CPUs)")
	fs.IntVar(&p.chunkSize, "chunk-size", 0, "Target chunk size in bytes")
	fs.BoolVar(&p.stream, "stream", false, "Split the input while reading it instead of loading it whole")
	fs.StringVar(&p.member, "member", "", "Suffix of the document to read inside a zip input")
	fs.BoolVar(&p.noMetrics, "no-metrics", false, "Do not print the run summary")
}

func (p *pipelineFlags) apply(c *cobra.Command, cfg *config.Config) {
	fs := c.Flags()
	if fs.Changed("threads") {
		cfg.SetThreads(p.threads)
	}
	if fs.Changed("chunk-size") {
		cfg.Extract.ChunkSize = p.chunkSize
	}
	if fs.Changed("stream") {
		cfg.Extract.Stream = p.stream
	}
	if fs.Changed("member") {
		cfg.Input.MemberSuffix = p.member
	}
}
