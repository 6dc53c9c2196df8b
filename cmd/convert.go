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
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/healthexport/config"
	"github.com/cardinalhq/healthexport/internal/container"
	"github.com/cardinalhq/healthexport/internal/engine"
)

var (
	convertFlags  pipelineFlags
	convertFormat string
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> [output]",
	Short: "Convert an export into an archive of per-type tables",
	Long: `Convert reads export.xml, or an export.zip holding it, and writes one CSV
per record type into a zip (or tar.zst) archive. Without an output path the
archive is written next to the input.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(c *cobra.Command, args []string) error {
		ctx, shutdown, err := setupTelemetry(serviceName)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(); err != nil {
				slog.Error("Error shutting down telemetry", slog.Any("error", err))
			}
		}()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		convertFlags.apply(c, cfg)
		if c.Flags().Changed("format") {
			cfg.Output.Format = convertFormat
		}

		eng, err := engine.New(cfg.EngineOptions())
		if err != nil {
			return err
		}

		input := args[0]
		output := defaultOutput(input, cfg.Output.Format)
		if len(args) == 2 {
			output = args[1]
		}

		sum, err := eng.Convert(ctx, input, output)
		if err != nil {
			return err
		}
		if !convertFlags.noMetrics {
			return sum.Print(c.OutOrStdout())
		}
		return nil
	},
}

func init() {
	convertFlags.register(convertCmd.Flags())
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "zip",
		fmt.Sprintf("Output archive format, one of %v", container.Names()))
	rootCmd.AddCommand(convertCmd)
}

// defaultOutput places the archive beside input, named after it with the
// format's extension.
func defaultOutput(input, format string) string {
	ext := "zip"
	if f, err := container.ByName(format, container.Options{}); err == nil {
		ext = f.Extension()
	}
	base := filepath.Base(input)
	for _, suffix := range []string{".zip", ".xml"} {
		base = strings.TrimSuffix(base, suffix)
	}
	return filepath.Join(filepath.Dir(input), base+"_tables."+ext)
}
