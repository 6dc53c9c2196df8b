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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/healthexport/config"
	"github.com/cardinalhq/healthexport/internal/engine"
	"github.com/cardinalhq/healthexport/internal/profile"
)

var (
	scanFlags  pipelineFlags
	scanOutput string
)

var scanCmd = &cobra.Command{
	Use:   "scan <input>",
	Short: "Extract and group an export, then print per-group statistics",
	Long: `Scan runs extraction and grouping like convert but writes no archive.
For each group it prints the record count, the approximate number of
distinct sources, the sort key range and quantiles of numeric values.`,
	Args: cobra.ExactArgs(1),
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
		scanFlags.apply(c, cfg)

		eng, err := engine.New(cfg.EngineOptions())
		if err != nil {
			return err
		}

		groups, sum, err := eng.Collect(ctx, args[0])
		if err != nil {
			return err
		}

		profiles, err := profile.Build(groups)
		if err != nil {
			return fmt.Errorf("profile groups: %w", err)
		}
		if err := profile.Write(c.OutOrStdout(), scanOutput, profiles); err != nil {
			return err
		}
		if !scanFlags.noMetrics {
			return sum.Print(c.ErrOrStderr())
		}
		return nil
	},
}

func init() {
	scanFlags.register(scanCmd.Flags())
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "table", "Output format: table or yaml")
	rootCmd.AddCommand(scanCmd)
}
