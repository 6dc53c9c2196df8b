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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/cardinalhq/healthexport/internal/helpers"
	"github.com/cardinalhq/healthexport/internal/idgen"
	"github.com/cardinalhq/healthexport/internal/logctx"
)

// setupTelemetry configures logging, and OpenTelemetry export when enabled.
// Logs go to stderr; stdout carries command output. The returned context is
// cancelled on SIGINT/SIGTERM and carries the run logger.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	runID := idgen.DefaultFlakeGenerator.NextID()

	// Catch signals to stop the process as gracefully as possible.
	doneCtx, doneCancel := handleSignals(context.Background())

	f := func() error {
		doneCancel()
		return nil
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose || helpers.EnvSet("DEBUG", "HEALTHEXPORT_DEBUG") {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if helpers.EnvSet("OTEL_SERVICE_NAME") && helpers.EnvEnabled("ENABLE_OTLP_TELEMETRY") {
		handler = slogmulti.Fanout(handler, otelslog.NewHandler(servicename))

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return context.Background(), nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			slog.Warn("failed to start runtime metrics", slog.Any("error", err))
		}

		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", slog.Any("error", err))
		}

		f = func() error {
			defer doneCancel()
			slog.Debug("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	}

	logger := slog.New(handler).With(
		slog.String("service", servicename),
		slog.Int64("runID", runID),
	)
	slog.SetDefault(logger)
	if opts.Level == slog.LevelDebug {
		logger.Debug("Debug logging enabled")
	}

	return logctx.WithLogger(doneCtx, logger), f, nil
}
