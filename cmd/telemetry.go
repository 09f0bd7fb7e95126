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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/flattable/internal/helpers"
	"github.com/cardinalhq/flattable/internal/idgen"
)

const serviceName = "flattable"

var (
	meter  = otel.Meter("github.com/cardinalhq/flattable")
	tracer = otel.Tracer("github.com/cardinalhq/flattable")

	myInstanceID int64

	commandDuration metric.Float64Histogram
)

func init() {
	m, err := meter.Float64Histogram(
		"flattable.command.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of one flattable command"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create command.duration histogram: %w", err))
	}
	commandDuration = m
}

// setupTelemetry configures slog and, when enabled, OTLP export. The
// returned context is cancelled on SIGINT or SIGTERM. Logs go to stderr
// because stdout carries table data.
func setupTelemetry(command string) (context.Context, func() error, error) {
	myInstanceID = idgen.DefaultFlakeGenerator.NextID()

	doneCtx, doneCancel := handleSignals(context.Background())

	shutdown := func() error {
		doneCancel()
		return nil
	}

	var opts *slog.HandlerOptions
	if helpers.AnyBoolEnv("DEBUG", "FLATTABLE_DEBUG") {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && helpers.GetBoolEnv("ENABLE_OTLP_TELEMETRY", false) {
		slog.SetDefault(slog.New(slogmulti.Fanout(
			slog.NewTextHandler(os.Stderr, opts),
			otelslog.NewHandler(serviceName),
		)).With(
			slog.String("command", command),
			slog.Int64("instanceID", myInstanceID),
		))
		slog.Info("OpenTelemetry exporting enabled")

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			slog.Warn("failed to start runtime metrics", "error", err.Error())
		}

		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", "error", err.Error())
		}

		shutdown = func() error {
			defer doneCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)).With(
			slog.String("command", command),
			slog.Int64("instanceID", myInstanceID),
		))
	}

	return doneCtx, shutdown, nil
}

// recordCommand reports how long a command ran and whether it failed.
func recordCommand(ctx context.Context, command string, start time.Time, err error) {
	commandDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("command", command),
		attribute.Bool("failed", err != nil),
	))
}
