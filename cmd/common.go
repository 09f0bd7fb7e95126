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
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/flattable/config"
	"github.com/cardinalhq/flattable/internal/extsort"
	"github.com/cardinalhq/flattable/internal/flatfile"
	"github.com/cardinalhq/flattable/internal/helpers"
	"github.com/cardinalhq/flattable/internal/idgen"
	"github.com/cardinalhq/flattable/pipeline"
)

// settings is the configuration after flags have been applied.
type settings struct {
	format flatfile.Format
	sort   extsort.Config
	out    string
	// headerComment is written as comment rows ahead of the output rows.
	headerComment string
}

func addSharedFlags(c *cobra.Command) {
	f := c.PersistentFlags()
	f.String("format", "", "Flat file format preset: csv, csv-unix or tsv")
	f.Int("in-memory-limit", 0, "Rows held in memory per sorted chunk")
	f.String("tmp-dir", "", "Directory for spill files")
	f.String("codec", "", "Spill file codec: cbor or gob")
	f.Int("spill-concurrency", 0, "Chunks sorted and spilled in parallel")
	f.String("out", "", "Output file (default stdout)")
	f.String("comment", "", "Comment character, or \"none\"; overrides the preset")
	f.String("header-comment", "", "Text written as comment rows before the output")
}

// loadSettings reads the configuration and applies any flags that were set.
func loadSettings(c *cobra.Command) (*settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := c.Flags()
	if flags.Changed("format") {
		cfg.Format.Preset, _ = flags.GetString("format")
	}
	if flags.Changed("in-memory-limit") {
		cfg.Sort.InMemoryLimit, _ = flags.GetInt("in-memory-limit")
	}
	if flags.Changed("tmp-dir") {
		cfg.Sort.TmpDir, _ = flags.GetString("tmp-dir")
	}
	if flags.Changed("codec") {
		cfg.Sort.Codec, _ = flags.GetString("codec")
	}
	if flags.Changed("spill-concurrency") {
		cfg.Sort.SpillConcurrency, _ = flags.GetInt("spill-concurrency")
	}
	if flags.Changed("comment") {
		cfg.Format.Comment, _ = flags.GetString("comment")
	}
	out, _ := flags.GetString("out")
	headerComment, _ := flags.GetString("header-comment")

	format, err := cfg.Format.Resolve()
	if err != nil {
		return nil, err
	}
	if cfg.Sort.InMemoryLimit <= 0 {
		return nil, fmt.Errorf("%w: in-memory limit must be positive, got %d", pipeline.ErrInvalidConfig, cfg.Sort.InMemoryLimit)
	}
	if headerComment != "" && format.CommentChar == flatfile.NoChar {
		return nil, fmt.Errorf("%w: --header-comment needs a format with a comment character", pipeline.ErrInvalidConfig)
	}
	return &settings{format: format, sort: cfg.Sort, out: out, headerComment: headerComment}, nil
}

func (s *settings) sortOptions() ([]extsort.Option, error) {
	opts, err := s.sort.Options()
	if err != nil {
		return nil, err
	}
	logSpillSpace(s.sort.TmpDir)
	return append(opts, extsort.WithTempRegistry(helpers.DefaultTempRegistry)), nil
}

// runCommand sets up logging and telemetry, loads settings and runs fn.
func runCommand(c *cobra.Command, name string, fn func(context.Context, *settings) error) error {
	ctx, shutdown, err := setupTelemetry(name)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Warn("Failed to shut down telemetry", slog.Any("error", err))
		}
	}()

	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	start := time.Now()
	operationID := idgen.GenerateShortBase32ID()
	slog.Debug("Starting command", slog.String("operationID", operationID))

	ctx, span := tracer.Start(ctx, "flattable."+name, trace.WithAttributes(
		attribute.String("operationID", operationID),
	))
	defer span.End()

	err = fn(ctx, s)
	recordCommand(context.Background(), name, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Command failed",
			slog.String("operationID", operationID),
			slog.Any("error", err))
		return err
	}
	slog.Debug("Command finished",
		slog.String("operationID", operationID),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func openInput(path string, format flatfile.Format) (*flatfile.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	reader, err := flatfile.NewReader(file, format)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return reader, nil
}

// openOutput writes to path, or to stdout when path is empty or "-".
// stdout itself is never closed.
func openOutput(path string, stdout io.Writer, format flatfile.Format) (*flatfile.Writer, error) {
	if path == "" || path == "-" {
		return flatfile.NewWriter(struct{ io.Writer }{stdout}, format)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	writer, err := flatfile.NewWriter(file, format)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return writer, nil
}

// writeOutput drains reader into the configured output and closes both.
func writeOutput(ctx context.Context, s *settings, stdout io.Writer, reader pipeline.Reader) error {
	writer, err := openOutput(s.out, stdout, s.format)
	if err != nil {
		_ = reader.Close()
		return err
	}

	var n int64
	if s.headerComment != "" {
		err = writer.WriteComment(s.headerComment)
	}
	if err == nil {
		n, err = writer.WriteAll(ctx, reader)
	}
	if closeErr := reader.Close(); err == nil {
		err = closeErr
	}
	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	slog.Debug("Wrote rows", slog.Int64("rows", n))
	return nil
}

func logSpillSpace(dir string) {
	if dir == "" {
		dir = os.TempDir()
	}
	usage, err := helpers.DiskUsage(dir)
	if err != nil {
		slog.Debug("Failed to read spill directory usage", slog.String("path", dir), slog.Any("error", err))
		return
	}
	slog.Debug("Spill directory",
		slog.String("path", dir),
		slog.Uint64("freeBytes", usage.FreeBytes),
		slog.Uint64("totalBytes", usage.TotalBytes))
}

func mustMarkRequired(c *cobra.Command, names ...string) {
	for _, name := range names {
		if err := c.MarkFlagRequired(name); err != nil {
			panic(fmt.Errorf("failed to mark %s flag as required: %w", name, err))
		}
	}
}
