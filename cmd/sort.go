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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/flattable/internal/extsort"
	"github.com/cardinalhq/flattable/pipeline"
)

type sortParams struct {
	file    string
	columns []int
	numeric bool
}

func init() {
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort a flat file by one or more columns",
		RunE: func(c *cobra.Command, _ []string) error {
			file, _ := c.Flags().GetString("file")
			columnList, _ := c.Flags().GetString("columns")
			numeric, _ := c.Flags().GetBool("numeric")

			columns, err := pipeline.ParseColumns(columnList)
			if err != nil {
				return fmt.Errorf("--columns: %w", err)
			}
			p := sortParams{file: file, columns: columns, numeric: numeric}
			return runCommand(c, "sort", func(ctx context.Context, s *settings) error {
				return runSort(ctx, s, p, c.OutOrStdout())
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().String("file", "", "Flat file to sort")
	cmd.Flags().String("columns", "0", "Comma separated column indices to sort by")
	cmd.Flags().Bool("numeric", false, "Compare numeric values as numbers")
	mustMarkRequired(cmd, "file")
}

func runSort(ctx context.Context, s *settings, p sortParams, stdout io.Writer) error {
	spec := pipeline.SortSpec{Columns: p.columns}
	if p.numeric {
		spec.Compare = pipeline.NumericCompare
	}
	opts, err := s.sortOptions()
	if err != nil {
		return err
	}

	input, err := openInput(p.file, s.format)
	if err != nil {
		return err
	}
	sorted, err := extsort.Sort(ctx, input, spec.Comparator(), opts...)
	if err != nil {
		_ = input.Close()
		return fmt.Errorf("failed to sort %s: %w", p.file, err)
	}
	stats := sorted.Stats()
	slog.Debug("Sorted file",
		slog.String("file", p.file),
		slog.Int64("rows", stats.Rows),
		slog.Int("chunks", stats.Chunks),
		slog.Int("spilledChunks", stats.SpilledChunks),
		slog.Int64("spilledBytes", stats.SpilledBytes))
	return writeOutput(ctx, s, stdout, sorted)
}
