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
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/flattable/pipeline"
)

type previewParams struct {
	file   string
	rows   int
	header bool
}

func init() {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the first rows of a flat file as a table",
		RunE: func(c *cobra.Command, _ []string) error {
			file, _ := c.Flags().GetString("file")
			rows, _ := c.Flags().GetInt("rows")
			header, _ := c.Flags().GetBool("header")
			if rows <= 0 {
				return fmt.Errorf("%w: --rows must be positive", pipeline.ErrInvalidConfig)
			}
			p := previewParams{file: file, rows: rows, header: header}
			return runCommand(c, "preview", func(ctx context.Context, s *settings) error {
				return runPreview(ctx, s, p, c.OutOrStdout())
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().String("file", "", "Flat file to preview")
	cmd.Flags().Int("rows", 20, "Number of data rows to show")
	cmd.Flags().Bool("header", false, "Use the first row as column names")
	mustMarkRequired(cmd, "file")
}

func runPreview(ctx context.Context, s *settings, p previewParams, stdout io.Writer) error {
	reader, err := openInput(p.file, s.format)
	if err != nil {
		return err
	}
	defer func() {
		_ = reader.Close()
	}()

	want := p.rows
	if p.header {
		want++
	}
	var rows []pipeline.Row
	width := 0
	for len(rows) < want {
		row, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p.file, err)
		}
		rows = append(rows, row)
		width = max(width, len(row))
	}

	var header []string
	if p.header && len(rows) > 0 {
		header = padRow(rows[0], width)
		rows = rows[1:]
	} else {
		header = make([]string, width)
		for i := range header {
			header[i] = strconv.Itoa(i)
		}
	}

	table := tablewriter.NewWriter(stdout)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	for _, row := range rows {
		table.Append(padRow(row, width))
	}
	table.Render()
	return nil
}

// padRow extends row with empty fields so every table line has width cells.
func padRow(row pipeline.Row, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
