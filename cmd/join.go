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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/flattable/internal/flatfile"
	"github.com/cardinalhq/flattable/internal/tableops"
	"github.com/cardinalhq/flattable/pipeline"
)

// sideParams describes one input file of a two-input command.
type sideParams struct {
	file    string
	columns []int
	sorted  bool
}

type joinParams struct {
	left, right sideParams
}

func init() {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Inner join two flat files on key columns",
		Long: `Writes each left row followed by the matching right row without its key
columns. Inputs not marked as sorted are sorted on their key columns first.`,
		RunE: func(c *cobra.Command, _ []string) error {
			left, err := sideFromFlags(c, "left")
			if err != nil {
				return err
			}
			right, err := sideFromFlags(c, "right")
			if err != nil {
				return err
			}
			p := joinParams{left: left, right: right}
			return runCommand(c, "join", func(ctx context.Context, s *settings) error {
				return runJoin(ctx, s, p, c.OutOrStdout())
			})
		},
	}

	rootCmd.AddCommand(cmd)
	addSideFlags(cmd, "left")
	addSideFlags(cmd, "right")
}

func addSideFlags(c *cobra.Command, side string) {
	c.Flags().String(side, "", fmt.Sprintf("The %s input file", side))
	c.Flags().String(side+"-columns", "0", fmt.Sprintf("Comma separated key column indices of the %s input", side))
	c.Flags().Bool(side+"-sorted", false, fmt.Sprintf("The %s input is already sorted on its key columns", side))
	mustMarkRequired(c, side)
}

func sideFromFlags(c *cobra.Command, side string) (sideParams, error) {
	file, _ := c.Flags().GetString(side)
	columnList, _ := c.Flags().GetString(side + "-columns")
	sorted, _ := c.Flags().GetBool(side + "-sorted")

	columns, err := pipeline.ParseColumns(columnList)
	if err != nil {
		return sideParams{}, fmt.Errorf("--%s-columns: %w", side, err)
	}
	return sideParams{file: file, columns: columns, sorted: sorted}, nil
}

// openSides opens both inputs, closing the first if the second fails.
func openSides(a, b sideParams, format flatfile.Format) (tableops.Input, tableops.Input, error) {
	readerA, err := openInput(a.file, format)
	if err != nil {
		return tableops.Input{}, tableops.Input{}, err
	}
	readerB, err := openInput(b.file, format)
	if err != nil {
		_ = readerA.Close()
		return tableops.Input{}, tableops.Input{}, err
	}
	return tableops.Input{Reader: readerA, Columns: a.columns, PreSorted: a.sorted},
		tableops.Input{Reader: readerB, Columns: b.columns, PreSorted: b.sorted},
		nil
}

func runJoin(ctx context.Context, s *settings, p joinParams, stdout io.Writer) error {
	opts, err := s.sortOptions()
	if err != nil {
		return err
	}
	left, right, err := openSides(p.left, p.right, s.format)
	if err != nil {
		return err
	}

	join, err := tableops.NewJoin(ctx, left, right, opts...)
	if err != nil {
		// flat file readers tolerate a second Close
		_ = left.Reader.Close()
		_ = right.Reader.Close()
		return fmt.Errorf("failed to join %s and %s: %w", p.left.file, p.right.file, err)
	}
	return writeOutput(ctx, s, stdout, join)
}
