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

	"github.com/cardinalhq/flattable/internal/tableops"
)

type subtractParams struct {
	minuend, subtrahend sideParams
}

func init() {
	cmd := &cobra.Command{
		Use:   "subtract",
		Short: "Remove rows whose key appears in another flat file",
		Long: `Writes the minuend rows whose key columns do not match any subtrahend row.
Inputs not marked as sorted are sorted on their key columns first.`,
		RunE: func(c *cobra.Command, _ []string) error {
			minuend, err := sideFromFlags(c, "minuend")
			if err != nil {
				return err
			}
			subtrahend, err := sideFromFlags(c, "subtrahend")
			if err != nil {
				return err
			}
			p := subtractParams{minuend: minuend, subtrahend: subtrahend}
			return runCommand(c, "subtract", func(ctx context.Context, s *settings) error {
				return runSubtract(ctx, s, p, c.OutOrStdout())
			})
		},
	}

	rootCmd.AddCommand(cmd)
	addSideFlags(cmd, "minuend")
	addSideFlags(cmd, "subtrahend")
}

func runSubtract(ctx context.Context, s *settings, p subtractParams, stdout io.Writer) error {
	opts, err := s.sortOptions()
	if err != nil {
		return err
	}
	minuend, subtrahend, err := openSides(p.minuend, p.subtrahend, s.format)
	if err != nil {
		return err
	}

	sub, err := tableops.NewSubtract(ctx, minuend, subtrahend, opts...)
	if err != nil {
		_ = minuend.Reader.Close()
		_ = subtrahend.Reader.Close()
		return fmt.Errorf("failed to subtract %s from %s: %w", p.subtrahend.file, p.minuend.file, err)
	}
	return writeOutput(ctx, s, stdout, sub)
}
