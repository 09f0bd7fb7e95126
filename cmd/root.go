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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/flattable/internal/helpers"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flattable",
	Short: "Sort, join and subtract delimited flat files",
	Long: `Streaming relational operations over character delimited files.
Inputs larger than memory are sorted with temporary spill files, which are
removed when the command finishes.`,
	SilenceUsage: true,
}

func init() {
	addSharedFlags(rootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if n := helpers.DefaultTempRegistry.Len(); n > 0 {
		slog.Warn("Removing leftover spill files", slog.Int("count", n))
	}
	if cleanupErr := helpers.DefaultTempRegistry.CleanupAll(); cleanupErr != nil {
		slog.Warn("Failed to remove temp files", slog.Any("error", cleanupErr))
	}
	if err != nil {
		os.Exit(1)
	}
}
