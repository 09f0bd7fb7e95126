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


package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cardinalhq/flattable/internal/flatfile"
	"github.com/cardinalhq/flattable/pipeline"
)

// FormatConfig selects a flat file format as plain strings. Preset names a
// starting format; any other non-empty field overrides part of it.
type FormatConfig struct {
	Preset         string `mapstructure:"preset"`
	FieldDelimiter string `mapstructure:"field_delimiter"`
	// Quote and Comment accept "none" to disable the character.
	Quote   string `mapstructure:"quote"`
	Comment string `mapstructure:"comment"`
	// RowDelimiters is a "|" separated list using Go escapes, e.g. `\r\n|\n`.
	RowDelimiters string `mapstructure:"row_delimiters"`
}

func DefaultFormatConfig() FormatConfig {
	return FormatConfig{Preset: "csv"}
}

// Resolve builds and validates the format.
func (c FormatConfig) Resolve() (flatfile.Format, error) {
	format, err := flatfile.PresetByName(c.Preset)
	if err != nil {
		return flatfile.Format{}, err
	}

	if c.FieldDelimiter != "" {
		r, err := flatfile.ParseChar(c.FieldDelimiter)
		if err != nil {
			return flatfile.Format{}, fmt.Errorf("field delimiter: %w", err)
		}
		format.FieldDelimiter = r
	}
	if c.Quote != "" {
		r, err := flatfile.ParseChar(c.Quote)
		if err != nil {
			return flatfile.Format{}, fmt.Errorf("quote: %w", err)
		}
		format.QuoteChar = r
		format.ForbidQuote = false
	}
	if c.Comment != "" {
		r, err := flatfile.ParseChar(c.Comment)
		if err != nil {
			return flatfile.Format{}, fmt.Errorf("comment: %w", err)
		}
		format.CommentChar = r
	}
	if c.RowDelimiters != "" {
		var delims []string
		for _, part := range strings.Split(c.RowDelimiters, "|") {
			d, err := strconv.Unquote(`"` + part + `"`)
			if err != nil {
				return flatfile.Format{}, fmt.Errorf("%w: bad row delimiter %q", pipeline.ErrInvalidConfig, part)
			}
			delims = append(delims, d)
		}
		format.RowDelimiters = delims
	}

	if err := format.Validate(); err != nil {
		return flatfile.Format{}, err
	}
	return format, nil
}
