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

package flatfile

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cardinalhq/flattable/pipeline"
)

// NoChar disables the quote or comment character of a Format.
const NoChar rune = -1

// Format describes how a flat file is delimited.
type Format struct {
	FieldDelimiter rune
	// QuoteChar encloses fields that contain delimiters. NoChar disables quoting.
	QuoteChar rune
	// ForbidQuote makes QuoteChar illegal in every field. The
	// character is recognized only so that it can be rejected.
	ForbidQuote bool
	// CommentChar starts a comment line when it is the first non-blank
	// character of a row. NoChar disables comments.
	CommentChar rune
	// RowDelimiters lists the accepted row delimiters. With more than one the
	// reader detects which one the stream uses.
	RowDelimiters []string
}

var (
	// CSVRFC4180 is comma separated with double quotes, accepting CRLF or LF rows.
	CSVRFC4180 = Format{
		FieldDelimiter: ',',
		QuoteChar:      '"',
		CommentChar:    NoChar,
		RowDelimiters:  []string{"\r\n", "\n"},
	}

	// CSVUnix is comma separated with double quotes and LF rows only.
	CSVUnix = Format{
		FieldDelimiter: ',',
		QuoteChar:      '"',
		CommentChar:    NoChar,
		RowDelimiters:  []string{"\n"},
	}

	// UnquotedTabUnix is tab separated with LF rows. Quotes are not permitted.
	UnquotedTabUnix = Format{
		FieldDelimiter: '\t',
		QuoteChar:      '"',
		ForbidQuote:    true,
		CommentChar:    NoChar,
		RowDelimiters:  []string{"\n"},
	}
)

// PresetByName returns a copy of a named preset: "csv", "csv-unix" or "tsv".
func PresetByName(name string) (Format, error) {
	var f Format
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv", "rfc4180":
		f = CSVRFC4180
	case "csv-unix", "unix":
		f = CSVUnix
	case "tsv", "tab":
		f = UnquotedTabUnix
	default:
		return Format{}, fmt.Errorf("%w: unknown format preset %q", pipeline.ErrInvalidConfig, name)
	}
	f.RowDelimiters = slices.Clone(f.RowDelimiters)
	return f, nil
}

// ParseChar turns a configuration value into a format character. The empty
// string and "none" give NoChar; "tab" and the two character escape \t give a tab.
func ParseChar(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return NoChar, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return NoChar, fmt.Errorf("%w: %q is not a single character", pipeline.ErrInvalidConfig, s)
	}
	c, _ := utf8.DecodeRuneInString(s)
	return c, nil
}

// Validate reports whether the format can be parsed unambiguously.
func (f Format) Validate() error {
	if f.FieldDelimiter < 0 {
		return fmt.Errorf("%w: a field delimiter is required", pipeline.ErrInvalidConfig)
	}
	if len(f.RowDelimiters) == 0 {
		return fmt.Errorf("%w: at least one row delimiter is required", pipeline.ErrInvalidConfig)
	}
	if f.QuoteChar != NoChar && f.QuoteChar == f.FieldDelimiter {
		return fmt.Errorf("%w: quote and field delimiter are both %q", pipeline.ErrInvalidConfig, f.QuoteChar)
	}
	if f.CommentChar != NoChar && (f.CommentChar == f.FieldDelimiter || f.CommentChar == f.QuoteChar) {
		return fmt.Errorf("%w: comment character %q collides with the delimiter or quote", pipeline.ErrInvalidConfig, f.CommentChar)
	}
	for _, d := range f.RowDelimiters {
		if d == "" {
			return fmt.Errorf("%w: empty row delimiter", pipeline.ErrInvalidConfig)
		}
		first, _ := utf8.DecodeRuneInString(d)
		if first == f.FieldDelimiter || (f.QuoteChar != NoChar && first == f.QuoteChar) {
			return fmt.Errorf("%w: row delimiter %q starts with the field delimiter or quote", pipeline.ErrInvalidConfig, d)
		}
	}
	return nil
}

func (f Format) quoting() bool {
	return f.QuoteChar != NoChar && !f.ForbidQuote
}
