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
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/flattable/pipeline"
)

func readAllRows(t *testing.T, input string, format Format) []pipeline.Row {
	t.Helper()
	reader, err := NewReader(strings.NewReader(input), format)
	require.NoError(t, err)
	defer func() {
		_ = reader.Close()
	}()

	var rows []pipeline.Row
	for {
		row, err := reader.ReadRow()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func readUntilError(input string, format Format) ([]pipeline.Row, error) {
	reader, err := NewReader(strings.NewReader(input), format)
	if err != nil {
		return nil, err
	}
	var rows []pipeline.Row
	for {
		row, err := reader.ReadRow()
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func TestReader_ReadRow(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		format   Format
		expected []pipeline.Row
	}{
		{
			name:     "plain rows",
			input:    "a,b,c\nd,e,f\n",
			format:   CSVUnix,
			expected: []pipeline.Row{{"a", "b", "c"}, {"d", "e", "f"}},
		},
		{
			name:     "no trailing delimiter",
			input:    "a,b",
			format:   CSVUnix,
			expected: []pipeline.Row{{"a", "b"}},
		},
		{
			name:     "empty input",
			input:    "",
			format:   CSVUnix,
			expected: nil,
		},
		{
			name:     "empty fields",
			input:    ",a,\n",
			format:   CSVUnix,
			expected: []pipeline.Row{{"", "a", ""}},
		},
		{
			name:     "trailing field delimiter at end of stream",
			input:    "a,",
			format:   CSVUnix,
			expected: []pipeline.Row{{"a", ""}},
		},
		{
			name:     "empty lines",
			input:    "\n\nx\n",
			format:   CSVUnix,
			expected: []pipeline.Row{{""}, {""}, {"x"}},
		},
		{
			name:     "quoted delimiters and escaped quotes",
			input:    "\"a,b\",\"c\"\"d\"\n",
			format:   CSVUnix,
			expected: []pipeline.Row{{"a,b", `c"d`}},
		},
		{
			name:     "row delimiter inside quotes",
			input:    "\"x\ny\",z\nlast",
			format:   CSVUnix,
			expected: []pipeline.Row{{"x\ny", "z"}, {"last"}},
		},
		{
			name:     "empty quoted field",
			input:    "\"\",\"\"",
			format:   CSVUnix,
			expected: []pipeline.Row{{"", ""}},
		},
		{
			name:     "closing quote at end of stream",
			input:    "a,\"b\"",
			format:   CSVUnix,
			expected: []pipeline.Row{{"a", "b"}},
		},
		{
			name:     "tab preset",
			input:    "a\tb c\t\nd\te\tf\n",
			format:   UnquotedTabUnix,
			expected: []pipeline.Row{{"a", "b c", ""}, {"d", "e", "f"}},
		},
		{
			name:  "multi rune delimiters",
			input: "a│b¶\nc│d¶\n",
			format: Format{
				FieldDelimiter: '│',
				QuoteChar:      '"',
				CommentChar:    NoChar,
				RowDelimiters:  []string{"¶\n"},
			},
			expected: []pipeline.Row{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "quoting disabled",
			input: "a\"b,c\n",
			format: Format{
				FieldDelimiter: ',',
				QuoteChar:      NoChar,
				CommentChar:    NoChar,
				RowDelimiters:  []string{"\n"},
			},
			expected: []pipeline.Row{{`a"b`, "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, readAllRows(t, tt.input, tt.format))
		})
	}
}

func TestReader_Comments(t *testing.T) {
	format := CSVUnix
	format.CommentChar = '#'

	tests := []struct {
		name     string
		input    string
		expected []pipeline.Row
	}{
		{
			name:     "leading comments",
			input:    "# header\n  # indented\na,b\n",
			expected: []pipeline.Row{{"a", "b"}},
		},
		{
			name:     "comments between rows",
			input:    "a,b\n#mid\n\t#tabbed\nc,d",
			expected: []pipeline.Row{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "comment at end of stream",
			input:    "a\n# tail",
			expected: []pipeline.Row{{"a"}},
		},
		{
			name:     "leading blanks are kept",
			input:    "  x,y\n",
			expected: []pipeline.Row{{"  x", "y"}},
		},
		{
			name:     "comment character inside a field",
			input:    "a#b,#c\n",
			expected: []pipeline.Row{{"a#b", "#c"}},
		},
		{
			name:     "only comments",
			input:    "#one\n#two\n",
			expected: nil,
		},
		{
			name:     "only blanks",
			input:    "   ",
			expected: []pipeline.Row{{"   "}},
		},
		{
			name:     "quoted comment character",
			input:    "\"#a\",b\n",
			expected: []pipeline.Row{{"#a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, readAllRows(t, tt.input, format))
		})
	}
}

func TestReader_FormatErrors(t *testing.T) {
	crlfOnly := Format{
		FieldDelimiter: ',',
		QuoteChar:      '"',
		CommentChar:    NoChar,
		RowDelimiters:  []string{"\r\n"},
	}

	tests := []struct {
		name    string
		input   string
		format  Format
		row     int64
		message string
	}{
		{
			name:    "quote inside plain field",
			input:   "ok\na\"b\n",
			format:  CSVUnix,
			row:     2,
			message: "illegal quote",
		},
		{
			name:    "unterminated quote",
			input:   "\"abc",
			format:  CSVUnix,
			row:     1,
			message: "unterminated quoted field",
		},
		{
			name:    "text after closing quote",
			input:   "\"a\"x,b\n",
			format:  CSVUnix,
			row:     1,
			message: "after closing quote",
		},
		{
			name:    "incomplete row delimiter",
			input:   "a\rb\r\n",
			format:  crlfOnly,
			row:     1,
			message: "incomplete row delimiter",
		},
		{
			name:    "incomplete row delimiter at end of stream",
			input:   "a,b\r",
			format:  crlfOnly,
			row:     1,
			message: "incomplete row delimiter at end of stream",
		},
		{
			name:    "quote in unquoted tab format",
			input:   "a\tb\n\"c\"\td\n",
			format:  UnquotedTabUnix,
			row:     2,
			message: "not permitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readUntilError(tt.input, tt.format)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)

			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, tt.row, formatErr.Row)
			assert.Contains(t, formatErr.Msg, tt.message)
		})
	}
}

func TestReader_ErrorIsSticky(t *testing.T) {
	reader, err := NewReader(strings.NewReader("a\"b\nc\n"), CSVUnix)
	require.NoError(t, err)

	_, first := reader.ReadRow()
	require.ErrorIs(t, first, ErrFormat)

	_, second := reader.ReadRow()
	assert.Equal(t, first, second)
}

func TestReader_DelimiterDetection(t *testing.T) {
	t.Run("windows", func(t *testing.T) {
		reader, err := NewReader(strings.NewReader("a,b\r\nc,d\r\n"), CSVRFC4180)
		require.NoError(t, err)
		assert.Equal(t, "", reader.RowDelimiter())

		row, err := reader.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, pipeline.Row{"a", "b"}, row)
		assert.Equal(t, "\r\n", reader.RowDelimiter())

		row, err = reader.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, pipeline.Row{"c", "d"}, row)

		_, err = reader.ReadRow()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("unix", func(t *testing.T) {
		reader, err := NewReader(strings.NewReader("a,b\nc,d\n"), CSVRFC4180)
		require.NoError(t, err)

		rows, err := pipeline.ReadAll(context.Background(), reader)
		require.NoError(t, err)
		assert.Equal(t, []pipeline.Row{{"a", "b"}, {"c", "d"}}, rows)
		assert.Equal(t, "\n", reader.RowDelimiter())
		assert.Equal(t, int64(2), reader.RowsRead())
	})

	t.Run("delimiter inside quotes does not lock", func(t *testing.T) {
		reader, err := NewReader(strings.NewReader("\"x\ny\"\r\nz\r\n"), CSVRFC4180)
		require.NoError(t, err)

		row, err := reader.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, pipeline.Row{"x\ny"}, row)
		assert.Equal(t, "\r\n", reader.RowDelimiter())
	})

	t.Run("single candidate is locked up front", func(t *testing.T) {
		reader, err := NewReader(strings.NewReader(""), CSVUnix)
		require.NoError(t, err)
		assert.Equal(t, "\n", reader.RowDelimiter())
	})
}

func TestReader_AcrossBufferRefills(t *testing.T) {
	long := strings.Repeat("ab€", 3000)
	var sb strings.Builder
	var expected []pipeline.Row
	for i := 0; i < 200; i++ {
		sb.WriteString(long)
		sb.WriteString(",\"q,\"\"")
		sb.WriteString(long)
		sb.WriteString("\"\n")
		expected = append(expected, pipeline.Row{long, "q,\"" + long})
	}

	rows := readAllRows(t, sb.String(), CSVUnix)
	require.Len(t, rows, len(expected))
	assert.Equal(t, expected, rows)
}

func TestReader_RowsAreIndependent(t *testing.T) {
	reader, err := NewReader(strings.NewReader("a,b\nc,d\n"), CSVUnix)
	require.NoError(t, err)

	first, err := reader.ReadRow()
	require.NoError(t, err)
	_, err = reader.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, pipeline.Row{"a", "b"}, first)
}

func TestNewReader_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{
			name:   "no row delimiters",
			format: Format{FieldDelimiter: ',', QuoteChar: '"', CommentChar: NoChar},
		},
		{
			name:   "empty row delimiter",
			format: Format{FieldDelimiter: ',', QuoteChar: '"', CommentChar: NoChar, RowDelimiters: []string{""}},
		},
		{
			name:   "quote equals field delimiter",
			format: Format{FieldDelimiter: ',', QuoteChar: ',', CommentChar: NoChar, RowDelimiters: []string{"\n"}},
		},
		{
			name:   "comment equals field delimiter",
			format: Format{FieldDelimiter: ',', QuoteChar: '"', CommentChar: ',', RowDelimiters: []string{"\n"}},
		},
		{
			name:   "row delimiter starts with field delimiter",
			format: Format{FieldDelimiter: ',', QuoteChar: '"', CommentChar: NoChar, RowDelimiters: []string{",\n"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewReader(strings.NewReader("a\n"), tt.format)
			assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
			assert.Nil(t, reader)
		})
	}
}

type closeTracker struct {
	io.Reader
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func TestReader_CloseAndContext(t *testing.T) {
	src := &closeTracker{Reader: strings.NewReader("a\nb\n")}
	reader, err := NewReader(src, CSVUnix)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	row, err := reader.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Row{"a"}, row)

	cancel()
	_, err = reader.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())
	assert.Equal(t, 1, src.closed)

	_, err = reader.ReadRow()
	assert.ErrorIs(t, err, io.EOF)
}
