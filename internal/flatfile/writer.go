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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cardinalhq/flattable/pipeline"
)

// Writer encodes rows using a Format. Rows are terminated with the first of
// the format's row delimiters.
type Writer struct {
	out    *bufio.Writer
	closer io.Closer
	format Format

	delimiter   string
	delimStarts []rune
	quote       string
	escaped     string

	rowsWritten int64
	closed      bool
}

// NewWriter creates a Writer. If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	starts := make([]rune, 0, len(format.RowDelimiters))
	for _, d := range format.RowDelimiters {
		c, _ := utf8.DecodeRuneInString(d)
		starts = append(starts, c)
	}

	writer := &Writer{
		out:         bufio.NewWriter(w),
		format:      format,
		delimiter:   format.RowDelimiters[0],
		delimStarts: starts,
	}
	if format.QuoteChar != NoChar {
		writer.quote = string(format.QuoteChar)
		writer.escaped = writer.quote + writer.quote
	}
	if c, ok := w.(io.Closer); ok {
		writer.closer = c
	}
	return writer, nil
}

// WriteRow writes one row. A field that would not read back unchanged is
// quoted; if the format cannot quote it a *FormatError is returned and
// nothing is written.
func (w *Writer) WriteRow(row pipeline.Row) error {
	var sb strings.Builder
	for i, field := range row {
		if i > 0 {
			sb.WriteRune(w.format.FieldDelimiter)
		}
		if !w.needsQuotes(i, field) {
			sb.WriteString(field)
			continue
		}
		if !w.format.quoting() {
			return &FormatError{
				Row: w.rowsWritten + 1,
				Msg: fmt.Sprintf("field %d cannot be written without quoting", i),
			}
		}
		sb.WriteString(w.quote)
		sb.WriteString(strings.ReplaceAll(field, w.quote, w.escaped))
		sb.WriteString(w.quote)
	}
	sb.WriteString(w.delimiter)

	if _, err := w.out.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.rowsWritten++
	return nil
}

// WriteComment writes text as comment lines, one for each line of text,
// each starting with the comment character. A reader of the same format
// skips them. Comment text may not contain the first rune of a row delimiter.
func (w *Writer) WriteComment(text string) error {
	if w.format.CommentChar == NoChar {
		return fmt.Errorf("%w: format has no comment character", pipeline.ErrInvalidConfig)
	}

	var sb strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		for _, c := range line {
			if slices.Contains(w.delimStarts, c) {
				return &FormatError{
					Row: w.rowsWritten + 1,
					Msg: fmt.Sprintf("comment contains row delimiter character %q", c),
				}
			}
		}
		sb.WriteRune(w.format.CommentChar)
		sb.WriteString(line)
		sb.WriteString(w.delimiter)
	}

	if _, err := w.out.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write comment: %w", err)
	}
	return nil
}

// WriteAll drains reader into the writer. The reader is not closed.
func (w *Writer) WriteAll(ctx context.Context, reader pipeline.Reader) (int64, error) {
	var n int64
	for {
		row, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := w.WriteRow(row); err != nil {
			return n, err
		}
		n++
	}
}

func (w *Writer) needsQuotes(index int, field string) bool {
	for _, c := range field {
		if c == w.format.FieldDelimiter {
			return true
		}
		if w.format.QuoteChar != NoChar && c == w.format.QuoteChar {
			return true
		}
		if slices.Contains(w.delimStarts, c) {
			return true
		}
	}
	if index == 0 && w.format.CommentChar != NoChar {
		trimmed := strings.TrimLeft(field, " \t")
		if strings.HasPrefix(trimmed, string(w.format.CommentChar)) {
			return true
		}
	}
	return false
}

// RowsWritten returns the number of rows written so far.
func (w *Writer) RowsWritten() int64 {
	return w.rowsWritten
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.out.Flush()
}

// Close flushes and closes the underlying writer if it is an io.Closer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.out.Flush()
	rowsWrittenCounter.Add(context.Background(), w.rowsWritten)
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
		w.closer = nil
	}
	return err
}
