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
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/flattable/pipeline"
)

const readBufferSize = 4 * 1024

type cursorMode int

const (
	fieldStart cursorMode = iota
	plainField
	quotedField
	quoteInQuotedField
)

// Reader parses rows from a character delimited stream.
type Reader struct {
	in     *bufio.Reader
	closer io.Closer
	format Format

	// choices holds every candidate row delimiter; delimiter is nil until
	// one of them has been seen in the stream.
	choices   [][]rune
	delimiter []rune

	// pending holds runes read ahead while looking for a comment line.
	pending []rune
	field   strings.Builder
	width   int

	rowsRead int64
	err      error
	closed   bool
}

var _ pipeline.Reader = (*Reader)(nil)

// NewReader creates a Reader for the stream. If r is an io.Closer the reader
// takes ownership of it and closes it on Close.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	choices := make([][]rune, len(format.RowDelimiters))
	for i, d := range format.RowDelimiters {
		choices[i] = []rune(d)
	}

	reader := &Reader{
		in:      bufio.NewReaderSize(r, readBufferSize),
		format:  format,
		choices: choices,
	}
	if len(choices) == 1 {
		reader.delimiter = choices[0]
	}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader, nil
}

// RowDelimiter returns the row delimiter in use, or "" if it has not been
// detected yet.
func (r *Reader) RowDelimiter() string {
	return string(r.delimiter)
}

// RowsRead returns the number of rows returned so far.
func (r *Reader) RowsRead() int64 {
	return r.rowsRead
}

// Next implements pipeline.Reader.
func (r *Reader) Next(ctx context.Context) (pipeline.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ReadRow()
}

// ReadRow returns the next row, or io.EOF at the end of the stream. Errors
// are sticky: once ReadRow fails every later call returns the same error.
func (r *Reader) ReadRow() (pipeline.Row, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.closed {
		return nil, io.EOF
	}

	row, err := r.readRow()
	if err != nil {
		r.err = err
		return nil, err
	}
	r.rowsRead++
	r.width = len(row)
	return row, nil
}

func (r *Reader) readRow() (pipeline.Row, error) {
	if err := r.skipCommentRows(); err != nil {
		return nil, err
	}

	row := make(pipeline.Row, 0, r.width)
	mode := fieldStart
	first := true
	for {
		c, err := r.readRune()
		if err == io.EOF {
			if first {
				return nil, io.EOF
			}
			switch mode {
			case fieldStart:
				row = append(row, "")
			case plainField, quoteInQuotedField:
				row = append(row, r.takeField())
			case quotedField:
				return nil, r.formatError("unterminated quoted field at end of stream")
			}
			return row, nil
		}
		if err != nil {
			return nil, err
		}
		first = false

		switch mode {
		case fieldStart:
			switch {
			case r.isQuote(c):
				if r.format.ForbidQuote {
					return nil, r.formatError(fmt.Sprintf("quote character %q is not permitted", c))
				}
				mode = quotedField
			case c == r.format.FieldDelimiter:
				row = append(row, "")
			case r.matchesDelimiterStart(c):
				row = append(row, "")
				if err := r.readDelimiterRemainder(); err != nil {
					return nil, err
				}
				return row, nil
			default:
				r.field.WriteRune(c)
				mode = plainField
			}

		case plainField:
			switch {
			case r.isQuote(c):
				return nil, r.formatError("illegal quote found in unquoted field")
			case c == r.format.FieldDelimiter:
				row = append(row, r.takeField())
				mode = fieldStart
			case r.matchesDelimiterStart(c):
				row = append(row, r.takeField())
				if err := r.readDelimiterRemainder(); err != nil {
					return nil, err
				}
				return row, nil
			default:
				r.field.WriteRune(c)
			}

		case quotedField:
			if r.isQuote(c) {
				mode = quoteInQuotedField
			} else {
				r.field.WriteRune(c)
			}

		case quoteInQuotedField:
			switch {
			case r.isQuote(c):
				// doubled quote is an escaped quote
				r.field.WriteRune(c)
				mode = quotedField
			case c == r.format.FieldDelimiter:
				row = append(row, r.takeField())
				mode = fieldStart
			case r.matchesDelimiterStart(c):
				row = append(row, r.takeField())
				if err := r.readDelimiterRemainder(); err != nil {
					return nil, err
				}
				return row, nil
			default:
				return nil, r.formatError(fmt.Sprintf("unexpected %q after closing quote", c))
			}
		}
	}
}

// skipCommentRows consumes every comment line ahead of the next content row.
// Blank runes read while looking for the comment character are pushed back.
func (r *Reader) skipCommentRows() error {
	if r.format.CommentChar == NoChar {
		return nil
	}

	for {
		var lookahead []rune
		for {
			c, err := r.readRune()
			if err == io.EOF {
				r.pending = lookahead
				return nil
			}
			if err != nil {
				return err
			}
			if c == r.format.CommentChar {
				break
			}
			lookahead = append(lookahead, c)
			if !r.isBlank(c) {
				r.pending = lookahead
				return nil
			}
		}
		if err := r.skipLine(); err != nil {
			return err
		}
	}
}

// skipLine reads through the next row delimiter or the end of the stream.
func (r *Reader) skipLine() error {
	for {
		c, err := r.readRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if r.matchesDelimiterStart(c) {
			return r.readDelimiterRemainder()
		}
	}
}

// readDelimiterRemainder consumes the rest of the row delimiter after its
// first rune has been matched.
func (r *Reader) readDelimiterRemainder() error {
	for i := 1; i < len(r.delimiter); i++ {
		c, err := r.readRune()
		if err == io.EOF {
			return r.formatError("incomplete row delimiter at end of stream")
		}
		if err != nil {
			return err
		}
		if c != r.delimiter[i] {
			return r.formatError(fmt.Sprintf("incomplete row delimiter %q", string(r.delimiter)))
		}
	}
	return nil
}

// matchesDelimiterStart reports whether c starts the row delimiter, locking
// the delimiter to the first matching candidate if none was detected yet.
func (r *Reader) matchesDelimiterStart(c rune) bool {
	if r.delimiter != nil {
		return r.delimiter[0] == c
	}
	for _, choice := range r.choices {
		if choice[0] == c {
			r.delimiter = choice
			return true
		}
	}
	return false
}

func (r *Reader) startsAnyDelimiter(c rune) bool {
	if r.delimiter != nil {
		return r.delimiter[0] == c
	}
	for _, choice := range r.choices {
		if choice[0] == c {
			return true
		}
	}
	return false
}

func (r *Reader) isQuote(c rune) bool {
	return r.format.QuoteChar != NoChar && c == r.format.QuoteChar
}

func (r *Reader) isBlank(c rune) bool {
	return (c == ' ' || c == '\t') && c != r.format.FieldDelimiter && !r.startsAnyDelimiter(c)
}

func (r *Reader) readRune() (rune, error) {
	if len(r.pending) > 0 {
		c := r.pending[0]
		r.pending = r.pending[1:]
		return c, nil
	}
	c, _, err := r.in.ReadRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("failed to read flat file: %w", err)
	}
	return c, nil
}

func (r *Reader) takeField() string {
	s := r.field.String()
	r.field.Reset()
	return s
}

func (r *Reader) formatError(msg string) error {
	return &FormatError{Row: r.rowsRead + 1, Msg: msg}
}

// Close closes the underlying stream if the reader owns it.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	rowsReadCounter.Add(context.Background(), r.rowsRead, otelmetric.WithAttributes(
		attribute.String("reader", "flatfile"),
	))

	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}
