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

// Package pipeline holds the row model shared by the flat-file parser, the
// external sorter and the sorted-stream operators.
package pipeline

import (
	"context"
	"io"
)

// Row is one table record as an ordered list of string fields.
type Row []string

// Field returns the field at index i and whether the row has it.
func (r Row) Field(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return r[i], true
}

// Reader is the pull interface every row source implements.
type Reader interface {
	// Next returns the next row.
	// Returns io.EOF when there are no more rows.
	Next(ctx context.Context) (Row, error)

	// Close releases any resources held by the reader.
	Close() error
}

// SliceReader serves rows from memory.
type SliceReader struct {
	rows   []Row
	index  int
	closed bool
}

var _ Reader = (*SliceReader)(nil)

// NewSliceReader returns a reader over rows. The slice is not copied.
func NewSliceReader(rows []Row) *SliceReader {
	return &SliceReader{rows: rows}
}

func (r *SliceReader) Next(ctx context.Context) (Row, error) {
	if r.closed || r.index >= len(r.rows) {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := r.rows[r.index]
	r.index++
	return row, nil
}

func (r *SliceReader) Close() error {
	r.closed = true
	r.rows = nil
	return nil
}

// ReadAll drains reader into memory. The reader is not closed.
func ReadAll(ctx context.Context, reader Reader) ([]Row, error) {
	var rows []Row
	for {
		row, err := reader.Next(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}
