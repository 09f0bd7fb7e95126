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


package tableops

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/flattable/internal/extsort"
	"github.com/cardinalhq/flattable/pipeline"
)

// SubtractReader returns the minuend rows whose key does not appear in the
// subtrahend, in minuend order.
type SubtractReader struct {
	minuend, subtrahend         stream
	minuendCols, subtrahendCols []int

	rowsOut     int64
	rowsDropped int64
	err         error
	closed      bool
}

var _ pipeline.Reader = (*SubtractReader)(nil)

// NewSubtract validates both inputs, sorts those not marked PreSorted and
// returns the subtract reader. Ownership follows NewJoin.
func NewSubtract(ctx context.Context, minuend, subtrahend Input, opts ...extsort.Option) (*SubtractReader, error) {
	if err := validateInputs(minuend, subtrahend, "minuend", "subtrahend"); err != nil {
		return nil, err
	}
	if err := extsort.ValidateOptions(opts...); err != nil {
		return nil, err
	}
	minuendReader, subtrahendReader, err := prepareInputs(ctx, "subtract", minuend, subtrahend, opts)
	if err != nil {
		return nil, err
	}
	return &SubtractReader{
		minuend:        stream{reader: minuendReader},
		subtrahend:     stream{reader: subtrahendReader},
		minuendCols:    minuend.Columns,
		subtrahendCols: subtrahend.Columns,
	}, nil
}

// Next returns the next surviving minuend row, or io.EOF.
func (s *SubtractReader) Next(ctx context.Context) (pipeline.Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.closed {
		return nil, io.EOF
	}
	row, err := s.next(ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return nil, err
	}
	s.rowsOut++
	return row, nil
}

func (s *SubtractReader) next(ctx context.Context) (pipeline.Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, ok, err := s.minuend.peek(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
		s.minuend.take()
		if err := requireColumns(row, s.minuendCols); err != nil {
			return nil, err
		}

		keep, err := s.survives(ctx, row)
		if err != nil {
			return nil, err
		}
		if keep {
			return row, nil
		}
		s.rowsDropped++
	}
}

// survives compares row against the subtrahend head, discarding subtrahend
// rows with smaller keys. The head is kept for the next minuend row.
func (s *SubtractReader) survives(ctx context.Context, row pipeline.Row) (bool, error) {
	for {
		peek, ok, err := s.subtrahend.peek(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		c, err := pipeline.CompareKeys(row, s.minuendCols, peek, s.subtrahendCols)
		if err != nil {
			return false, err
		}
		switch {
		case c == 0:
			return false, nil
		case c < 0:
			return true, nil
		}
		s.subtrahend.take()
	}
}

// Close closes both inputs, releasing any spill files behind them.
func (s *SubtractReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	rowsOutCounter.Add(context.Background(), s.rowsOut, otelmetric.WithAttributes(
		attribute.String("operator", "subtract"),
	))
	slog.Debug("Subtract finished",
		slog.Int64("rowsOut", s.rowsOut),
		slog.Int64("rowsDropped", s.rowsDropped))
	return errors.Join(s.minuend.reader.Close(), s.subtrahend.reader.Close())
}
