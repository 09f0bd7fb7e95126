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

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/flattable/internal/extsort"
	"github.com/cardinalhq/flattable/pipeline"
)

// JoinReader produces the inner equi-join of two inputs. Each output row is
// the left row followed by the right row without its key columns.
//
// Every right row of the current key is buffered, so duplicate keys on both
// sides yield their full cross product in left-major order.
type JoinReader struct {
	left, right         stream
	leftCols, rightCols []int
	omit                mapset.Set[int]

	// run holds the right rows sharing the current key; current is the left
	// row being paired with them.
	run     []pipeline.Row
	current pipeline.Row
	runPos  int

	rowsOut int64
	err     error
	closed  bool
}

var _ pipeline.Reader = (*JoinReader)(nil)

// NewJoin validates both inputs, sorts those not marked PreSorted and returns
// the join reader. Configuration errors are returned before any input is
// read. The JoinReader owns both readers; on error they have been closed
// unless the configuration was invalid.
func NewJoin(ctx context.Context, left, right Input, opts ...extsort.Option) (*JoinReader, error) {
	if err := validateInputs(left, right, "left", "right"); err != nil {
		return nil, err
	}
	if err := extsort.ValidateOptions(opts...); err != nil {
		return nil, err
	}
	leftReader, rightReader, err := prepareInputs(ctx, "join", left, right, opts)
	if err != nil {
		return nil, err
	}
	return &JoinReader{
		left:      stream{reader: leftReader},
		right:     stream{reader: rightReader},
		leftCols:  left.Columns,
		rightCols: right.Columns,
		omit:      mapset.NewThreadUnsafeSet(right.Columns...),
	}, nil
}

// Next returns the next joined row, or io.EOF.
func (j *JoinReader) Next(ctx context.Context) (pipeline.Row, error) {
	if j.err != nil {
		return nil, j.err
	}
	if j.closed {
		return nil, io.EOF
	}
	row, err := j.next(ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			j.err = err
		}
		return nil, err
	}
	j.rowsOut++
	return row, nil
}

func (j *JoinReader) next(ctx context.Context) (pipeline.Row, error) {
	for {
		if j.current != nil && j.runPos < len(j.run) {
			out := j.combine(j.current, j.run[j.runPos])
			j.runPos++
			return out, nil
		}
		j.current = nil

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		leftRow, ok, err := j.left.peek(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}

		if len(j.run) > 0 {
			c, err := pipeline.CompareKeys(leftRow, j.leftCols, j.run[0], j.rightCols)
			if err != nil {
				return nil, err
			}
			switch {
			case c == 0:
				j.left.take()
				j.current, j.runPos = leftRow, 0
				continue
			case c < 0:
				// left input out of order; nothing on the right can match
				j.left.take()
				continue
			}
			j.run = nil
		}

		matched, err := j.seekRight(ctx, leftRow)
		if err != nil {
			return nil, err
		}
		if matched {
			j.left.take()
			j.current, j.runPos = leftRow, 0
			continue
		}
		if j.right.done {
			return nil, io.EOF
		}
		// right is ahead of this left row
		j.left.take()
	}
}

// seekRight advances the right input to the first row whose key is not less
// than leftRow's key. If the keys are equal the whole run of that key is
// buffered and seekRight reports true.
func (j *JoinReader) seekRight(ctx context.Context, leftRow pipeline.Row) (bool, error) {
	for {
		rightRow, ok, err := j.right.peek(ctx)
		if err != nil || !ok {
			return false, err
		}
		c, err := pipeline.CompareKeys(leftRow, j.leftCols, rightRow, j.rightCols)
		if err != nil {
			return false, err
		}
		switch {
		case c > 0:
			j.right.take()
			continue
		case c < 0:
			return false, nil
		}

		j.right.take()
		j.run = append(j.run[:0], rightRow)
		for {
			next, ok, err := j.right.peek(ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}
			c, err := pipeline.CompareKeys(next, j.rightCols, rightRow, j.rightCols)
			if err != nil {
				return false, err
			}
			if c != 0 {
				return true, nil
			}
			j.right.take()
			j.run = append(j.run, next)
		}
	}
}

func (j *JoinReader) combine(left, right pipeline.Row) pipeline.Row {
	out := make(pipeline.Row, 0, len(left)+len(right))
	out = append(out, left...)
	for i, field := range right {
		if !j.omit.Contains(i) {
			out = append(out, field)
		}
	}
	return out
}

// Close closes both inputs, releasing any spill files behind them.
func (j *JoinReader) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true
	j.run, j.current = nil, nil

	rowsOutCounter.Add(context.Background(), j.rowsOut, otelmetric.WithAttributes(
		attribute.String("operator", "join"),
	))
	slog.Debug("Join finished", slog.Int64("rowsOut", j.rowsOut))
	return errors.Join(j.left.reader.Close(), j.right.reader.Close())
}
