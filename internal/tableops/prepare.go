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


// Package tableops implements relational operators over row streams that
// are sorted on their key columns: an inner equi-join and a keyed subtract.
//
// An input that is not already sorted on its key columns is passed through
// the external sorter first, so both operators can run over data larger
// than memory while holding only the current equal-key run.
package tableops

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/flattable/internal/extsort"
	"github.com/cardinalhq/flattable/pipeline"
)

// Input is one side of a join or subtract.
type Input struct {
	Reader pipeline.Reader
	// Columns are the key column indices, compared pairwise with the other side.
	Columns []int
	// PreSorted declares Reader already ordered by Columns in string order.
	PreSorted bool
}

func validateInputs(a, b Input, aName, bName string) error {
	if a.Reader == nil || b.Reader == nil {
		return fmt.Errorf("%w: %s and %s readers are required", pipeline.ErrInvalidConfig, aName, bName)
	}
	if err := pipeline.ValidateColumns(a.Columns); err != nil {
		return fmt.Errorf("%s columns: %w", aName, err)
	}
	if err := pipeline.ValidateColumns(b.Columns); err != nil {
		return fmt.Errorf("%s columns: %w", bName, err)
	}
	if len(a.Columns) != len(b.Columns) {
		return fmt.Errorf("%w: %s has %d key columns but %s has %d",
			pipeline.ErrInvalidConfig, aName, len(a.Columns), bName, len(b.Columns))
	}
	return nil
}

// prepareInputs sorts whichever inputs are not pre-sorted. On error every
// reader, sorted or not, has been closed.
func prepareInputs(ctx context.Context, operator string, a, b Input, opts []extsort.Option) (pipeline.Reader, pipeline.Reader, error) {
	tracer := otel.Tracer("github.com/cardinalhq/flattable/internal/tableops")
	ctx, span := tracer.Start(ctx, "tableops.prepare", trace.WithAttributes(
		attribute.String("operator", operator),
		attribute.Bool("firstPreSorted", a.PreSorted),
		attribute.Bool("secondPreSorted", b.PreSorted),
	))
	defer span.End()

	preparedA, err := prepare(ctx, a, opts)
	if err != nil {
		err = errors.Join(err, a.Reader.Close(), b.Reader.Close())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	preparedB, err := prepare(ctx, b, opts)
	if err != nil {
		err = errors.Join(err, preparedA.Close(), b.Reader.Close())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return preparedA, preparedB, nil
}

func prepare(ctx context.Context, in Input, opts []extsort.Option) (pipeline.Reader, error) {
	if in.PreSorted {
		return in.Reader, nil
	}
	sorted, err := extsort.Sort(ctx, in.Reader, pipeline.ColumnComparator(in.Columns), opts...)
	if err != nil {
		return nil, err
	}
	return sorted, nil
}

// requireColumns fails if row lacks any of columns.
func requireColumns(row pipeline.Row, columns []int) error {
	for _, c := range columns {
		if _, ok := row.Field(c); !ok {
			return fmt.Errorf("%w: column %d of %d-field row", pipeline.ErrShortRow, c, len(row))
		}
	}
	return nil
}
