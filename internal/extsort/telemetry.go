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


package extsort

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	rowsSortedCounter otelmetric.Int64Counter
	spillsCounter     otelmetric.Int64Counter
	spillBytesCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/flattable/internal/extsort")

	var err error
	rowsSortedCounter, err = meter.Int64Counter(
		"flattable.sort.rows",
		otelmetric.WithDescription("Number of rows accepted by the external sorter"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sort.rows counter: %w", err))
	}

	spillsCounter, err = meter.Int64Counter(
		"flattable.sort.spills",
		otelmetric.WithDescription("Number of sorted chunks spilled to disk"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sort.spills counter: %w", err))
	}

	spillBytesCounter, err = meter.Int64Counter(
		"flattable.sort.spill.bytes",
		otelmetric.WithDescription("Bytes written to spill files"),
		otelmetric.WithUnit("By"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sort.spill.bytes counter: %w", err))
	}
}
