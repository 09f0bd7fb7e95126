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

	"github.com/cardinalhq/flattable/pipeline"
)

// stream wraps a sorted input with a one-row retry slot.
type stream struct {
	reader pipeline.Reader
	head   pipeline.Row
	has    bool
	done   bool
}

// peek returns the head row without consuming it. ok is false once the
// input is exhausted.
func (s *stream) peek(ctx context.Context) (row pipeline.Row, ok bool, err error) {
	if s.has {
		return s.head, true, nil
	}
	if s.done {
		return nil, false, nil
	}
	row, err = s.reader.Next(ctx)
	if errors.Is(err, io.EOF) {
		s.done = true
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.head, s.has = row, true
	return row, true, nil
}

// take consumes the head row.
func (s *stream) take() {
	s.head, s.has = nil, false
}
