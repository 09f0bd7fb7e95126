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

package pipeline

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowField(t *testing.T) {
	row := Row{"x", "y"}

	v, ok := row.Field(1)
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = row.Field(2)
	assert.False(t, ok)
	_, ok = row.Field(-1)
	assert.False(t, ok)
}

func TestSliceReader(t *testing.T) {
	ctx := context.Background()
	rows := []Row{{"1"}, {"2"}, {"3"}}

	r := NewSliceReader(rows)
	got, err := ReadAll(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = r.Next(ctx)
	assert.Equal(t, io.EOF, err)
	require.NoError(t, r.Close())
}

func TestSliceReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewSliceReader([]Row{{"1"}})
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSliceReader_Closed(t *testing.T) {
	r := NewSliceReader([]Row{{"1"}})
	require.NoError(t, r.Close())

	_, err := r.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}
