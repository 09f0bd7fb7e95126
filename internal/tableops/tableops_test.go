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
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/flattable/internal/extsort"
	"github.com/cardinalhq/flattable/internal/helpers"
	"github.com/cardinalhq/flattable/pipeline"
)

type closeCounter struct {
	pipeline.Reader
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return c.Reader.Close()
}

func rowsReader(rows ...pipeline.Row) *closeCounter {
	return &closeCounter{Reader: pipeline.NewSliceReader(rows)}
}

func readJoined(t *testing.T, reader pipeline.Reader) []pipeline.Row {
	t.Helper()
	rows, err := pipeline.ReadAll(context.Background(), reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	return rows
}

func sortOpts(t *testing.T, limit int) []extsort.Option {
	return []extsort.Option{
		extsort.WithInMemoryLimit(limit),
		extsort.WithTmpDir(t.TempDir()),
		extsort.WithTempRegistry(helpers.NewTempRegistry()),
	}
}

func TestJoin_Basic(t *testing.T) {
	left := rowsReader(pipeline.Row{"1", "a"}, pipeline.Row{"2", "b"})
	right := rowsReader(pipeline.Row{"1", "x"}, pipeline.Row{"3", "y"})

	join, err := NewJoin(context.Background(),
		Input{Reader: left, Columns: []int{0}},
		Input{Reader: right, Columns: []int{0}})
	require.NoError(t, err)

	assert.Equal(t, []pipeline.Row{{"1", "a", "x"}}, readJoined(t, join))
	assert.Equal(t, 1, left.closes)
	assert.Equal(t, 1, right.closes)
}

func TestJoin_OmitsRightKeyColumns(t *testing.T) {
	left := rowsReader(
		pipeline.Row{"k1", "p", "left1"},
		pipeline.Row{"k2", "q", "left2"},
	)
	right := rowsReader(
		pipeline.Row{"r1", "q", "k2", "tail"},
		pipeline.Row{"r0", "p", "k1", "tail0"},
	)

	join, err := NewJoin(context.Background(),
		Input{Reader: left, Columns: []int{0, 1}},
		Input{Reader: right, Columns: []int{2, 1}},
		sortOpts(t, 10)...)
	require.NoError(t, err)

	assert.Equal(t, []pipeline.Row{
		{"k1", "p", "left1", "r0", "tail0"},
		{"k2", "q", "left2", "r1", "tail"},
	}, readJoined(t, join))
}

func TestJoin_ManyToManyDuplicates(t *testing.T) {
	left := rowsReader(
		pipeline.Row{"a", "l1"}, pipeline.Row{"a", "l2"},
		pipeline.Row{"b", "l3"},
		pipeline.Row{"c", "l4"}, pipeline.Row{"c", "l5"},
	)
	right := rowsReader(
		pipeline.Row{"a", "r1"}, pipeline.Row{"a", "r2"}, pipeline.Row{"a", "r3"},
		pipeline.Row{"c", "r4"}, pipeline.Row{"c", "r5"},
		pipeline.Row{"d", "r6"},
	)

	join, err := NewJoin(context.Background(),
		Input{Reader: left, Columns: []int{0}, PreSorted: true},
		Input{Reader: right, Columns: []int{0}, PreSorted: true})
	require.NoError(t, err)

	assert.Equal(t, []pipeline.Row{
		{"a", "l1", "r1"}, {"a", "l1", "r2"}, {"a", "l1", "r3"},
		{"a", "l2", "r1"}, {"a", "l2", "r2"}, {"a", "l2", "r3"},
		{"c", "l4", "r4"}, {"c", "l4", "r5"},
		{"c", "l5", "r4"}, {"c", "l5", "r5"},
	}, readJoined(t, join))
}

func TestJoin_MatchesNestedLoop(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, 99))
			left := randomRows(rng, 60, 12, "L")
			right := randomRows(rng, 45, 12, "R")

			var expected []pipeline.Row
			for _, l := range stableByKey(left) {
				for _, r := range stableByKey(right) {
					if l[0] == r[0] {
						expected = append(expected, pipeline.Row{l[0], l[1], r[1]})
					}
				}
			}

			join, err := NewJoin(context.Background(),
				Input{Reader: pipeline.NewSliceReader(slices.Clone(left)), Columns: []int{0}},
				Input{Reader: pipeline.NewSliceReader(slices.Clone(right)), Columns: []int{0}},
				sortOpts(t, 7)...)
			require.NoError(t, err)
			assert.Equal(t, expected, readJoined(t, join))
		})
	}
}

func TestJoin_EmptySides(t *testing.T) {
	join, err := NewJoin(context.Background(),
		Input{Reader: rowsReader(), Columns: []int{0}},
		Input{Reader: rowsReader(pipeline.Row{"1"}), Columns: []int{0}})
	require.NoError(t, err)
	assert.Empty(t, readJoined(t, join))

	join, err = NewJoin(context.Background(),
		Input{Reader: rowsReader(pipeline.Row{"1"}), Columns: []int{0}},
		Input{Reader: rowsReader(), Columns: []int{0}})
	require.NoError(t, err)
	assert.Empty(t, readJoined(t, join))
}

func TestSubtract_Basic(t *testing.T) {
	minuend := rowsReader(pipeline.Row{"1"}, pipeline.Row{"2"}, pipeline.Row{"3"})
	subtrahend := rowsReader(pipeline.Row{"2"})

	sub, err := NewSubtract(context.Background(),
		Input{Reader: minuend, Columns: []int{0}},
		Input{Reader: subtrahend, Columns: []int{0}})
	require.NoError(t, err)

	assert.Equal(t, []pipeline.Row{{"1"}, {"3"}}, readJoined(t, sub))
	assert.Equal(t, 1, minuend.closes)
	assert.Equal(t, 1, subtrahend.closes)
}

func TestSubtract_Duplicates(t *testing.T) {
	minuend := rowsReader(
		pipeline.Row{"a", "1"}, pipeline.Row{"a", "2"},
		pipeline.Row{"b", "3"}, pipeline.Row{"b", "4"},
		pipeline.Row{"c", "5"},
		pipeline.Row{"e", "6"}, pipeline.Row{"e", "7"},
	)
	subtrahend := rowsReader(
		pipeline.Row{"b"}, pipeline.Row{"b"},
		pipeline.Row{"d"},
		pipeline.Row{"e"},
	)

	sub, err := NewSubtract(context.Background(),
		Input{Reader: minuend, Columns: []int{0}, PreSorted: true},
		Input{Reader: subtrahend, Columns: []int{0}, PreSorted: true})
	require.NoError(t, err)

	assert.Equal(t, []pipeline.Row{
		{"a", "1"}, {"a", "2"}, {"c", "5"},
	}, readJoined(t, sub))
}

func TestSubtract_MatchesSetDifference(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, 7))
			minuend := randomRows(rng, 80, 20, "M")
			subtrahend := randomRows(rng, 30, 20, "S")

			removed := map[string]bool{}
			for _, r := range subtrahend {
				removed[r[0]] = true
			}
			var expected []pipeline.Row
			for _, m := range stableByKey(minuend) {
				if !removed[m[0]] {
					expected = append(expected, m)
				}
			}

			sub, err := NewSubtract(context.Background(),
				Input{Reader: pipeline.NewSliceReader(slices.Clone(minuend)), Columns: []int{0}},
				Input{Reader: pipeline.NewSliceReader(slices.Clone(subtrahend)), Columns: []int{0}},
				sortOpts(t, 6)...)
			require.NoError(t, err)
			assert.Equal(t, expected, readJoined(t, sub))
		})
	}
}

func TestOperators_ConfigErrors(t *testing.T) {
	tests := []struct {
		name        string
		left, right Input
	}{
		{
			name:  "mismatched column counts",
			left:  Input{Reader: rowsReader(), Columns: []int{0, 1}},
			right: Input{Reader: rowsReader(), Columns: []int{0}},
		},
		{
			name:  "empty columns",
			left:  Input{Reader: rowsReader(), Columns: nil},
			right: Input{Reader: rowsReader(), Columns: nil},
		},
		{
			name:  "negative column",
			left:  Input{Reader: rowsReader(), Columns: []int{-1}},
			right: Input{Reader: rowsReader(), Columns: []int{0}},
		},
		{
			name:  "missing reader",
			left:  Input{Columns: []int{0}},
			right: Input{Reader: rowsReader(), Columns: []int{0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJoin(context.Background(), tt.left, tt.right)
			assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)

			_, err = NewSubtract(context.Background(), tt.left, tt.right)
			assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
		})
	}
}

func TestOperators_InvalidSortLimit(t *testing.T) {
	for _, presorted := range []bool{false, true} {
		t.Run(fmt.Sprintf("presorted %v", presorted), func(t *testing.T) {
			left := rowsReader(pipeline.Row{"1"})
			right := rowsReader(pipeline.Row{"1"})
			_, err := NewJoin(context.Background(),
				Input{Reader: left, Columns: []int{0}, PreSorted: presorted},
				Input{Reader: right, Columns: []int{0}, PreSorted: presorted},
				extsort.WithInMemoryLimit(0))
			assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)

			_, err = NewSubtract(context.Background(),
				Input{Reader: left, Columns: []int{0}, PreSorted: presorted},
				Input{Reader: right, Columns: []int{0}, PreSorted: true},
				extsort.WithInMemoryLimit(-5))
			assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)

			// rejected before any input was read or closed
			assert.Zero(t, left.closes)
			assert.Zero(t, right.closes)
			row, err := left.Next(context.Background())
			require.NoError(t, err)
			assert.Equal(t, pipeline.Row{"1"}, row)
		})
	}
}

func TestOperators_ShortRows(t *testing.T) {
	join, err := NewJoin(context.Background(),
		Input{Reader: rowsReader(pipeline.Row{"a", "1"}), Columns: []int{1}, PreSorted: true},
		Input{Reader: rowsReader(pipeline.Row{"b"}), Columns: []int{1}, PreSorted: true})
	require.NoError(t, err)
	_, err = join.Next(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrShortRow)
	_, again := join.Next(context.Background())
	assert.Equal(t, err, again)
	require.NoError(t, join.Close())

	sub, err := NewSubtract(context.Background(),
		Input{Reader: rowsReader(pipeline.Row{"a"}), Columns: []int{1}, PreSorted: true},
		Input{Reader: rowsReader(), Columns: []int{0}, PreSorted: true})
	require.NoError(t, err)
	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrShortRow)
	require.NoError(t, sub.Close())
}

func TestOperators_CloseRemovesSpillFiles(t *testing.T) {
	tmpdir := t.TempDir()
	registry := helpers.NewTempRegistry()
	rng := rand.New(rand.NewPCG(11, 12))

	join, err := NewJoin(context.Background(),
		Input{Reader: pipeline.NewSliceReader(randomRows(rng, 40, 5, "L")), Columns: []int{0}},
		Input{Reader: pipeline.NewSliceReader(randomRows(rng, 40, 5, "R")), Columns: []int{0}},
		extsort.WithInMemoryLimit(3),
		extsort.WithTmpDir(tmpdir),
		extsort.WithTempRegistry(registry))
	require.NoError(t, err)

	entries, err := os.ReadDir(tmpdir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	_, err = join.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, join.Close())

	entries, err = os.ReadDir(tmpdir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, registry.Len())

	_, err = join.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

type failingReader struct{}

func (failingReader) Next(context.Context) (pipeline.Row, error) {
	return nil, errors.New("read failed")
}

func (failingReader) Close() error { return nil }

func TestOperators_InputErrors(t *testing.T) {
	_, err := NewJoin(context.Background(),
		Input{Reader: failingReader{}, Columns: []int{0}},
		Input{Reader: rowsReader(), Columns: []int{0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read failed")

	sub, err := NewSubtract(context.Background(),
		Input{Reader: failingReader{}, Columns: []int{0}, PreSorted: true},
		Input{Reader: rowsReader(), Columns: []int{0}, PreSorted: true})
	require.NoError(t, err)
	_, err = sub.Next(context.Background())
	assert.ErrorContains(t, err, "read failed")
	require.NoError(t, sub.Close())
}

func randomRows(rng *rand.Rand, n, keys int, tag string) []pipeline.Row {
	rows := make([]pipeline.Row, n)
	for i := range rows {
		rows[i] = pipeline.Row{fmt.Sprintf("k%02d", rng.IntN(keys)), fmt.Sprintf("%s%03d", tag, i)}
	}
	return rows
}

func stableByKey(rows []pipeline.Row) []pipeline.Row {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b pipeline.Row) int {
		return strings.Compare(a[0], b[0])
	})
	return out
}
