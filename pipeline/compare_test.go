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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnComparator(t *testing.T) {
	cmp := ColumnComparator([]int{1, 0})

	tests := []struct {
		name string
		a, b Row
		want int
	}{
		{"first column decides", Row{"z", "a"}, Row{"a", "b"}, -1},
		{"tie broken by second column", Row{"a", "x"}, Row{"b", "x"}, -1},
		{"equal", Row{"a", "x"}, Row{"a", "x"}, 0},
		{"greater", Row{"a", "y"}, Row{"a", "x"}, 1},
		{"missing column sorts first", Row{"a"}, Row{"a", ""}, -1},
		{"both missing", Row{"a"}, Row{"a"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cmp(tt.a, tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestSortSpec_CustomCompare(t *testing.T) {
	cmp := SortSpec{Columns: []int{0}, Compare: NumericCompare}.Comparator()
	assert.Negative(t, cmp(Row{"9"}, Row{"10"}))
	assert.Positive(t, ColumnComparator([]int{0})(Row{"9"}, Row{"10"}))
}

func TestNumericCompare(t *testing.T) {
	assert.Negative(t, NumericCompare("2", "10"))
	assert.Positive(t, NumericCompare("10.5", "10"))
	assert.Zero(t, NumericCompare("3", "3"))
	assert.Negative(t, NumericCompare("1e3", "abc"), "numbers sort before text")
	assert.Positive(t, NumericCompare("abc", "-4"))
	assert.Negative(t, NumericCompare("abc", "abd"))
}

func TestCompareKeys(t *testing.T) {
	c, err := CompareKeys(Row{"1", "a"}, []int{0}, Row{"x", "1"}, []int{1})
	require.NoError(t, err)
	assert.Zero(t, c)

	c, err = CompareKeys(Row{"1", "a"}, []int{0, 1}, Row{"1", "b"}, []int{0, 1})
	require.NoError(t, err)
	assert.Negative(t, c)

	_, err = CompareKeys(Row{"1"}, []int{3}, Row{"1"}, []int{0})
	assert.ErrorIs(t, err, ErrShortRow)
}

func TestParseColumns(t *testing.T) {
	cols, err := ParseColumns("0, 2,5")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 5}, cols)

	for _, bad := range []string{"", "a", "1,-2", " , "} {
		_, err := ParseColumns(bad)
		assert.ErrorIs(t, err, ErrInvalidConfig, "input %q", bad)
	}
}
