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
	"fmt"
	"strconv"
	"strings"
)

// CompareFunc orders two field values, returning a negative number, zero or a
// positive number like strings.Compare.
type CompareFunc func(a, b string) int

// Comparator orders two rows.
type Comparator func(a, b Row) int

// SortSpec describes a lexicographic row ordering over a list of columns.
// Compare defaults to strings.Compare.
type SortSpec struct {
	Columns []int
	Compare CompareFunc
}

// Comparator builds the row comparator described by s.
func (s SortSpec) Comparator() Comparator {
	cmp := s.Compare
	if cmp == nil {
		cmp = strings.Compare
	}
	cols := s.Columns
	return func(a, b Row) int {
		for _, col := range cols {
			if c := compareField(a, col, b, col, cmp); c != 0 {
				return c
			}
		}
		return 0
	}
}

// ColumnComparator orders rows by the given columns using natural string order.
func ColumnComparator(columns []int) Comparator {
	return SortSpec{Columns: columns}.Comparator()
}

// compareField compares a[ai] to b[bi]. A missing field sorts before a
// present one.
func compareField(a Row, ai int, b Row, bi int, cmp CompareFunc) int {
	av, aok := a.Field(ai)
	bv, bok := b.Field(bi)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	return cmp(av, bv)
}

// CompareKeys compares the key formed by aCols in a against the key formed by
// bCols in b. Both column lists must have the same length. It returns an error
// wrapping ErrShortRow if either row lacks a key column.
func CompareKeys(a Row, aCols []int, b Row, bCols []int) (int, error) {
	for i := range aCols {
		av, ok := a.Field(aCols[i])
		if !ok {
			return 0, fmt.Errorf("%w: column %d of %d-field row", ErrShortRow, aCols[i], len(a))
		}
		bv, ok := b.Field(bCols[i])
		if !ok {
			return 0, fmt.Errorf("%w: column %d of %d-field row", ErrShortRow, bCols[i], len(b))
		}
		if c := strings.Compare(av, bv); c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

// NumericCompare orders values numerically when both parse as numbers.
// Numbers sort before non-numbers; two non-numbers use string order.
func NumericCompare(a, b string) int {
	af, aerr := strconv.ParseFloat(strings.TrimSpace(a), 64)
	bf, berr := strconv.ParseFloat(strings.TrimSpace(b), 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return strings.Compare(a, b)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// ValidateColumns checks that a column list is usable as a key.
func ValidateColumns(columns []int) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: at least one key column is required", ErrInvalidConfig)
	}
	for _, c := range columns {
		if c < 0 {
			return fmt.Errorf("%w: negative column index %d", ErrInvalidConfig, c)
		}
	}
	return nil
}

// ParseColumns parses a comma separated list of column indices such as "0,2".
func ParseColumns(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	cols := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad column index %q", ErrInvalidConfig, p)
		}
		cols = append(cols, c)
	}
	if err := ValidateColumns(cols); err != nil {
		return nil, err
	}
	return cols, nil
}
