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
	"errors"
	"fmt"
	"io"

	"github.com/cardinalhq/flattable/internal/helpers"
	"github.com/cardinalhq/flattable/internal/spillers"
	"github.com/cardinalhq/flattable/pipeline"
)

type sourceKind int

const (
	memorySource sourceKind = iota
	diskSource
	mergeSource
)

// source is one node of the merge tree. Only the fields for its kind are set.
type source struct {
	kind sourceKind

	// memorySource
	rows []pipeline.Row
	pos  int

	// diskSource
	spiller  spillers.Spiller
	file     *spillers.SpillFile
	reader   spillers.SpillReader
	registry *helpers.TempRegistry
	removed  bool

	// mergeSource
	cmp                 pipeline.Comparator
	left, right         *source
	leftHead, rightHead pipeline.Row
	leftOK, rightOK     bool
	primed              bool
}

func newMemorySource(rows []pipeline.Row) *source {
	return &source{kind: memorySource, rows: rows}
}

func newDiskSource(spiller spillers.Spiller, file *spillers.SpillFile, registry *helpers.TempRegistry) *source {
	return &source{kind: diskSource, spiller: spiller, file: file, registry: registry}
}

func newMergeSource(left, right *source, cmp pipeline.Comparator) *source {
	return &source{kind: mergeSource, left: left, right: right, cmp: cmp}
}

// buildMergeTree combines sources into a balanced binary tree. Earlier
// sources end up on the left so ties keep chunk order.
func buildMergeTree(sources []*source, cmp pipeline.Comparator) *source {
	switch len(sources) {
	case 0:
		return newMemorySource(nil)
	case 1:
		return sources[0]
	}
	mid := len(sources) / 2
	return newMergeSource(
		buildMergeTree(sources[:mid], cmp),
		buildMergeTree(sources[mid:], cmp),
		cmp,
	)
}

// next returns the next row or io.EOF.
func (s *source) next() (pipeline.Row, error) {
	switch s.kind {
	case memorySource:
		if s.pos >= len(s.rows) {
			s.rows = nil
			return nil, io.EOF
		}
		row := s.rows[s.pos]
		s.rows[s.pos] = nil
		s.pos++
		return row, nil
	case diskSource:
		return s.nextFromDisk()
	case mergeSource:
		return s.nextMerged()
	}
	return nil, fmt.Errorf("unknown source kind %d", s.kind)
}

func (s *source) nextFromDisk() (pipeline.Row, error) {
	if s.removed {
		return nil, io.EOF
	}
	if s.reader == nil {
		reader, err := s.spiller.OpenSpillFile(s.file)
		if err != nil {
			return nil, err
		}
		s.reader = reader
	}

	row, err := s.reader.Next()
	if errors.Is(err, io.EOF) {
		if err := s.close(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read spill file %s: %w", s.file.Path, err)
	}
	return row, nil
}

func (s *source) nextMerged() (pipeline.Row, error) {
	if !s.primed {
		var err error
		if s.leftHead, s.leftOK, err = pull(s.left); err != nil {
			return nil, err
		}
		if s.rightHead, s.rightOK, err = pull(s.right); err != nil {
			return nil, err
		}
		s.primed = true
	}

	var (
		row pipeline.Row
		err error
	)
	switch {
	case !s.leftOK && !s.rightOK:
		return nil, io.EOF
	case s.leftOK && (!s.rightOK || s.cmp(s.leftHead, s.rightHead) <= 0):
		row = s.leftHead
		s.leftHead, s.leftOK, err = pull(s.left)
	default:
		row = s.rightHead
		s.rightHead, s.rightOK, err = pull(s.right)
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func pull(s *source) (pipeline.Row, bool, error) {
	row, err := s.next()
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// close releases the source and everything below it. A disk source deletes
// its spill file exactly once, whether or not it was read to the end.
func (s *source) close() error {
	switch s.kind {
	case memorySource:
		s.rows = nil
		s.pos = 0
		return nil
	case diskSource:
		if s.removed {
			return nil
		}
		s.removed = true
		var errs []error
		if s.reader != nil {
			errs = append(errs, s.reader.Close())
			s.reader = nil
		}
		errs = append(errs, s.spiller.CleanupSpillFile(s.file))
		s.registry.Release(s.file.Path)
		return errors.Join(errs...)
	case mergeSource:
		s.leftOK, s.rightOK = false, false
		s.leftHead, s.rightHead = nil, nil
		s.primed = true
		return errors.Join(s.left.close(), s.right.close())
	}
	return nil
}
