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


package spillers

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/cardinalhq/flattable/pipeline"
)

type gobRecord struct {
	Fields []string
}

// GobSpiller implements the Spiller interface using Go's gob encoding.
type GobSpiller struct {
	chunkCounter atomic.Int64
}

var _ Spiller = (*GobSpiller)(nil)

// NewGobSpiller creates a new GOB-based spiller.
func NewGobSpiller() *GobSpiller {
	return &GobSpiller{}
}

// WriteSpillFile writes rows to a temporary file using gob encoding.
func (s *GobSpiller) WriteSpillFile(tmpDir, prefix string, rows []pipeline.Row) (*SpillFile, error) {
	chunk := s.chunkCounter.Add(1)
	file, err := os.CreateTemp(tmpDir, fmt.Sprintf("%s-%d-*.gob", prefix, chunk))
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}

	buffered := bufio.NewWriter(file)
	encoder := gob.NewEncoder(buffered)
	for _, row := range rows {
		if err := encoder.Encode(gobRecord{Fields: row}); err != nil {
			_ = file.Close()
			_ = os.Remove(file.Name())
			return nil, fmt.Errorf("encode row to spill file: %w", err)
		}
	}

	return finishSpillFile(file, buffered.Flush, len(rows))
}

// OpenSpillFile opens a GOB spill file for reading.
func (s *GobSpiller) OpenSpillFile(spillFile *SpillFile) (SpillReader, error) {
	file, err := os.Open(spillFile.Path)
	if err != nil {
		return nil, fmt.Errorf("open spill file %s: %w", spillFile.Path, err)
	}

	return &gobSpillReader{
		file:    file,
		decoder: gob.NewDecoder(bufio.NewReader(file)),
	}, nil
}

// CleanupSpillFile removes the GOB spill file from disk.
func (s *GobSpiller) CleanupSpillFile(spillFile *SpillFile) error {
	return removeSpillFile(spillFile.Path)
}

// gobSpillReader implements SpillReader for GOB-encoded files.
type gobSpillReader struct {
	file    *os.File
	decoder *gob.Decoder
	done    bool
}

// Next reads the next row from the GOB spill file.
func (r *gobSpillReader) Next() (pipeline.Row, error) {
	if r.done {
		return nil, io.EOF
	}

	var record gobRecord
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			r.done = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode spilled row: %w", err)
	}
	if record.Fields == nil {
		return pipeline.Row{}, nil
	}
	return pipeline.Row(record.Fields), nil
}

// Close closes the GOB spill reader.
func (r *gobSpillReader) Close() error {
	r.done = true
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
