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
	"fmt"
	"os"

	"github.com/cardinalhq/flattable/internal/cbor"
	"github.com/cardinalhq/flattable/pipeline"
)

// CborSpiller implements the Spiller interface using CBOR encoding.
type CborSpiller struct {
	config *cbor.Config
}

var _ Spiller = (*CborSpiller)(nil)

// NewCborSpiller creates a new CBOR-based spiller.
func NewCborSpiller() (*CborSpiller, error) {
	config, err := cbor.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR config: %w", err)
	}

	return &CborSpiller{
		config: config,
	}, nil
}

// WriteSpillFile writes rows to a temporary CBOR file.
func (s *CborSpiller) WriteSpillFile(tmpDir, prefix string, rows []pipeline.Row) (*SpillFile, error) {
	tempFile, err := os.CreateTemp(tmpDir, prefix+"-*.cbor")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	buffered := bufio.NewWriter(tempFile)
	encoder := s.config.NewEncoder(buffered)
	for _, row := range rows {
		if err := encoder.Encode(row); err != nil {
			_ = tempFile.Close()
			_ = os.Remove(tempFile.Name())
			return nil, fmt.Errorf("failed to encode row: %w", err)
		}
	}

	return finishSpillFile(tempFile, buffered.Flush, len(rows))
}

// OpenSpillFile opens a CBOR spill file for reading.
func (s *CborSpiller) OpenSpillFile(spillFile *SpillFile) (SpillReader, error) {
	file, err := os.Open(spillFile.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill file %s: %w", spillFile.Path, err)
	}

	return &cborSpillReader{
		file:    file,
		decoder: s.config.NewDecoder(bufio.NewReader(file)),
	}, nil
}

// CleanupSpillFile removes the CBOR spill file from disk.
func (s *CborSpiller) CleanupSpillFile(spillFile *SpillFile) error {
	return removeSpillFile(spillFile.Path)
}

// cborSpillReader implements SpillReader for CBOR files.
type cborSpillReader struct {
	file    *os.File
	decoder *cbor.RowDecoder
}

// Next reads the next row from the CBOR spill file.
func (r *cborSpillReader) Next() (pipeline.Row, error) {
	return r.decoder.Decode() // io.EOF will be returned naturally at end of file
}

// Close closes the CBOR spill reader.
func (r *cborSpillReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
