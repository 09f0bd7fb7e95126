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


// Package spillers writes sorted row chunks to private temporary files and
// reads them back in the same order.
package spillers

import (
	"fmt"
	"os"
	"strings"

	"github.com/cardinalhq/flattable/pipeline"
)

// SpillFile represents a temporary file containing one spilled sorted chunk.
type SpillFile struct {
	// Path is the filesystem path to the spill file
	Path string

	// RowCount is the number of rows written to this spill file
	RowCount int64

	// Bytes is the size of the file after writing
	Bytes int64
}

// SpillReader provides an interface for reading rows back from a spill file.
type SpillReader interface {
	// Next reads the next row from the spill file.
	// Returns io.EOF when no more rows are available.
	Next() (pipeline.Row, error)

	// Close closes the spill reader. The file itself is left in place.
	Close() error
}

// Spiller handles writing sorted data to temporary files and reading it back.
// Implementations must allow concurrent WriteSpillFile calls.
type Spiller interface {
	// WriteSpillFile writes rows, in order, to a new file in tmpDir whose
	// name starts with prefix.
	WriteSpillFile(tmpDir, prefix string, rows []pipeline.Row) (*SpillFile, error)

	// OpenSpillFile opens a spill file for reading.
	// The returned SpillReader will read rows in the same order they were written.
	OpenSpillFile(spillFile *SpillFile) (SpillReader, error)

	// CleanupSpillFile removes the spill file from disk.
	CleanupSpillFile(spillFile *SpillFile) error
}

// ByName returns the spiller for a codec name, "cbor" or "gob".
func ByName(name string) (Spiller, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cbor":
		return NewCborSpiller()
	case "gob":
		return NewGobSpiller(), nil
	default:
		return nil, fmt.Errorf("%w: unknown spill codec %q", pipeline.ErrInvalidConfig, name)
	}
}

func removeSpillFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove spill file %s: %w", path, err)
	}
	return nil
}

// finishSpillFile flushes and closes a freshly written spill file, removing
// it if either step fails.
func finishSpillFile(file *os.File, flush func() error, rows int) (*SpillFile, error) {
	err := flush()
	if err == nil {
		err = file.Sync()
	}
	var size int64
	if err == nil {
		var info os.FileInfo
		if info, err = file.Stat(); err == nil {
			size = info.Size()
		}
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("failed to finish spill file: %w", err)
	}
	return &SpillFile{
		Path:     file.Name(),
		RowCount: int64(rows),
		Bytes:    size,
	}, nil
}
