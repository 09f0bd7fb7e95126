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

// Package flatfile reads and writes character delimited tables.
//
// # Reading
//
// A Reader is a small state machine over a buffered rune stream. Each call to
// ReadRow returns the next row as a pipeline.Row, or io.EOF once the stream is
// exhausted:
//
//	reader, err := flatfile.NewReader(file, flatfile.CSVRFC4180)
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//
//	for {
//	    row, err := reader.ReadRow()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // use row
//	}
//
// When a Format lists more than one row delimiter the reader locks onto the
// first one it sees, so CSVRFC4180 accepts both CRLF and LF files.
//
// Malformed input is reported as a *FormatError from the ReadRow call that
// found it. All format errors match ErrFormat with errors.Is.
//
// # Writing
//
// A Writer quotes fields only when they would otherwise not read back
// unchanged with the same Format.
package flatfile
