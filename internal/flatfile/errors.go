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

package flatfile

import (
	"errors"
	"fmt"
)

// ErrFormat matches every *FormatError.
var ErrFormat = errors.New("illegal flat file format")

// FormatError reports malformed input or a row that cannot be encoded.
type FormatError struct {
	// Row is the 1-based content row the error was found in.
	Row int64
	Msg string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Msg)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
