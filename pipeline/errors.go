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

import "errors"

// ErrInvalidConfig marks construction-time parameter errors. They are
// returned before any I/O takes place.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrShortRow is returned when a row does not have a column an operator keys on.
var ErrShortRow = errors.New("row is missing a key column")
