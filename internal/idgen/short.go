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


package idgen

import (
	crand "crypto/rand"
	"strings"
)

// GenerateShortBase32ID creates a short random base32 ID for tagging the log
// lines of one command run. It is 8 characters long and not for security use.
func GenerateShortBase32ID() string {
	b := make([]byte, 5)
	_, _ = crand.Read(b)
	return strings.ToLower(lowerBase32.EncodeToString(b))
}
