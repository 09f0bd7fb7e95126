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


package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskUsage(t *testing.T) {
	usage, err := DiskUsage(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, usage.TotalBytes)
	assert.LessOrEqual(t, usage.FreeBytes, usage.TotalBytes)
	assert.Equal(t, usage.TotalBytes-usage.FreeBytes, usage.UsedBytes)

	_, err = DiskUsage("/definitely/not/a/path")
	assert.Error(t, err)
}
