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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestTempRegistry(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept")
	released := filepath.Join(dir, "released")
	gone := filepath.Join(dir, "gone")
	touch(t, kept)
	touch(t, released)

	registry := NewTempRegistry()
	registry.Register(kept)
	registry.Register(released)
	registry.Register(gone)
	assert.Equal(t, 3, registry.Len())

	registry.Release(released)
	assert.Equal(t, 2, registry.Len())

	require.NoError(t, registry.CleanupAll())
	assert.Equal(t, 0, registry.Len())

	_, err := os.Stat(kept)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(released)
	assert.NoError(t, err)
}
