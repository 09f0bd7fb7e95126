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
	"errors"
	"fmt"
	"os"
	"sync"
)

// TempRegistry tracks temporary files that must not outlive the process.
// Owners release a path once they have removed it themselves; CleanupAll
// removes whatever is still registered.
type TempRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// DefaultTempRegistry is the process-wide registry drained by the CLI on exit.
var DefaultTempRegistry = NewTempRegistry()

func NewTempRegistry() *TempRegistry {
	return &TempRegistry{paths: map[string]struct{}{}}
}

// Register records path for removal at exit.
func (r *TempRegistry) Register(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[path] = struct{}{}
}

// Release forgets path without touching the file.
func (r *TempRegistry) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

// Len returns the number of registered paths.
func (r *TempRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// CleanupAll removes every registered file and empties the registry.
func (r *TempRegistry) CleanupAll() error {
	r.mu.Lock()
	paths := r.paths
	r.paths = map[string]struct{}{}
	r.mu.Unlock()

	var errs []error
	for path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
