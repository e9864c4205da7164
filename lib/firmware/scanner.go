// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import (
	"os"
	"path/filepath"
)

// DefaultClassDirectory is where the kernel creates firmware request
// nodes.
const DefaultClassDirectory = "/sys/class/firmware"

// Scanner lists the firmware request names currently pending. Each call
// reflects the directory as it is at that moment; the kernel adds and
// removes nodes between calls, so results must not be cached.
type Scanner interface {
	ListRequests() ([]string, error)

	// RequestPath returns the path of the request node with the given
	// name, for handing to a [Deliverer].
	RequestPath(name string) string
}

// DirScanner is a [Scanner] over a real directory, normally
// [DefaultClassDirectory].
type DirScanner struct {
	Root string
}

// ListRequests returns the names of all entries under Root, sorted by
// name. A directory that cannot be read yields a [KindDirectoryScan]
// error.
//
// The firmware-class directory also holds the "timeout" attribute on
// older kernels. It is returned like any other name; a logical name
// that matches it would be a configuration error the kernel rejects at
// the first write.
func (s DirScanner) ListRequests() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, newError(KindDirectoryScan, s.Root, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// RequestPath joins name onto Root.
func (s DirScanner) RequestPath(name string) string {
	return filepath.Join(s.Root, name)
}
