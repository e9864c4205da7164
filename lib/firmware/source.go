// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// mappedSource is a source file mapped read-only into memory. data is
// nil for an empty file, since a zero-length mapping is invalid.
type mappedSource struct {
	fd   int
	data []byte
}

// mapSource opens path read-only and maps its full length. The caller
// must call release.
func mapSource(path string) (*mappedSource, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, newError(KindFileOpen, path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, newError(KindStat, path, err)
	}

	source := &mappedSource{fd: fd}
	if stat.Size == 0 {
		return source, nil
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, newError(KindMap, path, err)
	}
	source.data = data
	return source, nil
}

// release unmaps the file and closes its descriptor. Errors are
// dropped: the mapping was read-only and nothing is lost.
func (s *mappedSource) release() {
	if s.data != nil {
		_ = unix.Munmap(s.data)
		s.data = nil
	}
	if s.fd >= 0 {
		_ = unix.Close(s.fd)
		s.fd = -1
	}
}

// guardFault runs fn with page faults converted to errors. A source file
// truncated while mapped raises SIGBUS on access; without the guard that
// would crash the process instead of failing the delivery.
func guardFault(fn func() error) (err error) {
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = fmt.Errorf("page fault reading mapped source: %v", r)
		}
	}()
	return fn()
}
