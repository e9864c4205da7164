// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import "fmt"

// Kind classifies an I/O failure by the step that produced it.
type Kind uint8

const (
	// KindDirectoryScan means the firmware-class directory could not
	// be listed.
	KindDirectoryScan Kind = iota + 1

	// KindFileOpen means a source file or a sysfs attribute could not
	// be opened.
	KindFileOpen

	// KindStat means the size of an opened source file could not be
	// determined.
	KindStat

	// KindMap means a source file could not be mapped into memory.
	KindMap

	// KindWrite means a write to a sysfs attribute failed.
	KindWrite

	// KindDecode means a compressed source file could not be decoded.
	KindDecode
)

// String returns the human-readable name of a kind.
func (kind Kind) String() string {
	switch kind {
	case KindDirectoryScan:
		return "directory scan"
	case KindFileOpen:
		return "open"
	case KindStat:
		return "stat"
	case KindMap:
		return "mmap"
	case KindWrite:
		return "write"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(kind))
	}
}

// Error is the failure type returned by the scanner and the delivery
// engine. Path names the file or directory the failed operation was
// applied to.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
