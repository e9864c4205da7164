// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// FirmwareClass is a synthetic firmware-class directory.
type FirmwareClass struct {
	// Root is the directory that stands in for /sys/class/firmware.
	Root string

	t testing.TB
}

// NewFirmwareClass creates an empty firmware-class directory. It is
// removed when the test completes.
func NewFirmwareClass(t testing.TB) *FirmwareClass {
	t.Helper()
	root := filepath.Join(t.TempDir(), "firmware")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatalf("creating firmware class directory: %v", err)
	}
	return &FirmwareClass{Root: root, t: t}
}

// AddRequest creates a request node named request with empty loading
// and data files, and returns the node's path.
func (c *FirmwareClass) AddRequest(request string) string {
	c.t.Helper()
	node := filepath.Join(c.Root, request)
	if err := os.Mkdir(node, 0o755); err != nil {
		c.t.Fatalf("creating request node %s: %v", request, err)
	}
	for _, attribute := range []string{"loading", "data"} {
		if err := os.WriteFile(filepath.Join(node, attribute), nil, 0o644); err != nil {
			c.t.Fatalf("creating %s/%s: %v", request, attribute, err)
		}
	}
	return node
}

// RemoveRequest deletes a request node, as the kernel does when a load
// completes or times out.
func (c *FirmwareClass) RemoveRequest(request string) {
	c.t.Helper()
	if err := os.RemoveAll(filepath.Join(c.Root, request)); err != nil {
		c.t.Fatalf("removing request node %s: %v", request, err)
	}
}

// Loading returns the current contents of a request's loading file.
func (c *FirmwareClass) Loading(request string) string {
	c.t.Helper()
	return string(c.read(request, "loading"))
}

// Data returns the current contents of a request's data file.
func (c *FirmwareClass) Data(request string) []byte {
	c.t.Helper()
	return c.read(request, "data")
}

func (c *FirmwareClass) read(request, attribute string) []byte {
	c.t.Helper()
	contents, err := os.ReadFile(filepath.Join(c.Root, request, attribute))
	if err != nil {
		c.t.Fatalf("reading %s/%s: %v", request, attribute, err)
	}
	return contents
}

// WriteSource writes contents to a file named name in a fresh
// temporary directory and returns its path.
func WriteSource(t testing.TB, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("writing source %s: %v", name, err)
	}
	return path
}
